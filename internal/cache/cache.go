// Package cache keeps rebuild stamps for generated shader artifacts.
//
// A stamp records, per output file, the identity of the job that produced it
// (its key) and a content hash of every file the compiled shader depends on.
// An output is fresh while its key is unchanged and none of its dependencies
// changed. Outputs are also copied into the cache so a deleted but otherwise
// fresh output can be restored without recompiling.
//
// Stamps live in BoltDB and copies in the filesystem:
//
//	.spvgen-cache/
//	  cache.db
//	  artifacts/<hash of output path>/<output name>
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".spvgen-cache"

	// bucketName is the BoltDB bucket name for stamps
	bucketName = "stamps"
)

// Cache manages rebuild stamps and artifact copies using BoltDB
type Cache struct {
	db   *bbolt.DB
	root string // Root directory for cache (.spvgen-cache/)
}

// New creates a new cache instance
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func New(cacheDir string) (*Cache, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Open BoltDB
	dbPath := filepath.Join(cacheDir, "cache.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:   db,
		root: cacheDir,
	}, nil
}

// Close closes the cache database
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Dir returns the cache root directory
func (c *Cache) Dir() string {
	return c.root
}

// Get retrieves the stamp for an output file
// Returns nil if there is none
func (c *Cache) Get(output string) (*Entry, error) {
	output, err := filepath.Abs(output)
	if err != nil {
		return nil, err
	}

	var entry *Entry
	err = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(output))
		if data == nil {
			return nil // Cache miss
		}

		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read stamp for %s: %w", output, err)
	}

	return entry, nil
}

// Fresh reports whether output is up to date for key. A missing output with
// an otherwise fresh stamp is restored from the cached copy.
func (c *Cache) Fresh(output, key string) (bool, error) {
	entry, err := c.Get(output)
	if err != nil || entry == nil {
		return false, err
	}

	if entry.Key != key {
		return false, nil
	}

	for _, dep := range entry.Dependencies {
		hash, err := HashFile(dep.Path)
		if err != nil || hash != dep.Hash {
			return false, nil
		}
	}

	hash, err := HashFile(entry.Output)
	switch {
	case err == nil:
		return hash == entry.OutputHash, nil
	case errors.Is(err, fs.ErrNotExist):
		if err := c.Restore(entry); err != nil {
			return false, nil
		}

		return true, nil
	default:
		return false, nil
	}
}

// Store records a stamp for output and copies it into the cache
func (c *Cache) Store(output, key string, deps []string) error {
	output, err := filepath.Abs(output)
	if err != nil {
		return err
	}

	entry := Entry{
		Output:    output,
		Key:       key,
		Timestamp: time.Now(),
	}

	for _, dep := range deps {
		hash, err := HashFile(dep)
		if err != nil {
			return fmt.Errorf("failed to hash dependency %s: %w", dep, err)
		}

		entry.Dependencies = append(entry.Dependencies, Dependency{Path: dep, Hash: hash})
	}

	entry.OutputHash, err = HashFile(output)
	if err != nil {
		return fmt.Errorf("failed to hash output: %w", err)
	}

	if err := copyFile(output, c.artifactPath(output)); err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}

	// Store metadata in BoltDB
	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(output), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store stamp: %w", err)
	}

	return nil
}

// Restore copies the cached artifact back to the entry's output path
func (c *Cache) Restore(entry *Entry) error {
	src := c.artifactPath(entry.Output)

	hash, err := HashFile(src)
	if err != nil {
		return fmt.Errorf("no cached copy of %s: %w", entry.Output, err)
	}

	if hash != entry.OutputHash {
		return fmt.Errorf("cached copy of %s is corrupt", entry.Output)
	}

	return copyFile(src, entry.Output)
}

// Invalidate drops the stamp for an output file
func (c *Cache) Invalidate(output string) error {
	output, err := filepath.Abs(output)
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(output))
	})
}

// Clear removes all stamps and artifacts
func (c *Cache) Clear() error {
	// Clear BoltDB
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	// Recreate bucket
	err = c.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return err
	}

	// Remove artifacts directory
	artifactsDir := filepath.Join(c.root, "artifacts")
	if err := os.RemoveAll(artifactsDir); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	return nil
}

// Stats returns the number of stamps and the total size of cached artifacts
func (c *Cache) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	// Calculate total artifact size
	artifactsDir := filepath.Join(c.root, "artifacts")
	err = filepath.Walk(artifactsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() {
			totalSize += info.Size()
		}

		return nil
	})

	return count, totalSize, err
}
