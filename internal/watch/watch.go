// Package watch regenerates shaders when any file they depend on changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Norgate-AV/spvgen/internal/job"
)

const (
	// DefaultDebounce is how long a file must be quiet before rebuilding
	DefaultDebounce = 200 * time.Millisecond

	tickInterval = 50 * time.Millisecond
)

// Watcher re-runs jobs whose dependency list contains a changed file. It
// is driven entirely by Run and is not safe for concurrent use.
type Watcher struct {
	runner  *job.Runner
	jobs    []job.Job
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	// Debounce is how long a changed file must settle before rebuilding
	Debounce time.Duration

	// OnBuild, when set, is called after the initial build and every rebuild
	OnBuild func(outcomes []*job.Outcome, err error)

	jobDeps [][]string
	index   map[string][]int
	dirs    map[string]bool
	pending map[string]time.Time
}

// New creates a watcher for jobs
func New(runner *job.Runner, jobs []job.Job, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		runner:   runner,
		jobs:     jobs,
		logger:   logger,
		watcher:  fw,
		Debounce: DefaultDebounce,
		jobDeps:  make([][]string, len(jobs)),
		index:    map[string][]int{},
		dirs:     map[string]bool{},
		pending:  map[string]time.Time{},
	}, nil
}

// Close releases the file watcher. Run closes it on return.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run builds every job, then rebuilds affected jobs on changes until ctx is
// cancelled. Build failures are logged and do not stop watching.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	all := make([]int, len(w.jobs))
	for i := range all {
		all[i] = i
	}

	w.rebuild(ctx, all)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("File watcher error", zap.Error(err))

		case <-ticker.C:
			if affected := w.settled(); len(affected) > 0 {
				w.rebuild(ctx, affected)
			}
		}
	}
}

// handleEvent records a change to a dependency for later processing
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return // Ignore chmod
	}

	path := filepath.Clean(event.Name)
	if _, ok := w.index[path]; !ok {
		return
	}

	w.logger.Debug("Dependency changed", zap.String("path", path), zap.Stringer("op", event.Op))
	w.pending[path] = time.Now()
}

// settled returns the jobs affected by changes older than the debounce window
func (w *Watcher) settled() []int {
	now := time.Now()
	var affected []int

	for path, at := range w.pending {
		if now.Sub(at) < w.Debounce {
			continue
		}

		delete(w.pending, path)

		for _, i := range w.index[path] {
			if !slices.Contains(affected, i) {
				affected = append(affected, i)
			}
		}
	}

	slices.Sort(affected)

	return affected
}

// rebuild runs the given jobs and refreshes their dependency lists
func (w *Watcher) rebuild(ctx context.Context, indices []int) {
	jobs := make([]job.Job, len(indices))
	for k, i := range indices {
		jobs[k] = w.jobs[i]
	}

	outcomes, err := w.runner.RunAll(ctx, jobs)
	if err != nil {
		w.logger.Error("Shader generation failed", zap.Error(err))
	}

	attempted := map[string][]string{}
	for _, f := range job.Failures(err) {
		attempted[f.Job.Output] = f.Dependencies
	}

	for k, i := range indices {
		if outcomes[k] != nil {
			w.jobDeps[i] = outcomes[k].Dependencies
			continue
		}

		// Keep what the last good build read and add what this attempt
		// tried to read, such as an include that does not exist yet
		for _, dep := range attempted[w.jobs[i].Output] {
			if !slices.Contains(w.jobDeps[i], dep) {
				w.jobDeps[i] = append(slices.Clip(w.jobDeps[i]), dep)
			}
		}
	}

	w.reindex()

	if w.OnBuild != nil {
		w.OnBuild(outcomes, err)
	}
}

// reindex maps every dependency to the jobs using it and watches its
// directory
func (w *Watcher) reindex() {
	clear(w.index)

	for i, deps := range w.jobDeps {
		for _, dep := range deps {
			dep = filepath.Clean(dep)
			if !slices.Contains(w.index[dep], i) {
				w.index[dep] = append(w.index[dep], i)
			}

			dir := filepath.Dir(dep)
			if w.dirs[dir] {
				continue
			}

			if err := w.watcher.Add(dir); err != nil {
				w.logger.Warn("Failed to watch directory", zap.String("dir", dir), zap.Error(err))
				continue
			}

			w.dirs[dir] = true
			w.logger.Debug("Watching directory", zap.String("dir", dir))
		}
	}
}

// WatchedPaths returns the dependency paths currently watched
func (w *Watcher) WatchedPaths() []string {
	paths := make([]string, 0, len(w.index))
	for path := range w.index {
		paths = append(paths, path)
	}

	slices.Sort(paths)

	return paths
}
