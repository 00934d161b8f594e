package cache

import "time"

// Entry is the rebuild stamp of one generated output
type Entry struct {
	// Output is the absolute path of the generated file
	Output string `json:"output"`

	// Key identifies the job that produced the output
	// Computed from: options + source identity + build modes + compiler + format
	Key string `json:"key"`

	// Dependencies are the compiled shader's dependency files, in encounter
	// order, with their content hashes at build time
	Dependencies []Dependency `json:"dependencies"`

	// OutputHash is the content hash of the generated file
	OutputHash string `json:"output_hash"`

	// Timestamp when this entry was created
	Timestamp time.Time `json:"timestamp"`
}

// Dependency is a file hash captured when a stamp was stored
type Dependency struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}
