// Package manifest persists the record of the previous successful build:
// per-node fingerprints and output paths, keyed by source path.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is bumped when the on-disk format changes incompatibly. A manifest
// with a different version is discarded, forcing a full rebuild.
const Version = 1

// Entry records one node's state from the previous build.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	OutputPath  string `json:"output_path,omitempty"`
}

// Manifest maps source paths to their last-built state. It is loaded once at
// build start, read-only during the build, and replaced atomically at build
// end.
type Manifest struct {
	Version      int              `json:"version"`
	BuildID      string           `json:"build_id,omitempty"`
	ConfigHash   string           `json:"config_hash,omitempty"`
	SourceCommit string           `json:"source_commit,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Entries      map[string]Entry `json:"entries"`
}

// New returns an empty manifest at the current version.
func New() *Manifest {
	return &Manifest{Version: Version, Entries: map[string]Entry{}}
}

// Load reads a manifest file. A missing file yields an empty manifest (first
// build); an unreadable or version-mismatched file also degrades to empty so
// a corrupt manifest can never wedge the build, only force a full one.
func Load(path string) *Manifest {
	data, err := os.ReadFile(path) // #nosec G304 -- path is the configured manifest location
	if err != nil {
		return New()
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return New()
	}
	if m.Version != Version {
		return New()
	}
	if m.Entries == nil {
		m.Entries = map[string]Entry{}
	}
	return &m
}

// Lookup returns the previous entry for a source path.
func (m *Manifest) Lookup(sourcePath string) (Entry, bool) {
	e, ok := m.Entries[sourcePath]
	return e, ok
}

// Put records an entry. Only the build finalizer mutates the manifest; the
// parallel render phase never touches it.
func (m *Manifest) Put(sourcePath string, e Entry) {
	m.Entries[sourcePath] = e
}

// Save writes the manifest atomically: write-to-temp-then-rename, so a crash
// mid-build never corrupts the record used by the next incremental run.
func (m *Manifest) Save(path string) error {
	m.CreatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
