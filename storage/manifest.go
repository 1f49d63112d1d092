package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"market-scraper/models"
)

// Manifest tracks every artifact written during a program invocation, keyed
// by source, run and stage. It is the stage-output handoff table: later
// stages and the final report locate earlier outputs through it instead of
// guessing filenames.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]string)}
}

func manifestKey(source, runID string, stage models.Stage) string {
	return source + "_" + runID + "_" + string(stage)
}

// Put records the path of one stage artifact.
func (m *Manifest) Put(source, runID string, stage models.Stage, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[manifestKey(source, runID, stage)] = path
}

// Get returns the recorded path for a stage artifact, if any.
func (m *Manifest) Get(source, runID string, stage models.Stage) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[manifestKey(source, runID, stage)]
	return p, ok
}

// Save writes the manifest as JSON into dir.
func (m *Manifest) Save(dir string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "manifest: marshal")
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "manifest: write %s", path)
	}
	return nil
}
