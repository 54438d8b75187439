// Package zones persists the user-drawn zone document as a single JSON file.
package zones

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Point is a 2-D polygon vertex, serialized as [x, y].
type Point [2]float64

// Document is the full zone configuration: an ordered list of polygons plus
// an optional reference image (base64 data URL captured from the camera).
type Document struct {
	Zones [][]Point `json:"zones"`
	Image *string   `json:"image"`
}

// DefaultDocument returns an empty zone document.
func DefaultDocument() Document {
	return Document{Zones: [][]Point{}}
}

// Store reads and writes the zone document. Saves replace the file
// wholesale; there are no merge or append semantics.
type Store struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewStore creates a Store persisting to the given file path.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Save overwrites the persisted document. The write goes through a temp
// file and rename so a crash mid-write never leaves a truncated document.
func (s *Store) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Zones == nil {
		doc.Zones = [][]Point{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode zone document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".zones-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write zone document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write zone document: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace zone document: %w", err)
	}

	return nil
}

// Load returns the last-saved document. A missing, unreadable, or corrupt
// file yields the empty default; the failure is logged but not surfaced, so
// a damaged config never breaks the panel.
func (s *Store) Load() Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("failed to read zone document")
		}
		return DefaultDocument()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("zone document is corrupt, using defaults")
		return DefaultDocument()
	}

	if doc.Zones == nil {
		doc.Zones = [][]Point{}
	}
	return doc
}
