package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tagtint/colormodel"
	"tagtint/config"
)

// FileName is the tag color file inside the data directory.
const FileName = "tag-colors.json"

// Store persists the tag→color map.
type Store struct {
	baseDir  string
	defaults map[string]string
	mu       sync.Mutex
}

// document holds only what differs from the configured defaults: overridden
// or added colors, and default tags the user removed.
type document struct {
	TagColors       map[string]string `json:"tag_colors"`
	RemovedDefaults []string          `json:"removed_defaults,omitempty"`
}

// New creates a Store under baseDir. defaults apply to every tag that has
// neither a saved color nor a recorded removal.
func New(baseDir string, defaults map[string]string) *Store {
	return &Store{baseDir: baseDir, defaults: Normalize(defaults)}
}

// Path returns the location of the tag color file.
func (s *Store) Path() string {
	return filepath.Join(s.baseDir, FileName)
}

// EnsureDirs creates the data directory.
func (s *Store) EnsureDirs() error {
	return os.MkdirAll(s.baseDir, 0o755)
}

// Load returns the saved colors merged over the defaults. A missing file
// yields just the defaults.
func (s *Store) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc document
	f, err := os.Open(s.Path())
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.Path(), err)
		}
	}

	removed := make(map[string]struct{}, len(doc.RemovedDefaults))
	for _, tag := range doc.RemovedDefaults {
		removed[NormalizeTag(tag)] = struct{}{}
	}

	out := make(map[string]string, len(s.defaults)+len(doc.TagColors))
	for tag, color := range s.defaults {
		if _, gone := removed[tag]; !gone {
			out[tag] = color
		}
	}
	for tag, color := range Normalize(doc.TagColors) {
		out[tag] = color
	}
	return out, nil
}

// Save replaces the colors. Entries equal to their default are not written,
// so later changes to the defaults still reach them.
func (s *Store) Save(colors map[string]string) error {
	colors = Normalize(colors)

	doc := document{TagColors: make(map[string]string, len(colors))}
	for tag, color := range colors {
		if s.defaults[tag] != color {
			doc.TagColors[tag] = color
		}
	}
	for tag := range s.defaults {
		if _, ok := colors[tag]; !ok {
			doc.RemovedDefaults = append(doc.RemovedDefaults, tag)
		}
	}
	sort.Strings(doc.RemovedDefaults)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return err
	}
	return config.WriteJSON(s.Path(), doc)
}

// NormalizeTag strips whitespace and a leading '#'.
func NormalizeTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "#")
}

// Normalize returns a copy of colors with normalized tags and lowercase
// "#rrggbb" colors. Entries with an empty tag or an invalid color are dropped.
func Normalize(colors map[string]string) map[string]string {
	out := make(map[string]string, len(colors))
	for tag, color := range colors {
		tag = NormalizeTag(tag)
		if tag == "" {
			continue
		}
		hex, err := colormodel.NormalizeHex(color)
		if err != nil {
			continue
		}
		out[tag] = hex
	}
	return out
}
