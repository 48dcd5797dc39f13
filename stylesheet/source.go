// Package stylesheet reads theme stylesheets and answers the two questions
// the theme applier asks of them: which custom properties exist, and what a
// custom property resolves to at root scope.
package stylesheet

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tagtint/logger"
)

// ErrInaccessible marks a rule collection that cannot be read.
var ErrInaccessible = errors.New("rule collection is not accessible")

// DefaultRootSelectors are the selectors whose declarations apply at root scope.
var DefaultRootSelectors = []string{":root", "html", "body"}

// Collection is one source of style rules, such as a single stylesheet.
type Collection interface {
	Name() string
	Rules() ([]Rule, error)
}

// Source exposes custom property enumeration and root-scope resolution.
type Source interface {
	CustomProperties(match func(name string) bool) []string
	Resolve(name string) string
}

// FileCollection reads and parses a CSS file on every call.
type FileCollection struct {
	Path string
}

func (f FileCollection) Name() string { return f.Path }

func (f FileCollection) Rules() ([]Rule, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInaccessible, f.Path, err)
	}
	return Parse(string(data)), nil
}

// TextCollection is an in-memory stylesheet.
type TextCollection struct {
	Label string
	CSS   string
}

func (t TextCollection) Name() string { return t.Label }

func (t TextCollection) Rules() ([]Rule, error) {
	return Parse(t.CSS), nil
}

// Sheets is a Source over an ordered list of collections. Later collections
// win over earlier ones, and !important declarations win over normal ones.
type Sheets struct {
	collections   []Collection
	rootSelectors map[string]struct{}
	log           *logger.Logger

	mu     sync.Mutex
	mtimes map[string]time.Time
}

// NewSheets builds a Source. A nil or empty rootSelectors uses DefaultRootSelectors.
func NewSheets(log *logger.Logger, rootSelectors []string, collections ...Collection) *Sheets {
	if len(rootSelectors) == 0 {
		rootSelectors = DefaultRootSelectors
	}
	roots := make(map[string]struct{}, len(rootSelectors))
	for _, sel := range rootSelectors {
		roots[strings.TrimSpace(sel)] = struct{}{}
	}
	return &Sheets{
		collections:   collections,
		rootSelectors: roots,
		log:           log.Component("stylesheet"),
	}
}

// FromFiles builds a Source over CSS files.
func FromFiles(log *logger.Logger, rootSelectors []string, paths ...string) *Sheets {
	collections := make([]Collection, 0, len(paths))
	for _, p := range paths {
		collections = append(collections, FileCollection{Path: p})
	}
	return NewSheets(log, rootSelectors, collections...)
}

// readable returns the rules of every collection that can be read.
// Unreadable collections are skipped.
func (s *Sheets) readable() [][]Rule {
	out := make([][]Rule, 0, len(s.collections))
	for _, c := range s.collections {
		rules, err := c.Rules()
		if err != nil {
			s.log.WithFields(map[string]any{"sheet": c.Name()}).Debug("skipping unreadable stylesheet")
			continue
		}
		out = append(out, rules)
	}
	return out
}

// CustomProperties returns the unique custom property names, without the
// leading "--", for which match returns true. Names are in first-seen order.
func (s *Sheets) CustomProperties(match func(name string) bool) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, rules := range s.readable() {
		for _, rule := range rules {
			for _, d := range rule.Declarations {
				if !strings.HasPrefix(d.Property, "--") {
					continue
				}
				name := strings.TrimPrefix(d.Property, "--")
				if _, ok := seen[name]; ok {
					continue
				}
				if match != nil && !match(name) {
					continue
				}
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	return names
}

// Resolve returns the cascaded value of --name at root scope, or "" if no
// root-scope rule declares it.
func (s *Sheets) Resolve(name string) string {
	prop := "--" + strings.TrimPrefix(name, "--")
	var value string
	var important bool
	for _, rules := range s.readable() {
		for _, rule := range rules {
			if !s.isRoot(rule) {
				continue
			}
			for _, d := range rule.Declarations {
				if d.Property != prop {
					continue
				}
				if important && !d.Important {
					continue
				}
				value, important = d.Value, d.Important
			}
		}
	}
	return strings.TrimSpace(value)
}

func (s *Sheets) isRoot(rule Rule) bool {
	for _, sel := range rule.Selectors() {
		if _, ok := s.rootSelectors[sel]; ok {
			return true
		}
	}
	return false
}

// Changed reports whether any file-backed collection was created, modified
// or removed since the previous call. The first call records the baseline
// and reports false.
func (s *Sheets) Changed() bool {
	current := make(map[string]time.Time)
	for _, c := range s.collections {
		fc, ok := c.(FileCollection)
		if !ok {
			continue
		}
		if info, err := os.Stat(fc.Path); err == nil {
			current[fc.Path] = info.ModTime()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.mtimes
	s.mtimes = current
	if previous == nil {
		return false
	}
	if len(previous) != len(current) {
		return true
	}
	for path, mtime := range current {
		if old, ok := previous[path]; !ok || !old.Equal(mtime) {
			return true
		}
	}
	return false
}
