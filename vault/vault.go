package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tagtint/logger"
)

// Vault is a directory of markdown notes. Documents are addressed by their
// slash-separated path relative to the vault root.
type Vault struct {
	dir      string
	interval time.Duration
	log      *logger.Logger

	mu        sync.Mutex
	mtimes    map[string]time.Time
	listeners map[int]func(doc string)
	nextID    int
}

// New returns a Vault rooted at dir that wants to be scanned every interval.
func New(dir string, interval time.Duration, log *logger.Logger) *Vault {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Vault{
		dir:       dir,
		interval:  interval,
		log:       log.Component("vault"),
		listeners: make(map[int]func(string)),
	}
}

// Tags returns the ordered tags of doc.
func (v *Vault) Tags(doc string) ([]string, error) {
	path, err := v.resolve(doc)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tags, err := ExtractTags(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc, err)
	}
	return tags, nil
}

// AllTags returns every tag used anywhere in the vault, sorted. Documents
// with unparseable frontmatter are skipped.
func (v *Vault) AllTags() ([]string, error) {
	docs, err := v.documents()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for doc := range docs {
		tags, err := v.Tags(doc)
		if err != nil {
			v.log.WithFields(map[string]any{"doc": doc}).Warn("skipping unreadable document")
			continue
		}
		for _, tag := range tags {
			seen[tag] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// OnChange registers fn to be called with the document that changed. The
// returned function unregisters it.
func (v *Vault) OnChange(fn func(doc string)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// Interval is how often the vault should be scanned for changes.
func (v *Vault) Interval() time.Duration {
	return v.interval
}

// Scan compares modification times with the previous scan and notifies
// listeners of every added, modified or removed document. The first scan only
// records the baseline. It returns the changed documents in sorted order.
func (v *Vault) Scan() []string {
	current, err := v.documents()
	if err != nil {
		v.log.Error(err, "scan vault")
		return nil
	}

	v.mu.Lock()
	previous := v.mtimes
	v.mtimes = current
	v.mu.Unlock()

	if previous == nil {
		return nil
	}

	var changed []string
	for doc, mtime := range current {
		if old, ok := previous[doc]; !ok || !old.Equal(mtime) {
			changed = append(changed, doc)
		}
	}
	for doc := range previous {
		if _, ok := current[doc]; !ok {
			changed = append(changed, doc)
		}
	}
	sort.Strings(changed)

	for _, doc := range changed {
		v.notify(doc)
	}
	return changed
}

func (v *Vault) notify(doc string) {
	v.mu.Lock()
	ids := make([]int, 0, len(v.listeners))
	for id := range v.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(string), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, v.listeners[id])
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(doc)
	}
}

func (v *Vault) documents() (map[string]time.Time, error) {
	docs := make(map[string]time.Time)
	err := filepath.WalkDir(v.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != v.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(v.dir, path)
		if err != nil {
			return err
		}
		docs[filepath.ToSlash(rel)] = info.ModTime()
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return docs, nil
		}
		return nil, err
	}
	return docs, nil
}

func (v *Vault) resolve(doc string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(doc, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("document %q is outside the vault", doc)
	}
	return filepath.Join(v.dir, clean), nil
}
