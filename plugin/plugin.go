// Package plugin ties the settings store, the vault and the appliers together
// and reacts to document and settings events.
package plugin

import (
	"errors"
	"fmt"
	"sync"

	"tagtint/colormodel"
	"tagtint/logger"
	"tagtint/storage"
	"tagtint/theme"
)

// SettingsStore persists the tag→color map.
type SettingsStore interface {
	Load() (map[string]string, error)
	Save(colors map[string]string) error
}

// MetadataSource answers which tags a document has and reports changes.
type MetadataSource interface {
	Tags(doc string) ([]string, error)
	OnChange(fn func(doc string)) (unsubscribe func())
}

var (
	// ErrNotStarted is returned by operations that need Start to have run.
	ErrNotStarted = errors.New("plugin not started")

	// ErrInvalid marks a rejected tag or color.
	ErrInvalid = errors.New("invalid tag color")
)

// Active describes the document currently shown by the host.
type Active struct {
	Path  string   `json:"path,omitempty"`
	Tags  []string `json:"tags"`
	Color string   `json:"color,omitempty"`
}

// Plugin serializes every event behind one mutex; the most recent event wins.
type Plugin struct {
	store  SettingsStore
	meta   MetadataSource
	tags   *theme.TagApplier
	accent *theme.AccentApplier
	log    *logger.Logger

	mu       sync.Mutex
	started  bool
	colors   map[string]string
	active   Active
	cleanups []func()
}

// New builds a Plugin. meta may be nil when no vault is configured.
func New(store SettingsStore, meta MetadataSource, tags *theme.TagApplier, accent *theme.AccentApplier, log *logger.Logger) *Plugin {
	return &Plugin{
		store:  store,
		meta:   meta,
		tags:   tags,
		accent: accent,
		log:    log.Component("plugin"),
		colors: map[string]string{},
	}
}

// Start loads settings, applies tag colors and subscribes to metadata changes.
func (p *Plugin) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("plugin already started")
	}

	colors, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("load tag colors: %w", err)
	}
	p.colors = colors
	p.started = true

	p.tags.ApplyTagColors(p.colors)
	p.register(p.tags.RemoveTagColors)
	p.register(p.accent.RemoveFileThemeColor)

	if p.meta != nil {
		p.register(p.meta.OnChange(p.handleMetadataChange))
	}

	p.log.WithFields(map[string]any{"tags": len(colors)}).Info("plugin started")
	return nil
}

// Register adds a cleanup to run on Stop.
func (p *Plugin) Register(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.register(fn)
}

func (p *Plugin) register(fn func()) {
	if fn != nil {
		p.cleanups = append(p.cleanups, fn)
	}
}

// Stop runs registered cleanups in reverse registration order. Calling it
// more than once is harmless.
func (p *Plugin) Stop() {
	p.mu.Lock()
	cleanups := p.cleanups
	p.cleanups = nil
	wasStarted := p.started
	p.started = false
	p.active = Active{}
	p.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	if wasStarted {
		p.log.Info("plugin stopped")
	}
}

// TagColors returns a copy of the current map.
func (p *Plugin) TagColors() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyMap(p.colors)
}

// SetTagColor assigns color to tag, persists the map and re-applies styles.
func (p *Plugin) SetTagColor(tag, color string) error {
	tag = storage.NormalizeTag(tag)
	if tag == "" {
		return fmt.Errorf("%w: empty tag", ErrInvalid)
	}
	hex, err := colormodel.NormalizeHex(color)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := copyMap(p.colors)
	next[tag] = hex
	return p.commitLocked(next)
}

// RemoveTagColor drops the color of tag. Removing an unknown tag is a no-op.
func (p *Plugin) RemoveTagColor(tag string) error {
	tag = storage.NormalizeTag(tag)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.colors[tag]; !ok {
		return nil
	}
	next := copyMap(p.colors)
	delete(next, tag)
	return p.commitLocked(next)
}

// ReplaceTagColors swaps the whole map.
func (p *Plugin) ReplaceTagColors(colors map[string]string) error {
	for tag, color := range colors {
		if storage.NormalizeTag(tag) == "" {
			return fmt.Errorf("%w: empty tag", ErrInvalid)
		}
		if _, err := colormodel.ParseHex(color); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commitLocked(storage.Normalize(colors))
}

func (p *Plugin) commitLocked(next map[string]string) error {
	if !p.started {
		return ErrNotStarted
	}
	if err := p.store.Save(next); err != nil {
		return fmt.Errorf("save tag colors: %w", err)
	}
	p.colors = next
	p.tags.ApplyTagColors(p.colors)
	p.refreshThemeLocked()
	return nil
}

// OpenDocument makes doc the active document and themes by its first tag.
func (p *Plugin) OpenDocument(doc string) error {
	if p.meta == nil {
		return errors.New("no metadata source configured")
	}
	tags, err := p.meta.Tags(doc)
	if err != nil {
		return fmt.Errorf("read tags of %s: %w", doc, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return ErrNotStarted
	}
	p.active = Active{Path: doc, Tags: tags}
	p.refreshThemeLocked()
	return nil
}

// SetActiveTags makes an unnamed document with the given tags active.
func (p *Plugin) SetActiveTags(tags []string) error {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = storage.NormalizeTag(tag); tag != "" {
			normalized = append(normalized, tag)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return ErrNotStarted
	}
	p.active = Active{Tags: normalized}
	p.refreshThemeLocked()
	return nil
}

// ClearActive forgets the active document and removes the theme override.
func (p *Plugin) ClearActive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return ErrNotStarted
	}
	p.active = Active{}
	p.accent.RemoveFileThemeColor()
	return nil
}

// Refresh re-applies the theme override for the active document, for
// instance after the theme stylesheets changed.
func (p *Plugin) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.refreshThemeLocked()
}

// Active returns the active document.
func (p *Plugin) Active() Active {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.active
	a.Tags = append([]string(nil), a.Tags...)
	return a
}

func (p *Plugin) handleMetadataChange(doc string) {
	var tags []string
	var tagsErr error
	p.mu.Lock()
	isActive := p.active.Path != "" && p.active.Path == doc
	p.mu.Unlock()
	if isActive {
		tags, tagsErr = p.meta.Tags(doc)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}

	p.tags.ApplyTagColors(p.colors)

	if !isActive || p.active.Path != doc {
		return
	}
	if tagsErr != nil {
		p.log.WithFields(map[string]any{"doc": doc}).Debug("active document unreadable")
		tags = nil
	}
	p.active.Tags = tags
	p.refreshThemeLocked()
}

// refreshThemeLocked themes by the active document's first tag, or removes
// the override when that tag has no color.
func (p *Plugin) refreshThemeLocked() {
	p.active.Color = ""
	if len(p.active.Tags) == 0 {
		p.accent.RemoveFileThemeColor()
		return
	}

	color, ok := p.colors[p.active.Tags[0]]
	if !ok {
		p.accent.RemoveFileThemeColor()
		return
	}

	if err := p.accent.SetFileThemeColor(color); err != nil {
		p.log.Error(err, "apply theme color")
		p.accent.RemoveFileThemeColor()
		return
	}
	p.active.Color = color
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
