// Package style holds the named style blocks and body-level custom
// properties that tagtint publishes to the host front end.
package style

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Block is a named unit of CSS that is added, replaced or removed as a whole.
type Block struct {
	ID  string `json:"id"`
	CSS string `json:"css"`
}

// Property is a custom property set directly on the document body.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Important bool   `json:"important"`
}

// Snapshot is the full observable state of a Registry.
type Snapshot struct {
	Blocks     []Block    `json:"blocks"`
	Properties []Property `json:"properties"`
}

// Listener is notified after every change with the resulting snapshot.
type Listener func(Snapshot)

// Registry is a mutable set of style blocks keyed by id. Last writer wins.
type Registry struct {
	mu        sync.Mutex
	blocks    map[string]string
	order     []string
	props     map[string]Property
	listeners map[int]Listener
	nextID    int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		blocks:    make(map[string]string),
		props:     make(map[string]Property),
		listeners: make(map[int]Listener),
	}
}

// Set creates or replaces the block with the given id.
func (r *Registry) Set(id, css string) {
	r.mu.Lock()
	if _, exists := r.blocks[id]; !exists {
		r.order = append(r.order, id)
	}
	r.blocks[id] = css
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
}

// Remove deletes the block with the given id. It reports whether a block was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	if _, exists := r.blocks[id]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.blocks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return true
}

// Block returns the CSS of the block with the given id.
func (r *Registry) Block(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	css, ok := r.blocks[id]
	return css, ok
}

// SetProperty sets a custom property directly on the body.
func (r *Registry) SetProperty(name, value string, important bool) {
	r.mu.Lock()
	r.props[name] = Property{Name: name, Value: value, Important: important}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
}

// RemoveProperty clears a body property. It reports whether one was set.
func (r *Registry) RemoveProperty(name string) bool {
	r.mu.Lock()
	if _, exists := r.props[name]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.props, name)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return true
}

// Property returns the body property with the given name.
func (r *Registry) Property(name string) (Property, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.props[name]
	return p, ok
}

// Snapshot returns a copy of the current state. Blocks keep insertion order,
// properties are sorted by name.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Subscribe registers fn for change notifications and returns a function that
// unregisters it.
func (r *Registry) Subscribe(fn Listener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// CSS renders every block followed by a body rule carrying the properties.
func (r *Registry) CSS() string {
	return r.Snapshot().CSS()
}

// CSS renders the snapshot as a single stylesheet.
func (s Snapshot) CSS() string {
	var b strings.Builder
	for _, block := range s.Blocks {
		fmt.Fprintf(&b, "/* %s */\n", block.ID)
		b.WriteString(block.CSS)
		if block.CSS != "" && !strings.HasSuffix(block.CSS, "\n") {
			b.WriteByte('\n')
		}
	}
	if len(s.Properties) > 0 {
		b.WriteString("body {\n")
		for _, p := range s.Properties {
			b.WriteString("  " + p.Declaration() + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// Declaration renders the property as "--name: value;" with !important if set.
func (p Property) Declaration() string {
	if p.Important {
		return fmt.Sprintf("%s: %s !important;", p.Name, p.Value)
	}
	return fmt.Sprintf("%s: %s;", p.Name, p.Value)
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := Snapshot{
		Blocks:     make([]Block, 0, len(r.order)),
		Properties: make([]Property, 0, len(r.props)),
	}
	for _, id := range r.order {
		snap.Blocks = append(snap.Blocks, Block{ID: id, CSS: r.blocks[id]})
	}
	for _, p := range r.props {
		snap.Properties = append(snap.Properties, p)
	}
	sort.Slice(snap.Properties, func(i, j int) bool {
		return snap.Properties[i].Name < snap.Properties[j].Name
	})
	return snap
}

func (r *Registry) notify(snap Snapshot) {
	r.mu.Lock()
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, r.listeners[id])
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
