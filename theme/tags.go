package theme

import (
	"fmt"
	"sort"
	"strings"

	"tagtint/logger"
	"tagtint/style"
)

const (
	// TagBlockID identifies the style block holding per-tag colors.
	TagBlockID = "tagtint-tag-colors"

	// DefaultTagSelector matches rendered tag links.
	DefaultTagSelector = ".tag"
)

// TagApplier renders a tag→color map into a single style block.
type TagApplier struct {
	registry *style.Registry
	selector string
	log      *logger.Logger
}

// NewTagApplier returns an applier using selector for tag elements. An empty
// selector means DefaultTagSelector.
func NewTagApplier(registry *style.Registry, selector string, log *logger.Logger) *TagApplier {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultTagSelector
	}
	return &TagApplier{
		registry: registry,
		selector: selector,
		log:      log.Component("tags"),
	}
}

// ApplyTagColors replaces the tag block with one rule per entry. An empty map
// leaves an empty block in place.
func (t *TagApplier) ApplyTagColors(colors map[string]string) {
	t.registry.Set(TagBlockID, TagCSS(t.selector, colors))
	t.log.WithFields(map[string]any{"tags": len(colors)}).Debug("tag colors applied")
}

// RemoveTagColors removes the tag block if present.
func (t *TagApplier) RemoveTagColors() {
	t.registry.Remove(TagBlockID)
}

// TagCSS renders colors as rules sorted by tag name.
func TagCSS(selector string, colors map[string]string) string {
	tags := make([]string, 0, len(colors))
	for tag := range colors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var b strings.Builder
	for _, tag := range tags {
		fmt.Fprintf(&b, "%s[href=\"#%s\"] { color: %s !important; }\n", selector, escapeAttr(tag), colors[tag])
	}
	return b.String()
}

var attrEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
