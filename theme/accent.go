package theme

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tagtint/colormodel"
	"tagtint/logger"
	"tagtint/style"
	"tagtint/stylesheet"
)

const (
	// ThemeBlockID identifies the style block holding accent overrides.
	ThemeBlockID = "tagtint-theme-color"

	// HueProperty and SaturationProperty are set directly on the body.
	HueProperty        = "--accent-h"
	SaturationProperty = "--accent-s"
)

// Override is the replacement value computed for one accent variable.
type Override struct {
	Name     string `json:"name"`
	Original string `json:"original"`
	Value    string `json:"value"`
}

// AccentApplier overrides theme accent variables with the hue and saturation
// of a target color. It is Active while its block is present in the registry.
type AccentApplier struct {
	registry *style.Registry
	source   stylesheet.Source
	log      *logger.Logger
}

// NewAccentApplier wires an applier to the registry it writes and the
// stylesheets it reads.
func NewAccentApplier(registry *style.Registry, source stylesheet.Source, log *logger.Logger) *AccentApplier {
	return &AccentApplier{
		registry: registry,
		source:   source,
		log:      log.Component("theme"),
	}
}

// Active reports whether an override is currently injected.
func (a *AccentApplier) Active() bool {
	_, ok := a.registry.Block(ThemeBlockID)
	return ok
}

// SetFileThemeColor injects overrides derived from hex, replacing any earlier ones.
func (a *AccentApplier) SetFileThemeColor(hex string) error {
	target, err := colormodel.HexToHSL(hex)
	if err != nil {
		return fmt.Errorf("set theme color: %w", err)
	}

	overrides := a.Overrides(target)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, o := range overrides {
		fmt.Fprintf(&b, "  --%s: %s !important;\n", o.Name, o.Value)
	}
	b.WriteString("}\n")

	a.registry.Set(ThemeBlockID, b.String())
	a.registry.SetProperty(HueProperty, strconv.Itoa(colormodel.RoundHue(target.H)), true)
	a.registry.SetProperty(SaturationProperty, fmt.Sprintf("%d%%", colormodel.RoundPercent(target.S)), true)

	a.log.WithFields(map[string]any{"color": hex, "overrides": len(overrides)}).Debug("theme color applied")
	return nil
}

// RemoveFileThemeColor removes the injected block and body properties.
func (a *AccentApplier) RemoveFileThemeColor() {
	removed := a.registry.Remove(ThemeBlockID)
	a.registry.RemoveProperty(HueProperty)
	a.registry.RemoveProperty(SaturationProperty)
	if removed {
		a.log.Debug("theme color removed")
	}
}

// Overrides computes the replacement for every discovered accent variable
// that can carry target's hue and saturation. Variables that are empty, refer
// to another variable, or have an unrecognised shape are left alone.
func (a *AccentApplier) Overrides(target colormodel.HSL) []Override {
	var out []Override
	for _, name := range stylesheet.Discover(a.source) {
		original := a.source.Resolve(name)
		if original == "" || strings.Contains(original, "var(") {
			continue
		}
		value, ok := a.override(name, original, target)
		if !ok {
			continue
		}
		out = append(out, Override{Name: name, Original: original, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *AccentApplier) override(name, original string, target colormodel.HSL) (string, bool) {
	switch {
	case strings.HasSuffix(name, "-h"):
		return strconv.Itoa(colormodel.RoundHue(target.H)), true

	case strings.HasSuffix(name, "-s"):
		return fmt.Sprintf("%d%%", colormodel.RoundPercent(target.S)), true

	case strings.HasSuffix(name, "-rgb"):
		rgb, err := colormodel.ParseRGB(original)
		if err != nil {
			a.log.WithFields(map[string]any{"variable": name, "value": original}).Warn("unparseable rgb accent, using fallback")
			rgb = colormodel.FallbackRGB
		}
		kept := rgb.HSL()
		return colormodel.FormatRGB(colormodel.HSLToRGB(target.H, target.S, kept.L)), true

	case strings.HasPrefix(original, "hsl("):
		hsl, err := colormodel.ParseHSL(original)
		if err != nil {
			a.log.WithFields(map[string]any{"variable": name, "value": original}).Warn("unparseable hsl accent, using fallback")
			hsl = colormodel.FallbackHSL
		}
		return colormodel.FormatHSL(colormodel.HSL{H: target.H, S: target.S, L: hsl.L}), true
	}
	return "", false
}
