// Package palette picks colors for tags that have none assigned.
package palette

import (
	"hash/fnv"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	goldenAngle = 137.50776405003785

	saturation = 0.65
	lightness  = 0.55
)

// ForTag returns the color a tag gets when nothing else is assigned. The same
// tag always maps to the same color.
func ForTag(tag string) string {
	return colorAt(hueFor(tag))
}

// Assign returns colors for every tag in tags that is missing from existing.
// Picks avoid colors already used in existing or earlier in the result.
func Assign(tags []string, existing map[string]string) map[string]string {
	used := make(map[string]struct{}, len(existing))
	for _, color := range existing {
		used[color] = struct{}{}
	}

	out := make(map[string]string)
	for _, tag := range tags {
		if _, ok := existing[tag]; ok {
			continue
		}
		if _, ok := out[tag]; ok {
			continue
		}
		color := ForTag(tag)
		hue := hueFor(tag)
		for i := 0; i < 360; i++ {
			if _, taken := used[color]; !taken {
				break
			}
			hue = math.Mod(hue+goldenAngle, 360)
			color = colorAt(hue)
		}
		used[color] = struct{}{}
		out[tag] = color
	}
	return out
}

func colorAt(hue float64) string {
	return colorful.Hsl(hue, saturation, lightness).Clamped().Hex()
}

func hueFor(tag string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tag))
	return math.Mod(float64(h.Sum32())*goldenAngle, 360)
}
