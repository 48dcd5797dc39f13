package stylesheet

import (
	"sort"
	"strings"
)

// AccentMarker is the substring that identifies an accent variable.
const AccentMarker = "accent"

// Discover returns the sorted, unique names of every custom property in src
// whose name contains "accent".
func Discover(src Source) []string {
	names := src.CustomProperties(func(name string) bool {
		return strings.Contains(name, AccentMarker)
	})
	sort.Strings(names)
	return names
}
