// Package colormodel converts between hex, RGB and HSL color representations.
//
// Hue is expressed in degrees [0,360), saturation and lightness in percent [0,100].
package colormodel

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RGB is an sRGB color with 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// HSL is a color in hue/saturation/lightness form.
type HSL struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	L float64 `json:"l"`
}

// Values substituted by callers when a color string cannot be parsed.
var (
	FallbackHSL = HSL{H: 0, S: 0, L: 50}
	FallbackRGB = RGB{R: 0, G: 0, B: 0}
	FallbackHex = "#000000"
)

var (
	hexPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)
	hslPattern = regexp.MustCompile(`^hsl\(\s*(\d+)\s*,\s*(\d+)%\s*,\s*(\d+)%\s*\)$`)
	rgbPattern = regexp.MustCompile(`^rgb\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\)$`)
)

// ParseError reports a malformed color string.
type ParseError struct {
	Kind  string
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s color %q", e.Kind, e.Input)
}

// ParseHex parses a 6-digit hex color, with or without the leading '#'.
func ParseHex(hex string) (RGB, error) {
	m := hexPattern.FindStringSubmatch(strings.TrimSpace(hex))
	if m == nil {
		return RGB{}, &ParseError{Kind: "hex", Input: hex}
	}
	v, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return RGB{}, &ParseError{Kind: "hex", Input: hex}
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// NormalizeHex returns hex as lowercase "#rrggbb".
func NormalizeHex(hex string) (string, error) {
	c, err := ParseHex(hex)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

// HexToHSL parses hex and converts it to HSL.
func HexToHSL(hex string) (HSL, error) {
	c, err := ParseHex(hex)
	if err != nil {
		return HSL{}, err
	}
	return RGBToHSL(c.R, c.G, c.B), nil
}

// RGBToHSL converts 8-bit channels to HSL.
func RGBToHSL(r, g, b uint8) HSL {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	l := (max + min) / 2

	if max == min {
		return HSL{H: 0, S: 0, L: l * 100}
	}

	d := max - min
	var s float64
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	var h float64
	switch max {
	case rf:
		h = (gf - bf) / d
		if gf < bf {
			h += 6
		}
	case gf:
		h = (bf-rf)/d + 2
	default:
		h = (rf-gf)/d + 4
	}
	h *= 60
	if h >= 360 {
		h -= 360
	}

	return HSL{H: h, S: s * 100, L: l * 100}
}

// HSLToRGB converts HSL to 8-bit channels, rounding to the nearest integer.
func HSLToRGB(h, s, l float64) RGB {
	hf := normalizeHue(h) / 360
	sf := clamp(s, 0, 100) / 100
	lf := clamp(l, 0, 100) / 100

	if sf == 0 {
		v := channel(lf)
		return RGB{R: v, G: v, B: v}
	}

	var q float64
	if lf < 0.5 {
		q = lf * (1 + sf)
	} else {
		q = lf + sf - lf*sf
	}
	p := 2*lf - q

	return RGB{
		R: channel(hueToRGB(p, q, hf+1.0/3)),
		G: channel(hueToRGB(p, q, hf)),
		B: channel(hueToRGB(p, q, hf-1.0/3)),
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// RGB converts the color to 8-bit channels.
func (c HSL) RGB() RGB {
	return HSLToRGB(c.H, c.S, c.L)
}

// Hex converts the color directly to lowercase "#rrggbb" using the
// a = s*min(l, 1-l) formulation.
func (c HSL) Hex() string {
	h := normalizeHue(c.H)
	s := clamp(c.S, 0, 100) / 100
	l := clamp(c.L, 0, 100) / 100
	a := s * math.Min(l, 1-l)

	f := func(n float64) uint8 {
		k := math.Mod(n+h/30, 12)
		return channel(l - a*math.Max(-1, math.Min(k-3, math.Min(9-k, 1))))
	}
	return RGB{R: f(0), G: f(8), B: f(4)}.Hex()
}

// String formats the color as hsl(h, s%, l%) with integer components.
func (c HSL) String() string {
	return FormatHSL(c)
}

// Hex formats the color as lowercase "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// HSL converts the color to HSL.
func (c RGB) HSL() HSL {
	return RGBToHSL(c.R, c.G, c.B)
}

// String formats the color as rgb(r, g, b).
func (c RGB) String() string {
	return FormatRGB(c)
}

// ParseHSL matches "hsl(H, S%, L%)" with integer components.
func ParseHSL(s string) (HSL, error) {
	m := hslPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return HSL{}, &ParseError{Kind: "hsl", Input: s}
	}
	h, _ := strconv.Atoi(m[1])
	sat, _ := strconv.Atoi(m[2])
	l, _ := strconv.Atoi(m[3])
	if h > 360 || sat > 100 || l > 100 {
		return HSL{}, &ParseError{Kind: "hsl", Input: s}
	}
	return HSL{H: normalizeHue(float64(h)), S: float64(sat), L: float64(l)}, nil
}

// ParseRGB matches "rgb(R, G, B)" with integer components in [0,255].
func ParseRGB(s string) (RGB, error) {
	m := rgbPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return RGB{}, &ParseError{Kind: "rgb", Input: s}
	}
	var out [3]uint8
	for i := range out {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v > 255 {
			return RGB{}, &ParseError{Kind: "rgb", Input: s}
		}
		out[i] = uint8(v)
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}

// HSLStringToHex converts an "hsl(H, S%, L%)" string to lowercase "#rrggbb".
func HSLStringToHex(s string) (string, error) {
	c, err := ParseHSL(s)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

// FormatHSL renders c as "hsl(h, s%, l%)", rounding each component.
func FormatHSL(c HSL) string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", roundHue(c.H), round(c.S), round(c.L))
}

// FormatRGB renders c as "rgb(r, g, b)".
func FormatRGB(c RGB) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// RoundHue rounds h to whole degrees in [0,360).
func RoundHue(h float64) int {
	return roundHue(h)
}

// RoundPercent rounds a saturation or lightness value to a whole percent.
func RoundPercent(v float64) int {
	return round(clamp(v, 0, 100))
}

func roundHue(h float64) int {
	v := int(math.Round(normalizeHue(h)))
	if v >= 360 {
		v -= 360
	}
	return v
}

func round(v float64) int {
	return int(math.Round(v))
}

func normalizeHue(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func channel(v float64) uint8 {
	return uint8(math.Round(clamp(v, 0, 1) * 255))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
