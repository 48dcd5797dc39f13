package colormodel

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexToHSLPrimaries(t *testing.T) {
	t.Parallel()

	cases := map[string]HSL{
		"#ff0000": {H: 0, S: 100, L: 50},
		"#00ff00": {H: 120, S: 100, L: 50},
		"#0000ff": {H: 240, S: 100, L: 50},
		"ffffff":  {H: 0, S: 0, L: 100},
		"#000000": {H: 0, S: 0, L: 0},
		"#808080": {H: 0, S: 0, L: 50.19607843137255},
	}
	for hex, want := range cases {
		got, err := HexToHSL(hex)
		require.NoError(t, err, hex)
		assert.InDelta(t, want.H, got.H, 1e-9, hex)
		assert.InDelta(t, want.S, got.S, 1e-9, hex)
		assert.InDelta(t, want.L, got.L, 1e-9, hex)
	}
}

func TestHexToHSLRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "#fff", "#ff00000", "#gg0000", "ff 000", "rgb(1,2,3)"} {
		_, err := HexToHSL(in)
		var perr *ParseError
		require.Error(t, err, in)
		require.True(t, errors.As(err, &perr), in)
		assert.Equal(t, "hex", perr.Kind)
	}
}

func TestHexToHSLMatchesColorful(t *testing.T) {
	t.Parallel()

	for _, hex := range []string{"#3366cc", "#a1b2c3", "#fe01dc", "#123456", "#77aa00"} {
		ours, err := HexToHSL(hex)
		require.NoError(t, err)

		ref, err := colorful.Hex(hex)
		require.NoError(t, err)
		h, s, l := ref.Hsl()

		assert.InDelta(t, h, ours.H, 1e-6, hex)
		assert.InDelta(t, s*100, ours.S, 1e-6, hex)
		assert.InDelta(t, l*100, ours.L, 1e-6, hex)
	}
}

func TestHexRoundTrip(t *testing.T) {
	t.Parallel()

	for r := 0; r < 256; r += 17 {
		for g := 0; g < 256; g += 17 {
			for b := 0; b < 256; b += 17 {
				in := RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
				hsl, err := HexToHSL(in.Hex())
				require.NoError(t, err)

				out, err := ParseHex(hsl.Hex())
				require.NoError(t, err)
				assertChannelsClose(t, in, out, 1)

				viaRGB := hsl.RGB()
				assertChannelsClose(t, in, viaRGB, 1)
			}
		}
	}
}

func TestHSLToRGBRoundTrip(t *testing.T) {
	t.Parallel()

	for h := 0.0; h < 360; h += 15 {
		for _, s := range []float64{40, 60, 80, 100} {
			for _, l := range []float64{30, 40, 50, 60, 70} {
				c := HSLToRGB(h, s, l)
				got := RGBToHSL(c.R, c.G, c.B)

				name := fmt.Sprintf("hsl(%v,%v,%v)", h, s, l)
				assert.LessOrEqual(t, hueDistance(h, got.H), 3.0, name)
				assert.InDelta(t, s, got.S, 1.5, name)
				assert.InDelta(t, l, got.L, 0.5, name)
			}
		}
	}
}

func TestHSLToRGBAchromatic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RGB{R: 128, G: 128, B: 128}, HSLToRGB(200, 0, 50))
	assert.Equal(t, RGB{R: 255, G: 255, B: 255}, HSLToRGB(10, 80, 100))
	assert.Equal(t, RGB{}, HSLToRGB(10, 80, 0))
}

func TestHSLToRGBKnownValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RGB{R: 255}, HSLToRGB(0, 100, 50))
	assert.Equal(t, RGB{G: 255}, HSLToRGB(120, 100, 50))
	assert.Equal(t, RGB{B: 255}, HSLToRGB(240, 100, 50))
	assert.Equal(t, RGB{R: 255}, HSLToRGB(360, 100, 50))
	assert.Equal(t, RGB{R: 51, G: 102, B: 204}, HSLToRGB(220, 60, 50))
}

func TestParseHSL(t *testing.T) {
	t.Parallel()

	got, err := ParseHSL("hsl(200, 50%, 40%)")
	require.NoError(t, err)
	assert.Equal(t, HSL{H: 200, S: 50, L: 40}, got)

	got, err = ParseHSL("  hsl(360,0%,100%) ")
	require.NoError(t, err)
	assert.Equal(t, HSL{H: 0, S: 0, L: 100}, got)

	for _, in := range []string{"garbage", "hsl(200, 50, 40)", "hsl(20.5, 50%, 40%)", "hsl(200, 150%, 40%)", "hsla(1, 2%, 3%, 1)"} {
		_, err := ParseHSL(in)
		require.Error(t, err, in)
	}
}

func TestParseRGB(t *testing.T) {
	t.Parallel()

	got, err := ParseRGB("rgb(12, 34, 255)")
	require.NoError(t, err)
	assert.Equal(t, RGB{R: 12, G: 34, B: 255}, got)

	for _, in := range []string{"rgb(256, 0, 0)", "12, 34, 56", "rgba(1, 2, 3, 0.5)", ""} {
		_, err := ParseRGB(in)
		require.Error(t, err, in)
	}
}

func TestHSLStringToHex(t *testing.T) {
	t.Parallel()

	got, err := HSLStringToHex("hsl(0, 100%, 50%)")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", got)

	got, err = HSLStringToHex("hsl(220, 60%, 50%)")
	require.NoError(t, err)
	assert.Equal(t, "#3366cc", got)

	_, err = HSLStringToHex("not a color")
	require.Error(t, err)
}

func TestFormatters(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hsl(220, 60%, 50%)", FormatHSL(HSL{H: 219.6, S: 60.2, L: 49.5}))
	assert.Equal(t, "hsl(0, 10%, 20%)", FormatHSL(HSL{H: 359.7, S: 10, L: 20}))
	assert.Equal(t, "rgb(1, 2, 3)", FormatRGB(RGB{R: 1, G: 2, B: 3}))

	n, err := NormalizeHex("ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "#abcdef", n)
}

func assertChannelsClose(t *testing.T, want, got RGB, tol int) {
	t.Helper()
	diff := func(a, b uint8) int {
		d := int(a) - int(b)
		if d < 0 {
			return -d
		}
		return d
	}
	assert.LessOrEqual(t, diff(want.R, got.R), tol, "red %s vs %s", want.Hex(), got.Hex())
	assert.LessOrEqual(t, diff(want.G, got.G), tol, "green %s vs %s", want.Hex(), got.Hex())
	assert.LessOrEqual(t, diff(want.B, got.B), tol, "blue %s vs %s", want.Hex(), got.Hex())
}

func hueDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 360-d)
}
