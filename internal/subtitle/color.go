// SPDX-License-Identifier: MIT

package subtitle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dschwenke/clippy/internal/errkind"
)

// Color is an RGB triple. The styled-subtitle engine wants it packed as
// &H00BBGGRR; clients speak #RRGGBB.
type Color struct {
	R, G, B uint8
}

// ParseHexColor parses #RRGGBB.
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, errkind.New(errkind.KindParse, "bad hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, errkind.New(errkind.KindParse, "bad hex color %q", s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ParseASSColor parses &H00BBGGRR (the alpha byte is ignored).
func ParseASSColor(s string) (Color, error) {
	hex := strings.TrimSpace(s)
	hex = strings.TrimPrefix(hex, "&H")
	hex = strings.TrimSuffix(hex, "&")
	if len(hex) > 8 {
		return Color{}, errkind.New(errkind.KindParse, "bad subtitle color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, errkind.New(errkind.KindParse, "bad subtitle color %q", s)
	}
	return Color{B: uint8(v >> 16), G: uint8(v >> 8), R: uint8(v)}, nil
}

// Hex renders #RRGGBB.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ASS renders &H00BBGGRR, the byte order the subtitle engine expects.
func (c Color) ASS() string {
	return fmt.Sprintf("&H00%02X%02X%02X", c.B, c.G, c.R)
}

// Canonical speaker palette. Labels beyond the palette fall back to white.
var speakerPalette = map[string]Color{
	"Speaker 1": {R: 0xFF, G: 0x45, B: 0x00}, // fire red/orange
	"Speaker 2": {R: 0x00, G: 0xBF, B: 0xFF}, // electric blue
	"Speaker 3": {R: 0x00, G: 0xFF, B: 0x88}, // neon green
}

var colorWhite = Color{R: 0xFF, G: 0xFF, B: 0xFF}

// SpeakerColor returns the canonical color for a speaker label.
func SpeakerColor(label string) Color {
	if c, ok := speakerPalette[label]; ok {
		return c
	}
	return colorWhite
}
