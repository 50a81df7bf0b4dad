package render

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultColor is the color of the series without a palette entry.
const DefaultColor = "#22c55e"

var palette = mustPalette(map[string]string{
	"Tráfico":    "#22d3ee",
	"Conversion": "#a855f7",
	"Tickets":    "#f59e0b",
})

var defaultColor = mustHex(DefaultColor)

// Color returns the color of a series label. The same label always gets
// the same color.
func Color(label string) colorful.Color {
	if c, ok := palette[label]; ok {
		return c
	}
	return defaultColor
}

// ColorHex returns the color of a series label in #rrggbb format.
func ColorHex(label string) string {
	return Color(label).Hex()
}

func mustPalette(m map[string]string) map[string]colorful.Color {
	p := make(map[string]colorful.Color, len(m))
	for label, hex := range m {
		p[label] = mustHex(hex)
	}
	return p
}

func mustHex(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		panic(fmt.Sprintf("invalid palette color %q: %s", hex, err))
	}
	return c
}
