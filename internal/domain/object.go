package domain

import (
	"fmt"
	"strings"
)

// Color is an RGB display color used by renderers to tint an object's masks
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses the "#rrggbb" form produced by Hex
func ParseColor(s string) (Color, error) {
	var c Color
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid color %q", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// Palette is cycled through by object id when an object is created without an explicit color
var Palette = []Color{
	{0, 0, 255},     // blue
	{0, 255, 0},     // green
	{255, 0, 0},     // red
	{0, 255, 255},   // cyan
	{255, 0, 255},   // magenta
	{255, 255, 0},   // yellow
	{128, 0, 128},   // purple
	{255, 165, 0},   // orange
}

// PaletteColor returns the default color for an object id
func PaletteColor(id int) Color {
	if id < 0 {
		id = -id
	}
	return Palette[id%len(Palette)]
}

// ObjectDefinition is a class of object the operator labels in a video
type ObjectDefinition struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// NameKey is the case-insensitive identity of an object name
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
