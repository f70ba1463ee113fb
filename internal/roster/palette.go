package roster

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"regexp"
	"strings"

	"github.com/plan-placer/backend/internal/models"
	"gopkg.in/yaml.v3"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Palette hands out marker colors. New machines cycle through Colors; an
// empty or nil palette picks a random color per machine.
type Palette struct {
	models.Palette
}

// ValidColor reports whether c is a "#rrggbb" color.
func ValidColor(c string) bool { return hexColor.MatchString(c) }

// RandomColor returns a random "#rrggbb" color, always six digits.
func RandomColor() string {
	return fmt.Sprintf("#%06x", rand.Intn(0x1000000))
}

// Color returns the color for the n-th machine added.
func (p *Palette) Color(n int) string {
	if p == nil || len(p.Colors) == 0 {
		return RandomColor()
	}
	return p.Colors[n%len(p.Colors)]
}

// LoadPalette parses a YAML palette file.
func LoadPalette(filePath string) (*Palette, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParsePaletteFromReader(file)
}

// ParsePaletteFromReader parses a palette from an io.Reader:
//
//	colors:
//	  - "#1f77b4"
//	  - "#ff7f0e"
//	highlight: "#ffff00"
func ParsePaletteFromReader(r io.Reader) (*Palette, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var p Palette
	if err := yaml.Unmarshal(data, &p.Palette); err != nil {
		return nil, fmt.Errorf("parsing palette: %w", err)
	}

	for i, c := range p.Colors {
		c = strings.TrimSpace(c)
		if !ValidColor(c) {
			return nil, fmt.Errorf("palette color %d: invalid color %q", i, c)
		}
		p.Colors[i] = strings.ToLower(c)
	}
	if p.Highlight != "" && !ValidColor(p.Highlight) {
		return nil, fmt.Errorf("palette highlight: invalid color %q", p.Highlight)
	}

	return &p, nil
}
