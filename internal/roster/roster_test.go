package roster

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plan-placer/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoster(t *testing.T, names ...string) *Roster {
	t.Helper()
	r := New(nil)
	for _, n := range names {
		if _, _, err := r.Add(n); err != nil {
			t.Fatalf("Add(%q): %v", n, err)
		}
	}
	return r
}

func TestRoster_Add(t *testing.T) {
	r := New(nil)

	idx, m, err := r.Add("  Press 1  ")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "Press 1", m.Name)
	assert.True(t, ValidColor(m.Color), "color %q", m.Color)
	assert.Equal(t, 0.0, m.X)
	assert.Equal(t, 0.0, m.Y)

	_, _, err = r.Add("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Equal(t, 1, r.Len())
}

func TestRoster_RemoveReconcilesSelection(t *testing.T) {
	tests := []struct {
		name         string
		selected     int
		remove       int
		wantSelected int
		wantName     string
	}{
		{name: "remove before selection shifts it", selected: 2, remove: 0, wantSelected: 1, wantName: "C"},
		{name: "remove selected clears it", selected: 1, remove: 1, wantSelected: NoSelection},
		{name: "remove after selection keeps it", selected: 0, remove: 2, wantSelected: 0, wantName: "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRoster(t, "A", "B", "C")
			require.NoError(t, r.Select(tt.selected))

			require.NoError(t, r.Remove(tt.remove))
			assert.Equal(t, 2, r.Len())

			sel, ok := r.Selected()
			assert.Equal(t, tt.wantSelected, sel)
			assert.Equal(t, tt.wantSelected != NoSelection, ok)
			if ok {
				// The highlight stays on the same logical machine. Without the
				// shift the old index 2 would now be out of range (or point at
				// the wrong entry).
				assert.Equal(t, tt.wantName, r.At(sel).Name)
			}
		})
	}
}

func TestRoster_RemoveShiftsIndexes(t *testing.T) {
	r := newTestRoster(t, "A", "B", "C")
	require.NoError(t, r.Remove(1))

	names := []string{}
	for _, m := range r.List() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"A", "C"}, names)

	assert.ErrorIs(t, r.Remove(5), ErrInvalidIndex)
	assert.ErrorIs(t, r.Remove(-1), ErrInvalidIndex)
}

func TestRoster_RemoveAll(t *testing.T) {
	r := newTestRoster(t, "A", "B")
	require.NoError(t, r.Select(1))

	r.RemoveAll()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Selected()
	assert.False(t, ok)
}

func TestRoster_UpdatePositionIsExact(t *testing.T) {
	r := newTestRoster(t, "A", "B")

	require.NoError(t, r.UpdatePosition(1, 3.5, -2.0))
	m, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 3.5, m.X)
	assert.Equal(t, -2.0, m.Y)

	// Far outside any plan is still accepted: no clamping.
	require.NoError(t, r.UpdatePosition(0, -1e6, 1e6))
	assert.Equal(t, -1e6, r.At(0).X)

	assert.ErrorIs(t, r.UpdatePosition(0, math.NaN(), 0), ErrInvalidPosition)
	assert.ErrorIs(t, r.UpdatePosition(7, 0, 0), ErrInvalidIndex)
}

func TestRoster_Rename(t *testing.T) {
	r := newTestRoster(t, "A")
	require.NoError(t, r.Rename(0, " Lathe "))
	assert.Equal(t, "Lathe", r.At(0).Name)
	assert.ErrorIs(t, r.Rename(0, ""), ErrEmptyName)
	assert.ErrorIs(t, r.Rename(3, "x"), ErrInvalidIndex)
}

func TestRoster_Update(t *testing.T) {
	r := newTestRoster(t, "A")
	name := " Drill "
	x, y := 3.5, -2.0

	m, err := r.Update(0, Edit{Name: &name, X: &x, Y: &y})
	require.NoError(t, err)
	assert.Equal(t, "Drill", m.Name)
	assert.Equal(t, 3.5, m.X)
	assert.Equal(t, r.At(0), m)

	tests := []struct {
		name string
		edit Edit
		err  error
	}{
		{"empty name with valid move", Edit{Name: new(string), X: &y, Y: &x}, ErrEmptyName},
		{"valid name with NaN", Edit{Name: &name, X: ptr(math.NaN()), Y: &y}, ErrInvalidPosition},
		{"x without y", Edit{Name: &name, X: &y}, ErrInvalidPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Update(0, tt.edit)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, m, r.At(0), "a rejected edit changes nothing")
		})
	}

	_, err = r.Update(4, Edit{Name: &name})
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func ptr(f float64) *float64 { return &f }

func TestRoster_Select(t *testing.T) {
	r := newTestRoster(t, "A")
	assert.True(t, errors.Is(r.Select(1), ErrInvalidIndex))
	_, ok := r.Selected()
	assert.False(t, ok)

	require.NoError(t, r.Select(0))
	sel, ok := r.Selected()
	assert.True(t, ok)
	assert.Equal(t, 0, sel)

	r.ClearSelection()
	_, ok = r.Selected()
	assert.False(t, ok)
}

func TestRoster_ListIsACopy(t *testing.T) {
	r := newTestRoster(t, "A")
	list := r.List()
	list[0].Name = "mutated"
	assert.Equal(t, "A", r.At(0).Name)
}

func TestRandomColor(t *testing.T) {
	for i := 0; i < 200; i++ {
		c := RandomColor()
		if !ValidColor(c) {
			t.Fatalf("RandomColor() = %q, want #rrggbb", c)
		}
	}
}

func TestParsePalette(t *testing.T) {
	content := `
colors:
  - "#1F77B4"
  - "#ff7f0e"
highlight: "#ffff00"
`
	p, err := ParsePaletteFromReader(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, []string{"#1f77b4", "#ff7f0e"}, p.Colors)
	assert.Equal(t, "#ffff00", p.Highlight)

	r := New(p)
	var colors []string
	for _, n := range []string{"A", "B", "C"} {
		_, m, err := r.Add(n)
		require.NoError(t, err)
		colors = append(colors, m.Color)
	}
	assert.Equal(t, []string{"#1f77b4", "#ff7f0e", "#1f77b4"}, colors)
}

func TestParsePalette_Invalid(t *testing.T) {
	_, err := ParsePaletteFromReader(strings.NewReader("colors: [\"red\"]"))
	assert.Error(t, err)

	_, err = ParsePaletteFromReader(strings.NewReader("colors: [\"#000000\"]\nhighlight: yellow"))
	assert.Error(t, err)

	_, err = ParsePaletteFromReader(strings.NewReader("colors: {"))
	assert.Error(t, err)
}

func TestLoadPalette(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(path, []byte("colors:\n  - \"#00c853\"\n"), 0644))

	p, err := LoadPalette(path)
	require.NoError(t, err)
	assert.Equal(t, models.Palette{Colors: []string{"#00c853"}}, p.Palette)

	_, err = LoadPalette(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
