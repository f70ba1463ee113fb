// Package roster holds the ordered list of machines placed on a plan and
// the current selection.
package roster

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/plan-placer/backend/internal/models"
)

// NoSelection marks the absence of a selected machine.
const NoSelection = -1

var (
	ErrEmptyName       = errors.New("machine name is required")
	ErrInvalidIndex    = errors.New("machine index out of range")
	ErrInvalidPosition = errors.New("machine position must be finite")
)

// Roster is an index-addressed machine list. Indexes are dense: removing an
// entry shifts every later entry down by one. Not safe for concurrent use.
type Roster struct {
	machines []models.Machine
	selected int
	palette  *Palette
	added    int
}

// New returns an empty roster. A nil palette hands out random colors.
func New(palette *Palette) *Roster {
	return &Roster{selected: NoSelection, palette: palette}
}

// Len returns the number of machines.
func (r *Roster) Len() int { return len(r.machines) }

// At returns machine i. It panics if i is out of range, like a slice index.
func (r *Roster) At(i int) models.Machine { return r.machines[i] }

// Get returns machine i.
func (r *Roster) Get(i int) (models.Machine, error) {
	if !r.valid(i) {
		return models.Machine{}, fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	return r.machines[i], nil
}

// List returns a copy of all machines.
func (r *Roster) List() []models.Machine {
	out := make([]models.Machine, len(r.machines))
	copy(out, r.machines)
	return out
}

// Add appends a machine at the origin with the next palette color and
// returns its index.
func (r *Roster) Add(name string) (int, models.Machine, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return NoSelection, models.Machine{}, ErrEmptyName
	}

	m := models.Machine{Name: name, Color: r.palette.Color(r.added)}
	r.added++
	r.machines = append(r.machines, m)
	return len(r.machines) - 1, m, nil
}

// Remove deletes machine i. Removing the selected machine clears the
// selection; removing one before it shifts the selection down so it keeps
// pointing at the same machine.
func (r *Roster) Remove(i int) error {
	if !r.valid(i) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	r.machines = append(r.machines[:i], r.machines[i+1:]...)

	switch {
	case r.selected == i:
		r.selected = NoSelection
	case r.selected > i:
		r.selected--
	}
	return nil
}

// RemoveAll deletes every machine and clears the selection.
func (r *Roster) RemoveAll() {
	r.machines = nil
	r.selected = NoSelection
}

// Rename changes the name of machine i.
func (r *Roster) Rename(i int, name string) error {
	if !r.valid(i) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	r.machines[i].Name = name
	return nil
}

// UpdatePosition moves machine i. Any finite position is accepted as is.
func (r *Roster) UpdatePosition(i int, x, y float64) error {
	if !r.valid(i) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return ErrInvalidPosition
	}
	r.machines[i].X = x
	r.machines[i].Y = y
	return nil
}

// Edit is a partial update of one machine. Nil fields are left unchanged;
// X and Y are applied together.
type Edit struct {
	Name *string
	X, Y *float64
}

// Update applies e to machine i. Nothing changes unless every field is valid.
func (r *Roster) Update(i int, e Edit) (models.Machine, error) {
	if !r.valid(i) {
		return models.Machine{}, fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	m := r.machines[i]
	if e.Name != nil {
		name := strings.TrimSpace(*e.Name)
		if name == "" {
			return models.Machine{}, ErrEmptyName
		}
		m.Name = name
	}
	if (e.X == nil) != (e.Y == nil) {
		return models.Machine{}, ErrInvalidPosition
	}
	if e.X != nil {
		x, y := *e.X, *e.Y
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return models.Machine{}, ErrInvalidPosition
		}
		m.X, m.Y = x, y
	}
	r.machines[i] = m
	return m, nil
}

// Select marks machine i as selected.
func (r *Roster) Select(i int) error {
	if !r.valid(i) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	r.selected = i
	return nil
}

// ClearSelection drops the selection.
func (r *Roster) ClearSelection() { r.selected = NoSelection }

// Selected returns the selected index, or NoSelection and false.
func (r *Roster) Selected() (int, bool) {
	if !r.valid(r.selected) {
		return NoSelection, false
	}
	return r.selected, true
}

func (r *Roster) valid(i int) bool {
	return i >= 0 && i < len(r.machines)
}
