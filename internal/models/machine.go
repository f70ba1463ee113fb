// Package models contains domain types for the plan placer.
package models

// Machine is one named marker placed on the plan.
// X and Y are plan-local world units, not pixels.
type Machine struct {
	Name  string  `json:"name" msgpack:"name"`
	Color string  `json:"color" msgpack:"color"` // "#rrggbb"
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
}
