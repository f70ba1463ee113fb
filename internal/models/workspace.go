package models

import "time"

// WorkspaceInfo is the externally visible summary of one placement workspace.
type WorkspaceInfo struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"planId,omitempty"`
	PlanState    string    `json:"planState"`
	MachineCount int       `json:"machineCount"`
	Selected     *int      `json:"selected"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// Palette lists the colors handed out to new machines.
type Palette struct {
	Colors    []string `json:"colors" yaml:"colors"`
	Highlight string   `json:"highlight,omitempty" yaml:"highlight,omitempty"`
}
