package tool

import (
	"time"
)

// Status tracks where a tool is in its lifecycle. A tool starts as
// pending_validation, moves to valid or invalid on first validation, and a
// valid tool moves to retired on removal. Invalid and retired tools are kept
// in the catalog for audit but are never executed.
type Status string

const (
	StatusPending Status = "pending_validation"
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusRetired Status = "retired"
)

// Descriptor is the catalog entry for a single tool.
type Descriptor struct {
	Name        string    `json:"name"`
	Type        string    `json:"tool_type"`
	Source      string    `json:"source"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at,omitzero"`
	UseCount    int       `json:"use_count"`
	Requirement string    `json:"requirement_text,omitempty"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
}

// Executable reports whether the tool may be run.
func (d Descriptor) Executable() bool {
	return d.Status == StatusValid
}

// Statistics is the derived aggregate view of the catalog.
type Statistics struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	MostUsed     string         `json:"most_used,omitempty"`
	MostUsedRuns int            `json:"most_used_runs,omitempty"`
}
