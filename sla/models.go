package sla

import "time"

// Deadlines are the time bounds applied to a case at filing time.
type Deadlines struct {
	ResponseHours            int
	ResolutionHours          int
	EscalationThresholdHours int
}

// DefaultPolicy applies when no configuration row matches the exact
// (dispute type, priority) pair. Filing is never blocked on missing
// configuration.
var DefaultPolicy = Deadlines{
	ResponseHours:            48,
	ResolutionHours:          720, // 30 days
	EscalationThresholdHours: 72,
}

// Configuration mirrors the dispute_sla_configurations table. Rows are
// read-only at case-filing time; edits apply only to future cases.
type Configuration struct {
	ID          string
	DisputeType string
	Priority    string
	Deadlines
	CreatedAt time.Time
	UpdatedAt time.Time
}
