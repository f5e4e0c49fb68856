package template

import "time"

// Template is reusable canned resolution text. Shared reference data,
// looked up by dispute type and resolution type to pre-fill resolution
// summaries. Not part of the case state machine.
type Template struct {
	ID             string
	DisputeType    string
	ResolutionType string
	Title          string
	Body           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
