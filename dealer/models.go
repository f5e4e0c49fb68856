package dealer

import "time"

// Profile captures the subset of dealer data exposed via the public API
// layer, enough for a buyer to pick the respondent when filing.
type Profile struct {
	ID        string
	Name      string
	RNC       string // Dominican tax registration number
	Verified  bool
	CreatedAt time.Time
}
