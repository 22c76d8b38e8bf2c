package models

import "time"

// CommandRecord is one deduplicated shell command in the history database
type CommandRecord struct {
	ID            int64
	RawCommand    string
	MaskedCommand string
	QuerySummary  string
	Explanation   string
	Category      string
	Favorite      bool
	UsageCount    int64
	CreatedAt     int64 // Unix seconds of the most recent use
}

// NewCommandRecord creates a record for a command typed in a shell session
func NewCommandRecord(raw, masked string) *CommandRecord {
	return &CommandRecord{
		RawCommand:    raw,
		MaskedCommand: masked,
		QuerySummary:  CategoryShellHistory,
		Explanation:   "Automatic tracking",
		Category:      CategoryShellHistory,
		UsageCount:    1,
		CreatedAt:     time.Now().Unix(),
	}
}

// LastUsed returns CreatedAt as a time.Time
func (r CommandRecord) LastUsed() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// ProfileReport is one generated skill profile. The newest row is the current state.
type ProfileReport struct {
	ID              int64
	ReportText      string
	LastProcessedID int64
	CreatedAt       int64
}
