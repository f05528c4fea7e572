package model

import "time"

// Status is the process-style outcome of an entry point.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusAdvisory Status = "advisory"
	StatusFatal    Status = "fatal"
)

// StatusOf maps an error to a Status: nil is success, an advisory
// governance error is advisory, anything else is fatal.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case IsAdvisory(err):
		return StatusAdvisory
	}
	return StatusFatal
}

// RunRecord summarizes one tagging run for the audit ledger.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Commit    string    `json:"commit,omitempty"`
	Status    Status    `json:"status"`
	State     string    `json:"state"`
	Code      ErrorCode `json:"code,omitempty"`
	TagName   string    `json:"tag,omitempty"`
	Version   string    `json:"version,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	Sinphase  float64   `json:"sinphase"`
	Threshold float64   `json:"threshold"`
	Checksum  string    `json:"checksum,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`
}
