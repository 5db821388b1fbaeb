package models

import "time"

// OutcomeStatus is the terminal state of one session
type OutcomeStatus string

const (
	OutcomeCompleted   OutcomeStatus = "completed"
	OutcomeAuthFailed  OutcomeStatus = "auth_failed"
	OutcomeDriverError OutcomeStatus = "driver_error"
	OutcomeCancelled   OutcomeStatus = "cancelled"
)

// OutcomeStatuses lists every status in report order
var OutcomeStatuses = []OutcomeStatus{OutcomeCompleted, OutcomeAuthFailed, OutcomeDriverError, OutcomeCancelled}

// SessionOutcome records how a session ended. Outcomes are never modified once recorded.
type SessionOutcome struct {
	Name      string        `json:"name"`
	Status    OutcomeStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
}

// Duration is how long the session held its slot. Sessions that never started report zero.
func (o SessionOutcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.EndedAt.Before(o.StartedAt) {
		return 0
	}
	return o.EndedAt.Sub(o.StartedAt)
}

// BatchReport is the aggregate result of one drained batch
type BatchReport struct {
	RunID     string           `json:"runId"`
	Capacity  int              `json:"capacity"`
	StartedAt time.Time        `json:"startedAt"`
	EndedAt   time.Time        `json:"endedAt"`
	Outcomes  []SessionOutcome `json:"outcomes"`
}

// Counts tallies outcomes per status
func (r BatchReport) Counts() map[OutcomeStatus]int {
	counts := make(map[OutcomeStatus]int, len(OutcomeStatuses))
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}
