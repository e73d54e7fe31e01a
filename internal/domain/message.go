package domain

import "time"

// DeliveryStatus is the final state of one recipient in a run.
type DeliveryStatus string

const (
	StatusSent     DeliveryStatus = "sent"
	StatusDegraded DeliveryStatus = "degraded" // delivered, but with different media than requested
	StatusFailed   DeliveryStatus = "failed"
	StatusSkipped  DeliveryStatus = "skipped" // run cancelled before this recipient was reached
)

// Delivered reports whether the message reached the channel.
func (s DeliveryStatus) Delivered() bool {
	return s == StatusSent || s == StatusDegraded
}

// DeliveryOutcome is produced exactly once per recipient.
type DeliveryOutcome struct {
	Recipient RecipientRecord `json:"recipient"`
	Address   Address         `json:"address,omitempty"`
	Status    DeliveryStatus  `json:"status"`
	Detail    string          `json:"detail"`
	Duration  time.Duration   `json:"duration"`
}

// Receipt is what a channel reports for a successful Deliver call.
type Receipt struct {
	Degraded bool
	Detail   string
}

// RunProgress counts completed recipients. 0 <= Completed <= Total.
type RunProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Fraction returns progress in [0,1].
func (p RunProgress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

// Summary is emitted when a run reaches Completed, on every exit path.
type Summary struct {
	RunID     string            `json:"run_id"`
	Sent      int               `json:"sent"`
	Degraded  int               `json:"degraded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Outcomes  []DeliveryOutcome `json:"outcomes"`
	Fatal     string            `json:"fatal,omitempty"` // run-level failure, if any
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
}

// Delivered is Sent + Degraded.
func (s Summary) Delivered() int { return s.Sent + s.Degraded }

// Record appends an outcome and updates the tally.
func (s *Summary) Record(o DeliveryOutcome) {
	switch o.Status {
	case StatusSent:
		s.Sent++
	case StatusDegraded:
		s.Degraded++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	s.Outcomes = append(s.Outcomes, o)
}
