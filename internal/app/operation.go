package app

import (
	"time"

	"mcard-go/internal/mcard"
)

// Operation tracks one CLI command or server session. Its ID tags every log
// line written while it runs.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "running", "success" or "error"
}

// NewOperation starts an operation named name.
func NewOperation(name string, ids mcard.IDGenerator, clock mcard.Clock) *Operation {
	return &Operation{
		ID:        ids.New(),
		Name:      name,
		StartedAt: clock.Now(),
		Status:    "running",
	}
}

// Finish records the outcome and returns how long the operation ran.
// Finishing twice keeps the first outcome.
func (op *Operation) Finish(err error, clock mcard.Clock) time.Duration {
	if op.Status == "running" {
		op.Status = "success"
		if err != nil {
			op.Status = "error"
		}
	}
	return clock.Now().Sub(op.StartedAt)
}
