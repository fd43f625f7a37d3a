package domain

import "time"

// StatusChange is an immutable audit trail entry for a status transition.
// ChangedBy is an operator id, or empty when the escalation trigger moved it.
type StatusChange struct {
	ID        string
	TicketID  string
	OldStatus TicketStatus
	NewStatus TicketStatus
	ChangedBy string
	Reason    string
	CreatedAt time.Time
}

// Reasons recorded with status changes.
const (
	ReasonIntake     = "intake"
	ReasonEscalation = "escalation_trigger"
	ReasonOperator   = "operator"
	ReasonSent       = "response_sent"
)
