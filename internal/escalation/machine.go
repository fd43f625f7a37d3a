// Package escalation decides how a ticket's status and chat input gating
// react to incoming messages and operator actions. Everything here is pure;
// callers evaluate inside their own per-ticket critical section.
package escalation

import (
	"strings"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// DefaultTriggers are the phrases that hand a ticket to a human operator.
var DefaultTriggers = []string{"call operator", "вызвать оператора"}

// Decision is the outcome of evaluating one incoming message.
type Decision struct {
	// Next is the status the ticket holds once the message is appended.
	Next domain.TicketStatus
	// Escalated is set when this message moved the ticket to needs_operator.
	Escalated bool
	// AutoReply reports whether the automated assistant may answer it.
	AutoReply bool
}

// Affordances tells the view layer which inputs to enable for a ticket.
type Affordances struct {
	OperatorInput bool `json:"operator_input"`
	AutoReply     bool `json:"auto_reply"`
	ClientInput   bool `json:"client_input"`
	Editable      bool `json:"editable"`
}

// Machine holds the configured trigger phrases.
type Machine struct {
	triggers []string
}

// New builds a machine; an empty list falls back to DefaultTriggers.
func New(triggers []string) *Machine {
	normalized := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			normalized = append(normalized, t)
		}
	}
	if len(normalized) == 0 {
		for _, t := range DefaultTriggers {
			normalized = append(normalized, strings.ToLower(t))
		}
	}
	return &Machine{triggers: normalized}
}

// ContainsTrigger reports whether text contains a trigger phrase, ignoring case.
func (m *Machine) ContainsTrigger(text string) bool {
	lowered := strings.ToLower(text)
	for _, t := range m.triggers {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}

// Evaluate decides whether a message from role may be appended to a ticket in
// status current, and what status the ticket ends up in.
func (m *Machine) Evaluate(current domain.TicketStatus, role domain.Role, text string) (Decision, error) {
	if current == domain.TicketStatusClosed {
		return Decision{}, apperrors.NewInvalidState("ticket is closed", map[string]any{"status": current})
	}
	if !current.Valid() {
		return Decision{}, apperrors.NewInvalidState("unknown ticket status", map[string]any{"status": current})
	}

	escalated := current == domain.TicketStatusNeedsOperator

	switch role {
	case domain.RoleUser:
		if escalated {
			return Decision{Next: current}, nil
		}
		if m.ContainsTrigger(text) {
			return Decision{Next: domain.TicketStatusNeedsOperator, Escalated: true}, nil
		}
		return Decision{Next: current, AutoReply: true}, nil
	case domain.RoleBot:
		if escalated {
			return Decision{}, apperrors.NewInvalidState("automated replies are suppressed while an operator handles the ticket", map[string]any{"status": current})
		}
		return Decision{Next: current}, nil
	case domain.RoleOperator:
		if !escalated {
			return Decision{}, apperrors.NewInvalidState("operator input requires an escalated ticket", map[string]any{"status": current})
		}
		return Decision{Next: current}, nil
	default:
		return Decision{}, apperrors.NewInvalidInput("unknown message role", map[string]any{"role": role.String()})
	}
}

// CheckAssignment validates a status set directly by an operator rather than
// by the escalation trigger.
func CheckAssignment(current, next domain.TicketStatus) error {
	if !next.Valid() {
		return apperrors.NewInvalidInput("unknown status", map[string]any{"status": next})
	}
	if current == domain.TicketStatusClosed {
		return apperrors.NewInvalidState("ticket is closed", map[string]any{"status": current})
	}
	if current == next {
		return nil
	}
	switch next {
	case domain.TicketStatusClosed:
		return nil
	case domain.TicketStatusNeedsOperator:
		return apperrors.NewInvalidState("needs_operator is entered only through the escalation trigger", map[string]any{"from": current, "to": next})
	}
	if next.Rank() < current.Rank() {
		return apperrors.NewInvalidState("status cannot move backwards", map[string]any{"from": current, "to": next})
	}
	return nil
}

// CheckIntake validates the status the classification pipeline assigned.
func CheckIntake(status domain.TicketStatus) error {
	switch status {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress:
		return nil
	}
	return apperrors.NewInvalidInput("intake status must be open or in_progress", map[string]any{"status": status})
}

// AffordancesFor reports the input paths available in status.
func AffordancesFor(status domain.TicketStatus) Affordances {
	switch status {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress:
		return Affordances{AutoReply: true, ClientInput: true, Editable: true}
	case domain.TicketStatusNeedsOperator:
		return Affordances{OperatorInput: true, ClientInput: true, Editable: true}
	}
	return Affordances{}
}
