package events

import (
	"time"

	"github.com/eris-support/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventChatMessageAppended EventType = "chat_message_appended"
	EventAutoReplySuppressed EventType = "auto_reply_suppressed"
)

// ChangeTypes lists every event that signals a changed ticket.
var ChangeTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketStatusChanged,
	EventTicketEscalated,
	EventChatMessageAppended,
}

// Event represents a domain event emitted by the store and services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// ChatMessageAppendedPayload payload.
type ChatMessageAppendedPayload struct {
	MessageID   string `json:"message_id"`
	Role        string `json:"role"`
	TextPreview string `json:"text_preview"`
}
