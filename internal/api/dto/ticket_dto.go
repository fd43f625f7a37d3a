package dto

import (
	"time"

	"github.com/eris-support/triage-service/internal/domain"
)

// IntakeTicketRequest is posted by the classification pipeline.
type IntakeTicketRequest struct {
	DateReceived  *time.Time          `json:"date_received"`
	FullName      string              `json:"full_name"`
	Company       string              `json:"company"`
	Phone         string              `json:"phone"`
	Email         string              `json:"email"`
	DeviceSerials []string            `json:"device_serials"`
	DeviceType    string              `json:"device_type"`
	Sentiment     domain.Sentiment    `json:"sentiment"`
	Category      domain.Category     `json:"category"`
	Summary       string              `json:"summary"`
	OriginalEmail string              `json:"original_email"`
	AIResponse    string              `json:"ai_response"`
	Status        domain.TicketStatus `json:"status"`
}

// PatchTicketRequest carries operator edits. Absent fields are unchanged.
type PatchTicketRequest struct {
	AIResponse *string              `json:"ai_response"`
	Status     *domain.TicketStatus `json:"status"`
}

// TicketSummary is one row of the ticket table.
type TicketSummary struct {
	ID            string              `json:"id"`
	DateReceived  time.Time           `json:"date_received"`
	FullName      string              `json:"full_name"`
	Company       string              `json:"company"`
	Phone         string              `json:"phone"`
	Email         string              `json:"email"`
	DeviceSerials []string            `json:"device_serials"`
	DeviceType    string              `json:"device_type"`
	Sentiment     domain.Sentiment    `json:"sentiment"`
	Category      domain.Category     `json:"category"`
	Summary       string              `json:"summary"`
	Status        domain.TicketStatus `json:"status"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	OriginalEmail string                `json:"original_email"`
	AIResponse    string                `json:"ai_response"`
	ChatHistory   []ChatMessageResponse `json:"chat_history"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// ChatMessageResponse represents one chat entry.
type ChatMessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PostMessageRequest appends a chat message.
type PostMessageRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// PostMessageResponse reports the appended message and its consequences.
type PostMessageResponse struct {
	Message    ChatMessageResponse  `json:"message"`
	Reply      *ChatMessageResponse `json:"reply,omitempty"`
	Status     domain.TicketStatus  `json:"status"`
	Escalated  bool                 `json:"escalated"`
	Suppressed bool                 `json:"reply_suppressed,omitempty"`
	ReplyError *ErrorBody           `json:"reply_error,omitempty"`
}

// ErrorBody mirrors the error envelope's inner object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusChangeResponse is one audit trail entry.
type StatusChangeResponse struct {
	ID        string              `json:"id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	ChangedBy string              `json:"changed_by,omitempty"`
	Reason    string              `json:"reason"`
	CreatedAt time.Time           `json:"created_at"`
}

// ContactsResponse is what the messenger bot reads for a ticket.
type ContactsResponse struct {
	ID            string   `json:"id"`
	FullName      string   `json:"full_name"`
	Company       string   `json:"company"`
	Phone         string   `json:"phone"`
	Email         string   `json:"email"`
	DeviceSerials []string `json:"device_serials"`
	DeviceType    string   `json:"device_type"`
}

// AllowedUsersResponse lists the messenger accounts the bot may serve.
type AllowedUsersResponse struct {
	Users  []int64 `json:"users"`
	Admins []int64 `json:"admins"`
}

// GeneratedAnswerResponse carries the drafted answer for the messenger bot.
type GeneratedAnswerResponse struct {
	ID         string `json:"id"`
	AIResponse string `json:"ai_response"`
}
