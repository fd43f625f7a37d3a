package domain

import (
	"slices"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusInProgress    TicketStatus = "in_progress"
	TicketStatusNeedsOperator TicketStatus = "needs_operator"
	TicketStatusClosed        TicketStatus = "closed"
)

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s TicketStatus) Rank() int {
	switch s {
	case TicketStatusOpen:
		return 0
	case TicketStatusInProgress:
		return 1
	case TicketStatusNeedsOperator:
		return 2
	case TicketStatusClosed:
		return 3
	}
	return -1
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	return s.Rank() >= 0
}

// Sentiment is the classifier's tone estimate.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is a known sentiment.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Category is the classifier's topic bucket.
type Category string

const (
	CategoryMalfunction   Category = "malfunction"
	CategoryCalibration   Category = "calibration"
	CategoryDocumentation Category = "documentation"
	CategoryOther         Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMalfunction, CategoryCalibration, CategoryDocumentation, CategoryOther:
		return true
	}
	return false
}

// Ticket is the aggregate for one inbound support request.
type Ticket struct {
	ID            string
	DateReceived  time.Time
	FullName      string
	Company       string
	Phone         string
	Email         string
	DeviceSerials []string
	DeviceType    string
	Sentiment     Sentiment
	Category      Category
	Summary       string
	OriginalEmail string
	AIResponse    string
	Status        TicketStatus
	ChatHistory   []ChatMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy; slices are never shared with the receiver.
func (t Ticket) Clone() Ticket {
	t.DeviceSerials = slices.Clone(t.DeviceSerials)
	t.ChatHistory = slices.Clone(t.ChatHistory)
	return t
}

// TicketIntake carries the fields produced by the classification pipeline.
type TicketIntake struct {
	DateReceived  time.Time
	FullName      string
	Company       string
	Phone         string
	Email         string
	DeviceSerials []string
	DeviceType    string
	Sentiment     Sentiment
	Category      Category
	Summary       string
	OriginalEmail string
	AIResponse    string
	Status        TicketStatus
}

// TicketPatch lists the operator-mutable fields. Nil means unchanged.
// Reason is recorded in the status history and defaults to ReasonOperator.
// RequireResponse rejects the patch unless the resulting draft is non-empty.
type TicketPatch struct {
	AIResponse      *string
	Status          *TicketStatus
	ChangedBy       string
	Reason          string
	RequireResponse bool
}

// Empty reports whether the patch changes nothing.
func (p TicketPatch) Empty() bool {
	return p.AIResponse == nil && p.Status == nil
}
