// Package autoreply talks to the automated assistant that answers clients
// before an operator takes over.
package autoreply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// Replier produces the assistant's answer to the latest client message.
type Replier interface {
	Reply(ctx context.Context, ticket domain.Ticket, history []domain.ChatMessage) (string, error)
}

// StaticReplier always answers with the same greeting.
type StaticReplier struct {
	Text string
}

func (s StaticReplier) Reply(context.Context, domain.Ticket, []domain.ChatMessage) (string, error) {
	return s.Text, nil
}

// HTTPReplier posts the ticket context as JSON to an assistant endpoint.
type HTTPReplier struct {
	url        string
	httpClient *http.Client
}

// NewHTTPReplier builds a client for url with the given request timeout.
func NewHTTPReplier(url string, timeout time.Duration) *HTTPReplier {
	return &HTTPReplier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// New picks the HTTP replier when url is set and the static greeting otherwise.
func New(url string, timeout time.Duration, greeting string) Replier {
	if strings.TrimSpace(url) == "" {
		return StaticReplier{Text: greeting}
	}
	return NewHTTPReplier(url, timeout)
}

type replyMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type replyRequest struct {
	TicketID   string         `json:"ticket_id"`
	Summary    string         `json:"summary"`
	Category   string         `json:"category"`
	DeviceType string         `json:"device_type"`
	Draft      string         `json:"ai_response,omitempty"`
	History    []replyMessage `json:"history"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

func (r *HTTPReplier) Reply(ctx context.Context, ticket domain.Ticket, history []domain.ChatMessage) (string, error) {
	payload := replyRequest{
		TicketID:   ticket.ID,
		Summary:    ticket.Summary,
		Category:   string(ticket.Category),
		DeviceType: ticket.DeviceType,
		Draft:      ticket.AIResponse,
		History:    make([]replyMessage, 0, len(history)),
	}
	for _, m := range history {
		payload.History = append(payload.History, replyMessage{Role: m.Role.String(), Text: m.Text})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode reply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewUpstreamUnavailable("auto-reply", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.NewUpstreamUnavailable("auto-reply",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var out replyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.NewUpstreamUnavailable("auto-reply", fmt.Errorf("decode reply: %w", err))
	}
	return strings.TrimSpace(out.Reply), nil
}
