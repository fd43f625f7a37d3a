package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/config"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/events"
)

// TicketReader is the read side of the store used for notifications.
type TicketReader interface {
	Get(id string) (domain.Ticket, error)
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	tickets    TicketReader
	logger     *zap.Logger
	cfg        config.NotificationConfig
	botSecret  string
	httpClient *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, tickets TicketReader, logger *zap.Logger, cfg config.NotificationConfig, botSecret string) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		tickets:    tickets,
		logger:     logger,
		cfg:        cfg,
		botSecret:  botSecret,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// RegisterHandlers subscribes to events. wrap lets the caller move delivery
// off the publishing goroutine; nil delivers inline.
func (n *NotificationService) RegisterHandlers(wrap func(events.EventHandler) events.EventHandler) {
	if n.dispatcher == nil {
		return
	}
	if wrap == nil {
		wrap = func(h events.EventHandler) events.EventHandler { return h }
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, wrap(n.handleTicketCreated))
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.logEvent)
	n.dispatcher.Subscribe(events.EventAutoReplySuppressed, n.logEvent)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID))
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	ticket, err := n.tickets.Get(event.TicketID)
	if err != nil {
		return err
	}
	if err := n.sendWebhook(ctx, ticket); err != nil {
		n.logger.Warn("ticket webhook failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return err
	}
	return nil
}

type webhookTicket struct {
	ID            string   `json:"id"`
	FullName      string   `json:"full_name"`
	Company       string   `json:"company"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	DeviceType    string   `json:"device_type"`
	DeviceSerials []string `json:"device_sn"`
	Sentiment     string   `json:"sentiment"`
	Category      string   `json:"category"`
	Summary       string   `json:"summary"`
}

func (n *NotificationService) sendWebhook(ctx context.Context, t domain.Ticket) error {
	body, err := json.Marshal(webhookTicket{
		ID:            t.ID,
		FullName:      t.FullName,
		Company:       t.Company,
		Email:         t.Email,
		Phone:         t.Phone,
		DeviceType:    t.DeviceType,
		DeviceSerials: t.DeviceSerials,
		Sentiment:     string(t.Sentiment),
		Category:      string(t.Category),
		Summary:       t.Summary,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.botSecret != "" {
		req.Header.Set("X-Bot-Secret", n.botSecret)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	n.logger.Debug("ticket webhook delivered", zap.String("ticket_id", t.ID))
	return nil
}
