package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/autoreply"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/escalation"
	"github.com/eris-support/triage-service/internal/events"
	"github.com/eris-support/triage-service/internal/export"
	"github.com/eris-support/triage-service/internal/store"
	"github.com/eris-support/triage-service/internal/view"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows on top of the store.
type TicketService struct {
	store      *store.Store
	replier    autoreply.Replier
	serializer *export.Serializer
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      *store.Store
	Replier    autoreply.Replier
	Serializer *export.Serializer
	Logger     *zap.Logger
}

// ClientMessageResult reports what happened to a client message and the
// automated reply it may have received. ReplyErr is set when a reply was due
// but could not be produced or recorded; the client message stands either way.
type ClientMessageResult struct {
	store.AppendResult
	Reply      *domain.ChatMessage
	Suppressed bool
	ReplyErr   error
}

// ExportFile is a rendered export ready to be downloaded.
type ExportFile struct {
	Name        string
	ContentType string
	Body        []byte
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	serializer := deps.Serializer
	if serializer == nil {
		serializer = export.NewSerializer(nil)
	}
	return &TicketService{
		store:      deps.Store,
		replier:    deps.Replier,
		serializer: serializer,
		logger:     logger,
		now:        time.Now,
	}
}

// ListTickets returns the filtered, sorted table view.
func (s *TicketService) ListTickets(_ context.Context, q view.Query) ([]domain.Ticket, error) {
	return q.Apply(s.store.List())
}

// Stats counts the tickets matched by q.
func (s *TicketService) Stats(ctx context.Context, q view.Query) (view.Stats, error) {
	tickets, err := s.ListTickets(ctx, q)
	if err != nil {
		return view.Stats{}, err
	}
	return view.Count(tickets), nil
}

// GetTicket fetches one ticket with its chat history.
func (s *TicketService) GetTicket(_ context.Context, id string) (domain.Ticket, error) {
	return s.store.Get(id)
}

// IntakeTicket registers a ticket produced by the classification pipeline.
func (s *TicketService) IntakeTicket(ctx context.Context, intake domain.TicketIntake) (domain.Ticket, error) {
	intake.FullName = strings.TrimSpace(intake.FullName)
	intake.Company = strings.TrimSpace(intake.Company)
	intake.Phone = strings.TrimSpace(intake.Phone)
	intake.Email = strings.TrimSpace(intake.Email)
	intake.DeviceType = strings.TrimSpace(intake.DeviceType)
	intake.Summary = strings.TrimSpace(intake.Summary)

	serials := make([]string, 0, len(intake.DeviceSerials))
	for _, sn := range intake.DeviceSerials {
		if sn = strings.TrimSpace(sn); sn != "" {
			serials = append(serials, sn)
		}
	}
	intake.DeviceSerials = serials

	if intake.Sentiment != "" && !intake.Sentiment.Valid() {
		return domain.Ticket{}, apperrors.NewInvalidInput("unknown sentiment", map[string]any{"sentiment": intake.Sentiment})
	}
	if intake.Category != "" && !intake.Category.Valid() {
		return domain.Ticket{}, apperrors.NewInvalidInput("unknown category", map[string]any{"category": intake.Category})
	}
	if intake.DateReceived.IsZero() {
		intake.DateReceived = s.now().UTC()
	}

	ticket, err := s.store.Create(ctx, intake)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.logger.Info("ticket received",
		zap.String("ticket_id", ticket.ID),
		zap.String("category", string(ticket.Category)),
		zap.String("sentiment", string(ticket.Sentiment)))
	return ticket, nil
}

// UpdateTicket applies an operator patch.
func (s *TicketService) UpdateTicket(ctx context.Context, session *domain.Session, id string, patch domain.TicketPatch) (domain.Ticket, error) {
	patch.ChangedBy = operatorID(session)
	return s.store.Update(ctx, id, patch)
}

// SaveDraft stores the operator-edited response text.
func (s *TicketService) SaveDraft(ctx context.Context, session *domain.Session, id, text string) (domain.Ticket, error) {
	return s.store.Update(ctx, id, domain.TicketPatch{AIResponse: &text, ChangedBy: operatorID(session)})
}

// SendResponse marks the drafted response as delivered and closes the
// ticket. A ticket without a draft cannot be sent; the draft is checked under
// the same ticket lock as the close.
func (s *TicketService) SendResponse(ctx context.Context, session *domain.Session, id string) (domain.Ticket, error) {
	closed := domain.TicketStatusClosed
	ticket, err := s.store.Update(ctx, id, domain.TicketPatch{
		Status:          &closed,
		ChangedBy:       operatorID(session),
		Reason:          domain.ReasonSent,
		RequireResponse: true,
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.logger.Info("ticket response sent", zap.String("ticket_id", id), zap.String("operator_id", operatorID(session)))
	return ticket, nil
}

// CloseTicket closes a ticket without sending a response.
func (s *TicketService) CloseTicket(ctx context.Context, session *domain.Session, id string) (domain.Ticket, error) {
	closed := domain.TicketStatusClosed
	return s.store.Update(ctx, id, domain.TicketPatch{Status: &closed, ChangedBy: operatorID(session)})
}

// History returns the status audit trail of a ticket.
func (s *TicketService) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	return s.store.History(ctx, id)
}

// Chat returns a ticket's chat thread in order.
func (s *TicketService) Chat(_ context.Context, id string) ([]domain.ChatMessage, error) {
	ticket, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return ticket.ChatHistory, nil
}

// Affordances reports the inputs the operator UI may enable for a ticket.
func (s *TicketService) Affordances(_ context.Context, id string) (escalation.Affordances, error) {
	ticket, err := s.store.Get(id)
	if err != nil {
		return escalation.Affordances{}, err
	}
	return escalation.AffordancesFor(ticket.Status), nil
}

// PostMessage routes a chat message by its author role.
func (s *TicketService) PostMessage(ctx context.Context, session *domain.Session, id string, role domain.Role, text string) (ClientMessageResult, error) {
	switch role {
	case domain.RoleUser:
		return s.PostClientMessage(ctx, id, text)
	case domain.RoleOperator:
		res, err := s.PostOperatorMessage(ctx, session, id, text)
		return ClientMessageResult{AppendResult: res}, err
	default:
		res, err := s.store.AppendMessage(ctx, id, role, text)
		return ClientMessageResult{AppendResult: res}, err
	}
}

// PostClientMessage appends a client message and, when the ticket is still
// handled by automation, asks the replier for an answer. A reply that loses
// the race against escalation is dropped and reported as suppressed.
func (s *TicketService) PostClientMessage(ctx context.Context, id, text string) (ClientMessageResult, error) {
	res, err := s.store.AppendMessage(ctx, id, domain.RoleUser, text)
	if err != nil {
		return ClientMessageResult{}, err
	}
	out := ClientMessageResult{AppendResult: res}
	if !res.Decision.AutoReply || s.replier == nil {
		return out, nil
	}

	replyText, err := s.replier.Reply(ctx, res.Ticket, res.Ticket.ChatHistory)
	if err != nil {
		s.logger.Warn("automated reply failed", zap.String("ticket_id", id), zap.Error(err))
		out.ReplyErr = err
		return out, nil
	}
	if strings.TrimSpace(replyText) == "" {
		return out, nil
	}

	botRes, err := s.store.AppendMessage(ctx, id, domain.RoleBot, replyText)
	switch {
	case err == nil:
		out.Reply = &botRes.Message
		out.Ticket = botRes.Ticket
	case errors.Is(err, apperrors.ErrInvalidState):
		out.Suppressed = true
		s.logger.Info("automated reply suppressed", zap.String("ticket_id", id), zap.Error(err))
		s.store.Publish(ctx, events.Event{
			Type:     events.EventAutoReplySuppressed,
			TicketID: id,
		})
		if current, gerr := s.store.Get(id); gerr == nil {
			out.Ticket = current
		}
	default:
		s.logger.Warn("failed to record automated reply", zap.String("ticket_id", id), zap.Error(err))
		out.ReplyErr = err
	}
	return out, nil
}

// PostOperatorMessage appends an operator message to an escalated ticket.
func (s *TicketService) PostOperatorMessage(ctx context.Context, session *domain.Session, id, text string) (store.AppendResult, error) {
	res, err := s.store.AppendMessage(ctx, id, domain.RoleOperator, text)
	if err != nil {
		return store.AppendResult{}, err
	}
	s.logger.Debug("operator replied", zap.String("ticket_id", id), zap.String("operator_id", operatorID(session)))
	return res, nil
}

// Export renders the view selected by q.
func (s *TicketService) Export(ctx context.Context, q view.Query, format export.Format) (ExportFile, error) {
	tickets, err := s.ListTickets(ctx, q)
	if err != nil {
		return ExportFile{}, err
	}
	body, err := s.serializer.Serialize(tickets, format)
	if err != nil {
		return ExportFile{}, err
	}
	return ExportFile{
		Name:        export.Filename(format, s.now()),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func operatorID(session *domain.Session) string {
	if session == nil || session.Operator == nil {
		return ""
	}
	return session.Operator.ID
}
