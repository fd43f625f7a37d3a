// Package store holds the authoritative in-process ticket collection. Every
// mutation is written through the persistence backend before it becomes
// visible to readers, and each ticket is guarded by its own lock so that
// unrelated tickets never contend.
package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/escalation"
	"github.com/eris-support/triage-service/internal/events"
	"github.com/eris-support/triage-service/internal/repository"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

var errServingSnapshot = errors.New("serving cached snapshot; writes are disabled until the backend recovers")

// SnapshotCache keeps the last collection that was loaded successfully.
type SnapshotCache interface {
	Save(ctx context.Context, tickets []domain.Ticket) error
	Load(ctx context.Context) ([]domain.Ticket, error)
}

// AppendResult is what AppendMessage hands back to callers.
type AppendResult struct {
	Message  domain.ChatMessage
	Ticket   domain.Ticket
	Decision escalation.Decision
}

// Dependencies bundles the store collaborators.
type Dependencies struct {
	Backend    repository.Backend
	Machine    *escalation.Machine
	Dispatcher events.Dispatcher
	Cache      SnapshotCache
	Logger     *zap.Logger
}

type entry struct {
	mu     sync.Mutex
	ticket domain.Ticket
}

// Store is safe for concurrent use.
type Store struct {
	backend    repository.Backend
	machine    *escalation.Machine
	dispatcher events.Dispatcher
	cache      SnapshotCache
	logger     *zap.Logger

	mu       sync.RWMutex
	order    []string
	entries  map[string]*entry
	degraded bool
}

// New builds an empty store. Call Load to populate it.
func New(deps Dependencies) *Store {
	machine := deps.Machine
	if machine == nil {
		machine = escalation.New(nil)
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:    deps.Backend,
		machine:    machine,
		dispatcher: dispatcher,
		cache:      deps.Cache,
		logger:     logger,
		entries:    map[string]*entry{},
	}
}

// Load replaces the collection with the backend's contents. When the backend
// is unreachable the last cached snapshot is served instead and the store is
// marked degraded until Recover reaches the backend again. A degraded store
// is read-only.
func (s *Store) Load(ctx context.Context) error {
	tickets, err := s.loadFromBackend(ctx)
	if err == nil {
		s.replace(tickets, false)
		s.logger.Info("ticket store loaded", zap.Int("tickets", len(tickets)))
		s.saveSnapshot(ctx, tickets)
		return nil
	}

	if !errors.Is(err, apperrors.ErrUpstreamUnavailable) || s.cache == nil {
		return err
	}
	snapshot, cerr := s.cache.Load(ctx)
	if cerr != nil {
		s.logger.Error("ticket backend unavailable and no snapshot to fall back on",
			zap.Error(err), zap.NamedError("snapshot_error", cerr))
		return err
	}
	s.replace(snapshot, true)
	s.logger.Warn("ticket backend unavailable; serving cached snapshot read-only",
		zap.Error(err), zap.Int("tickets", len(snapshot)))
	return nil
}

// Recover retries the backend while the store is degraded and swaps the
// snapshot for the backend's contents once it answers. It reports whether
// the store is live.
func (s *Store) Recover(ctx context.Context) (bool, error) {
	if !s.Degraded() {
		return true, nil
	}
	tickets, err := s.loadFromBackend(ctx)
	if err != nil {
		return false, err
	}
	s.replace(tickets, false)
	s.logger.Info("ticket backend reachable again; snapshot mode off", zap.Int("tickets", len(tickets)))
	s.saveSnapshot(ctx, tickets)
	return true, nil
}

func (s *Store) saveSnapshot(ctx context.Context, tickets []domain.Ticket) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, tickets); err != nil {
		s.logger.Warn("failed to save ticket snapshot", zap.Error(err))
	}
}

func (s *Store) loadFromBackend(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.backend.LoadTickets(ctx)
	if err != nil {
		return nil, upstream(err)
	}
	for i := range tickets {
		chat, err := s.backend.LoadChat(ctx, tickets[i].ID)
		if err != nil {
			return nil, upstream(err)
		}
		tickets[i].ChatHistory = chat
	}
	return tickets, nil
}

func (s *Store) replace(tickets []domain.Ticket, degraded bool) {
	order := make([]string, 0, len(tickets))
	entries := make(map[string]*entry, len(tickets))
	for _, t := range tickets {
		if _, dup := entries[t.ID]; dup {
			continue
		}
		order = append(order, t.ID)
		entries[t.ID] = &entry{ticket: t.Clone()}
	}
	s.mu.Lock()
	s.order = order
	s.entries = entries
	s.degraded = degraded
	s.mu.Unlock()
}

// writable refuses mutations while reads come from the snapshot, whose
// statuses may lag the backend.
func (s *Store) writable() error {
	if s.Degraded() {
		return apperrors.NewUpstreamUnavailable("ticket backend", errServingSnapshot)
	}
	return nil
}

// Degraded reports whether the store is serving a cached snapshot.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// SaveSnapshot writes the current collection to the snapshot cache.
func (s *Store) SaveSnapshot(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Save(ctx, s.List())
}

// Get returns a deep copy of one ticket.
func (s *Store) Get(id string) (domain.Ticket, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.Ticket{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticket.Clone(), nil
}

// List returns deep copies of all tickets in arrival order.
func (s *Store) List() []domain.Ticket {
	s.mu.RLock()
	snapshot := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.entries[id])
	}
	s.mu.RUnlock()

	out := make([]domain.Ticket, 0, len(snapshot))
	for _, e := range snapshot {
		e.mu.Lock()
		out = append(out, e.ticket.Clone())
		e.mu.Unlock()
	}
	return out
}

// Create registers a ticket produced by the classification pipeline.
func (s *Store) Create(ctx context.Context, intake domain.TicketIntake) (domain.Ticket, error) {
	if intake.Status == "" {
		intake.Status = domain.TicketStatusOpen
	}
	if err := escalation.CheckIntake(intake.Status); err != nil {
		return domain.Ticket{}, err
	}
	if err := s.writable(); err != nil {
		return domain.Ticket{}, err
	}
	ticket, err := s.backend.PersistTicket(ctx, intake)
	if err != nil {
		return domain.Ticket{}, upstream(err)
	}

	s.mu.Lock()
	if _, exists := s.entries[ticket.ID]; !exists {
		s.order = append(s.order, ticket.ID)
	}
	s.entries[ticket.ID] = &entry{ticket: ticket.Clone()}
	s.mu.Unlock()

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			NewStatus: ticket.Status,
			Reason:    domain.ReasonIntake,
		},
	})
	return ticket, nil
}

// Update applies an operator patch. Only the draft response and the status
// are mutable, and status assignments follow escalation.CheckAssignment. The
// ticket row and its status history entry are written in one transaction.
func (s *Store) Update(ctx context.Context, id string, patch domain.TicketPatch) (domain.Ticket, error) {
	if patch.Empty() {
		return domain.Ticket{}, apperrors.NewInvalidInput("patch changes nothing", map[string]any{"id": id})
	}
	if err := s.writable(); err != nil {
		return domain.Ticket{}, err
	}
	e, err := s.lookup(id)
	if err != nil {
		return domain.Ticket{}, err
	}

	e.mu.Lock()
	current := e.ticket.Status
	if current == domain.TicketStatusClosed {
		e.mu.Unlock()
		return domain.Ticket{}, apperrors.NewInvalidState("ticket is closed", map[string]any{"id": id})
	}
	if patch.Status != nil {
		if err := escalation.CheckAssignment(current, *patch.Status); err != nil {
			e.mu.Unlock()
			return domain.Ticket{}, err
		}
	}
	if patch.RequireResponse {
		draft := e.ticket.AIResponse
		if patch.AIResponse != nil {
			draft = *patch.AIResponse
		}
		if strings.TrimSpace(draft) == "" {
			e.mu.Unlock()
			return domain.Ticket{}, apperrors.NewInvalidInput("ticket has no response text", map[string]any{"id": id})
		}
	}
	reason := patch.Reason
	if reason == "" {
		reason = domain.ReasonOperator
	}
	var persisted domain.Ticket
	err = s.backend.InTx(ctx, func(tx repository.Backend) error {
		var err error
		persisted, err = tx.PersistTicketUpdate(ctx, id, repository.TicketUpdate{
			AIResponse: patch.AIResponse,
			Status:     patch.Status,
			ChangedBy:  patch.ChangedBy,
			Reason:     reason,
		})
		return err
	})
	if err != nil {
		e.mu.Unlock()
		return domain.Ticket{}, upstream(err)
	}
	persisted.ChatHistory = e.ticket.ChatHistory
	e.ticket = persisted.Clone()
	result := e.ticket.Clone()
	e.mu.Unlock()

	var fields []string
	if patch.AIResponse != nil {
		fields = append(fields, "ai_response")
	}
	if patch.Status != nil {
		fields = append(fields, "status")
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: id,
		ActorID:  patch.ChangedBy,
		Payload:  events.TicketUpdatedPayload{Fields: fields},
	})
	if result.Status != current {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: id,
			ActorID:  patch.ChangedBy,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: current,
				NewStatus: result.Status,
				Reason:    reason,
			},
		})
	}
	return result, nil
}

// AppendMessage adds a message to a ticket's chat. The escalation decision is
// taken under the ticket lock, and a message that triggers escalation is
// persisted together with the status change.
func (s *Store) AppendMessage(ctx context.Context, id string, role domain.Role, text string) (AppendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return AppendResult{}, apperrors.NewInvalidInput("message text is empty", map[string]any{"id": id})
	}
	e, err := s.lookup(id)
	if err != nil {
		return AppendResult{}, err
	}

	if err := s.writable(); err != nil {
		return AppendResult{}, err
	}

	e.mu.Lock()
	current := e.ticket.Status
	decision, err := s.machine.Evaluate(current, role, text)
	if err != nil {
		e.mu.Unlock()
		return AppendResult{}, err
	}

	var (
		msg     domain.ChatMessage
		updated domain.Ticket
	)
	err = s.backend.InTx(ctx, func(tx repository.Backend) error {
		var err error
		msg, err = tx.PersistMessage(ctx, id, role, text)
		if err != nil {
			return err
		}
		if decision.Escalated {
			next := decision.Next
			updated, err = tx.PersistTicketUpdate(ctx, id, repository.TicketUpdate{
				Status: &next,
				Reason: domain.ReasonEscalation,
			})
		}
		return err
	})
	if err != nil {
		e.mu.Unlock()
		return AppendResult{}, upstream(err)
	}

	if decision.Escalated {
		chat := e.ticket.ChatHistory
		e.ticket = updated.Clone()
		e.ticket.ChatHistory = chat
	}
	e.ticket.ChatHistory = append(e.ticket.ChatHistory, msg)
	result := AppendResult{Message: msg, Ticket: e.ticket.Clone(), Decision: decision}
	e.mu.Unlock()

	s.publish(ctx, events.Event{
		Type:     events.EventChatMessageAppended,
		TicketID: id,
		Payload: events.ChatMessageAppendedPayload{
			MessageID:   msg.ID,
			Role:        role.String(),
			TextPreview: preview(text, 120),
		},
	})
	if decision.Escalated {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: id,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: current,
				NewStatus: decision.Next,
				Reason:    domain.ReasonEscalation,
			},
		})
		s.publish(ctx, events.Event{
			Type:     events.EventTicketEscalated,
			TicketID: id,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: current,
				NewStatus: decision.Next,
				Reason:    domain.ReasonEscalation,
			},
		})
		s.logger.Info("ticket escalated to operator", zap.String("ticket_id", id))
	}
	return result, nil
}

// History returns the status audit trail of a ticket.
func (s *Store) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	if _, err := s.lookup(id); err != nil {
		return nil, err
	}
	changes, err := s.backend.ListStatusChanges(ctx, id)
	if err != nil {
		return nil, upstream(err)
	}
	return changes, nil
}

// Subscribe registers handler for every ticket-changed event.
func (s *Store) Subscribe(handler events.EventHandler) (unsubscribe func()) {
	return events.SubscribeAll(s.dispatcher, events.ChangeTypes, handler)
}

// Publish forwards a non-change event (such as a suppressed auto reply) to
// the store's dispatcher.
func (s *Store) Publish(ctx context.Context, event events.Event) {
	s.publish(ctx, event)
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return e, nil
}

func (s *Store) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// upstream classifies backend failures. Domain errors pass through; anything
// else means the backend could not be reached.
func upstream(err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewUpstreamUnavailable("ticket backend", err)
}

func preview(body string, max int) string {
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	return string(runes[:max-3]) + "..."
}
