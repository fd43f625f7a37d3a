package repository

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// MemoryBackend is a process-local Backend used when no database is
// configured and in tests. Ticket ids are sequential like Postgres serials.
type MemoryBackend struct {
	mu    sync.Mutex
	state memoryState
	now   func() time.Time
}

type memoryState struct {
	nextID  int64
	order   []string
	tickets map[string]domain.Ticket
	chats   map[string][]domain.ChatMessage
	history map[string][]domain.StatusChange
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		nextID:  s.nextID,
		order:   slices.Clone(s.order),
		tickets: make(map[string]domain.Ticket, len(s.tickets)),
		chats:   make(map[string][]domain.ChatMessage, len(s.chats)),
		history: make(map[string][]domain.StatusChange, len(s.history)),
	}
	for k, v := range s.tickets {
		out.tickets[k] = v.Clone()
	}
	for k, v := range s.chats {
		out.chats[k] = slices.Clone(v)
	}
	for k, v := range s.history {
		out.history[k] = slices.Clone(v)
	}
	return out
}

// NewMemoryBackend builds an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		state: memoryState{
			tickets: map[string]domain.Ticket{},
			chats:   map[string][]domain.ChatMessage{},
			history: map[string][]domain.StatusChange{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Seed inserts a ticket with its chat history as-is, bypassing intake rules.
// It returns the assigned id.
func (m *MemoryBackend) Seed(ticket domain.Ticket) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextID++
	id := strconv.FormatInt(m.state.nextID, 10)
	ticket = ticket.Clone()
	ticket.ID = id
	chat := ticket.ChatHistory
	ticket.ChatHistory = nil
	for i := range chat {
		chat[i].TicketID = id
		if chat[i].ID == "" {
			chat[i].ID = uuid.NewString()
		}
	}
	m.state.order = append(m.state.order, id)
	m.state.tickets[id] = ticket
	m.state.chats[id] = chat
	return id
}

func (m *MemoryBackend) LoadTickets(ctx context.Context) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).LoadTickets(ctx)
}

func (m *MemoryBackend) LoadChat(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).LoadChat(ctx, ticketID)
}

func (m *MemoryBackend) PersistTicket(ctx context.Context, intake domain.TicketIntake) (domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).PersistTicket(ctx, intake)
}

func (m *MemoryBackend) PersistMessage(ctx context.Context, ticketID string, role domain.Role, text string) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).PersistMessage(ctx, ticketID, role, text)
}

func (m *MemoryBackend) PersistTicketUpdate(ctx context.Context, ticketID string, update TicketUpdate) (domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).PersistTicketUpdate(ctx, ticketID, update)
}

func (m *MemoryBackend) ListStatusChanges(ctx context.Context, ticketID string) ([]domain.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memoryTx)(m).ListStatusChanges(ctx, ticketID)
}

// InTx holds the backend lock for the whole of fn and restores the previous
// state when fn fails.
func (m *MemoryBackend) InTx(ctx context.Context, fn func(tx Backend) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.state.clone()
	if err := fn((*memoryTx)(m)); err != nil {
		m.state = saved
		return err
	}
	return nil
}

// memoryTx is the lock-free view used while MemoryBackend.mu is held.
type memoryTx MemoryBackend

func (t *memoryTx) LoadTickets(context.Context) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(t.state.order))
	for _, id := range t.state.order {
		out = append(out, t.state.tickets[id].Clone())
	}
	return out, nil
}

func (t *memoryTx) LoadChat(_ context.Context, ticketID string) ([]domain.ChatMessage, error) {
	if _, ok := t.state.tickets[ticketID]; !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return slices.Clone(t.state.chats[ticketID]), nil
}

func (t *memoryTx) PersistTicket(_ context.Context, intake domain.TicketIntake) (domain.Ticket, error) {
	t.state.nextID++
	id := strconv.FormatInt(t.state.nextID, 10)
	now := t.now()
	ticket := domain.Ticket{
		ID:            id,
		DateReceived:  intake.DateReceived,
		FullName:      intake.FullName,
		Company:       intake.Company,
		Phone:         intake.Phone,
		Email:         intake.Email,
		DeviceSerials: slices.Clone(intake.DeviceSerials),
		DeviceType:    intake.DeviceType,
		Sentiment:     intake.Sentiment,
		Category:      intake.Category,
		Summary:       intake.Summary,
		OriginalEmail: intake.OriginalEmail,
		AIResponse:    intake.AIResponse,
		Status:        intake.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	t.state.order = append(t.state.order, id)
	t.state.tickets[id] = ticket
	return ticket.Clone(), nil
}

func (t *memoryTx) PersistMessage(_ context.Context, ticketID string, role domain.Role, text string) (domain.ChatMessage, error) {
	if _, ok := t.state.tickets[ticketID]; !ok {
		return domain.ChatMessage{}, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	if !role.Valid() {
		return domain.ChatMessage{}, apperrors.NewInvalidInput("unknown message role", nil)
	}
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Role:      role,
		Text:      text,
		CreatedAt: t.now(),
	}
	t.state.chats[ticketID] = append(t.state.chats[ticketID], msg)
	return msg, nil
}

func (t *memoryTx) PersistTicketUpdate(_ context.Context, ticketID string, update TicketUpdate) (domain.Ticket, error) {
	ticket, ok := t.state.tickets[ticketID]
	if !ok {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	now := t.now()
	if update.AIResponse != nil {
		ticket.AIResponse = *update.AIResponse
	}
	if update.Status != nil && *update.Status != ticket.Status {
		t.state.history[ticketID] = append(t.state.history[ticketID], domain.StatusChange{
			ID:        uuid.NewString(),
			TicketID:  ticketID,
			OldStatus: ticket.Status,
			NewStatus: *update.Status,
			ChangedBy: strings.TrimSpace(update.ChangedBy),
			Reason:    update.Reason,
			CreatedAt: now,
		})
		ticket.Status = *update.Status
	}
	ticket.UpdatedAt = now
	t.state.tickets[ticketID] = ticket
	return ticket.Clone(), nil
}

func (t *memoryTx) ListStatusChanges(_ context.Context, ticketID string) ([]domain.StatusChange, error) {
	if _, ok := t.state.tickets[ticketID]; !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return slices.Clone(t.state.history[ticketID]), nil
}

func (t *memoryTx) InTx(ctx context.Context, fn func(tx Backend) error) error {
	return fn(t)
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*memoryTx)(nil)
)

// MemoryOperatorRepository keeps operators in process memory. Assigned ids
// continue after the largest numeric id it was seeded with.
type MemoryOperatorRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[string]domain.Operator
}

// NewMemoryOperatorRepository builds a repository from ops.
func NewMemoryOperatorRepository(ops ...domain.Operator) *MemoryOperatorRepository {
	repo := &MemoryOperatorRepository{byID: make(map[string]domain.Operator, len(ops))}
	for _, op := range ops {
		repo.byID[op.ID] = op
		if n, err := strconv.ParseInt(op.ID, 10, 64); err == nil && n > repo.nextID {
			repo.nextID = n
		}
	}
	return repo
}

func (r *MemoryOperatorRepository) Create(_ context.Context, op *domain.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, op.Email) {
			return apperrors.NewInvalidInput("operator email already registered", map[string]any{"email": op.Email})
		}
	}
	r.nextID++
	op.ID = strconv.FormatInt(r.nextID, 10)
	op.CreatedAt = time.Now().UTC()
	stored := *op
	stored.TelegramIDs = slices.Clone(op.TelegramIDs)
	r.byID[op.ID] = stored
	return nil
}

func (r *MemoryOperatorRepository) GetByID(_ context.Context, id string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NewNotFound("operator", map[string]any{"id": id})
	}
	op.TelegramIDs = slices.Clone(op.TelegramIDs)
	return &op, nil
}

func (r *MemoryOperatorRepository) GetByEmail(_ context.Context, email string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, op := range r.byID {
		if strings.EqualFold(op.Email, email) {
			found := op
			found.TelegramIDs = slices.Clone(op.TelegramIDs)
			return &found, nil
		}
	}
	return nil, apperrors.NewNotFound("operator", map[string]any{"email": email})
}

func (r *MemoryOperatorRepository) LinkTelegram(_ context.Context, operatorID string, telegramID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byID[operatorID]
	if !ok {
		return apperrors.NewNotFound("operator", map[string]any{"id": operatorID})
	}
	for _, other := range r.byID {
		if slices.Contains(other.TelegramIDs, telegramID) {
			return apperrors.NewInvalidInput("telegram account already linked", map[string]any{"telegram_id": telegramID})
		}
	}
	op.TelegramIDs = append(slices.Clone(op.TelegramIDs), telegramID)
	r.byID[operatorID] = op
	return nil
}

// ListTelegramLinked returns linked operators ordered by numeric id.
func (r *MemoryOperatorRepository) ListTelegramLinked(context.Context) ([]domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Operator
	for _, op := range r.byID {
		if len(op.TelegramIDs) > 0 {
			op.TelegramIDs = slices.Clone(op.TelegramIDs)
			out = append(out, op)
		}
	}
	slices.SortFunc(out, func(a, b domain.Operator) int { return compareNumericIDs(a.ID, b.ID) })
	return out, nil
}

func compareNumericIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(na, nb)
	}
	return strings.Compare(a, b)
}

// MemoryKnowledgeBase serves a fixed set of sections from memory.
type MemoryKnowledgeBase struct {
	sections []domain.KBSection
}

// NewMemoryKnowledgeBase keeps sections sorted the way the Postgres
// repository returns them.
func NewMemoryKnowledgeBase(sections ...domain.KBSection) *MemoryKnowledgeBase {
	sorted := make([]domain.KBSection, len(sections))
	for i, s := range sections {
		s.Files = slices.Clone(s.Files)
		sorted[i] = s
	}
	slices.SortStableFunc(sorted, func(a, b domain.KBSection) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return compareNumericIDs(a.ID, b.ID)
	})
	return &MemoryKnowledgeBase{sections: sorted}
}

func (m *MemoryKnowledgeBase) ListSections(context.Context) ([]domain.KBSection, error) {
	out := make([]domain.KBSection, len(m.sections))
	for i, s := range m.sections {
		s.Files = slices.Clone(s.Files)
		out[i] = s
	}
	return out, nil
}

func (m *MemoryKnowledgeBase) GetSection(_ context.Context, id string) (domain.KBSection, error) {
	for _, s := range m.sections {
		if s.ID == id {
			s.Files = slices.Clone(s.Files)
			return s, nil
		}
	}
	return domain.KBSection{}, apperrors.NewNotFound("knowledge base section", map[string]any{"id": id})
}

var (
	_ OperatorRepository      = (*MemoryOperatorRepository)(nil)
	_ KnowledgeBaseRepository = (*MemoryKnowledgeBase)(nil)
)
