package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/events"
	"github.com/eris-support/triage-service/internal/repository"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

var errDown = errors.New("connection refused")

// flakyBackend injects failures into selected backend calls.
type flakyBackend struct {
	repository.Backend
	failLoad    error
	failMessage error
	failUpdate  error
	// failHistory lets the ticket row write through and then fails, the way
	// a rejected status history insert does.
	failHistory error
}

func (f *flakyBackend) LoadTickets(ctx context.Context) ([]domain.Ticket, error) {
	if f.failLoad != nil {
		return nil, f.failLoad
	}
	return f.Backend.LoadTickets(ctx)
}

func (f *flakyBackend) PersistMessage(ctx context.Context, id string, role domain.Role, text string) (domain.ChatMessage, error) {
	if f.failMessage != nil {
		return domain.ChatMessage{}, f.failMessage
	}
	return f.Backend.PersistMessage(ctx, id, role, text)
}

func (f *flakyBackend) PersistTicketUpdate(ctx context.Context, id string, update repository.TicketUpdate) (domain.Ticket, error) {
	if f.failUpdate != nil {
		return domain.Ticket{}, f.failUpdate
	}
	ticket, err := f.Backend.PersistTicketUpdate(ctx, id, update)
	if err == nil && f.failHistory != nil && update.Status != nil {
		return domain.Ticket{}, f.failHistory
	}
	return ticket, err
}

func (f *flakyBackend) InTx(ctx context.Context, fn func(tx repository.Backend) error) error {
	return f.Backend.InTx(ctx, func(tx repository.Backend) error {
		return fn(&flakyBackend{Backend: tx, failMessage: f.failMessage, failUpdate: f.failUpdate, failHistory: f.failHistory})
	})
}

type fakeCache struct {
	snapshot []domain.Ticket
	saved    []domain.Ticket
}

func (c *fakeCache) Save(_ context.Context, tickets []domain.Ticket) error {
	c.saved = tickets
	return nil
}

func (c *fakeCache) Load(context.Context) ([]domain.Ticket, error) {
	if c.snapshot == nil {
		return nil, errors.New("no snapshot")
	}
	return c.snapshot, nil
}

func seedTicket(name string, status domain.TicketStatus) domain.Ticket {
	return domain.Ticket{
		DateReceived:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		FullName:      name,
		Company:       "ООО Завод",
		Email:         "client@example.com",
		DeviceSerials: []string{"SN-1", "SN-2"},
		DeviceType:    "gas analyzer",
		Sentiment:     domain.SentimentNeutral,
		Category:      domain.CategoryMalfunction,
		Summary:       "does not start",
		Status:        status,
	}
}

func newTestStore(t *testing.T, tickets ...domain.Ticket) (*Store, *repository.MemoryBackend) {
	t.Helper()
	backend := repository.NewMemoryBackend()
	for _, tk := range tickets {
		backend.Seed(tk)
	}
	s := New(Dependencies{Backend: backend})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, backend
}

func TestStore_LoadListsInArrivalOrder(t *testing.T) {
	s, _ := newTestStore(t,
		seedTicket("Иванов", domain.TicketStatusOpen),
		seedTicket("Петров", domain.TicketStatusInProgress),
		seedTicket("Сидоров", domain.TicketStatusClosed),
	)

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"Иванов", "Петров", "Сидоров"} {
		if list[i].FullName != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].FullName, want)
		}
	}
}

func TestStore_GetReturnsDeepCopy(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))

	got, err := s.Get("1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.DeviceSerials[0] = "mutated"
	got.Status = domain.TicketStatusClosed

	again, _ := s.Get("1")
	if again.DeviceSerials[0] != "SN-1" || again.Status != domain.TicketStatusOpen {
		t.Errorf("store state leaked through copy: %+v", again)
	}
}

func TestStore_UnknownTicket(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get("42"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get err = %v, want not found", err)
	}
	if _, err := s.AppendMessage(ctx, "42", domain.RoleUser, "hi"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("AppendMessage err = %v, want not found", err)
	}
	resp := "draft"
	if _, err := s.Update(ctx, "42", domain.TicketPatch{AIResponse: &resp}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Update err = %v, want not found", err)
	}
}

func TestStore_AppendRejectsBlankText(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := s.AppendMessage(context.Background(), "1", domain.RoleUser, text); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("text %q: err = %v, want invalid input", text, err)
		}
	}
	got, _ := s.Get("1")
	if len(got.ChatHistory) != 0 {
		t.Errorf("chat = %v, want empty", got.ChatHistory)
	}
}

func TestStore_TriggerEscalatesAndGatesAutomation(t *testing.T) {
	s, backend := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))
	ctx := context.Background()

	var seen []events.EventType
	var mu sync.Mutex
	s.Subscribe(func(_ context.Context, e events.Event) error {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
		return nil
	})

	res, err := s.AppendMessage(ctx, "1", domain.RoleUser, "Please CALL OPERATOR now")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if !res.Decision.Escalated || res.Decision.AutoReply {
		t.Errorf("decision = %+v, want escalated without auto reply", res.Decision)
	}
	if res.Ticket.Status != domain.TicketStatusNeedsOperator {
		t.Errorf("status = %s, want needs_operator", res.Ticket.Status)
	}
	if len(res.Ticket.ChatHistory) != 1 || res.Ticket.ChatHistory[0].ID != res.Message.ID {
		t.Errorf("chat = %+v, want the appended message", res.Ticket.ChatHistory)
	}

	history, err := backend.ListStatusChanges(ctx, "1")
	if err != nil {
		t.Fatalf("ListStatusChanges: %v", err)
	}
	if len(history) != 1 || history[0].Reason != domain.ReasonEscalation {
		t.Errorf("history = %+v, want one escalation entry", history)
	}

	if _, err := s.AppendMessage(ctx, "1", domain.RoleBot, "automated answer"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("bot err = %v, want invalid state", err)
	}
	res, err = s.AppendMessage(ctx, "1", domain.RoleUser, "call operator again")
	if err != nil {
		t.Fatalf("second user message: %v", err)
	}
	if res.Decision.Escalated || res.Decision.AutoReply {
		t.Errorf("repeat trigger decision = %+v, want no-op", res.Decision)
	}
	if _, err := s.AppendMessage(ctx, "1", domain.RoleOperator, "Здравствуйте, я оператор"); err != nil {
		t.Errorf("operator message: %v", err)
	}

	got, _ := s.Get("1")
	if len(got.ChatHistory) != 3 {
		t.Errorf("chat len = %d, want 3", len(got.ChatHistory))
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[events.EventType]bool{
		events.EventChatMessageAppended: false,
		events.EventTicketStatusChanged: false,
		events.EventTicketEscalated:     false,
	}
	for _, e := range seen {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for e, ok := range want {
		if !ok {
			t.Errorf("event %s not published", e)
		}
	}
}

func TestStore_OperatorRejectedBeforeEscalation(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusInProgress))

	_, err := s.AppendMessage(context.Background(), "1", domain.RoleOperator, "hello")
	if !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("err = %v, want invalid state", err)
	}
}

func TestStore_ClosedTicketIsFrozen(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))
	ctx := context.Background()

	closed := domain.TicketStatusClosed
	got, err := s.Update(ctx, "1", domain.TicketPatch{Status: &closed, ChangedBy: "7"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if got.Status != domain.TicketStatusClosed {
		t.Fatalf("status = %s, want closed", got.Status)
	}

	draft := "late draft"
	if _, err := s.Update(ctx, "1", domain.TicketPatch{AIResponse: &draft}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("Update after close err = %v, want invalid state", err)
	}
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleBot, domain.RoleOperator} {
		if _, err := s.AppendMessage(ctx, "1", role, "hello"); !errors.Is(err, apperrors.ErrInvalidState) {
			t.Errorf("%s append after close err = %v, want invalid state", role, err)
		}
	}
}

func TestStore_UpdateValidatesAssignment(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.TicketStatus
		to      domain.TicketStatus
		wantErr error
	}{
		{"open to in_progress", domain.TicketStatusOpen, domain.TicketStatusInProgress, nil},
		{"in_progress to closed", domain.TicketStatusInProgress, domain.TicketStatusClosed, nil},
		{"same status", domain.TicketStatusOpen, domain.TicketStatusOpen, nil},
		{"direct needs_operator", domain.TicketStatusOpen, domain.TicketStatusNeedsOperator, apperrors.ErrInvalidState},
		{"backwards", domain.TicketStatusInProgress, domain.TicketStatusOpen, apperrors.ErrInvalidState},
		{"unknown", domain.TicketStatusOpen, domain.TicketStatus("archived"), apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t, seedTicket("Иванов", tt.from))
			next := tt.to
			got, err := s.Update(context.Background(), "1", domain.TicketPatch{Status: &next})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if cur, _ := s.Get("1"); cur.Status != tt.from {
					t.Errorf("status changed to %s after rejection", cur.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if got.Status != tt.to {
				t.Errorf("status = %s, want %s", got.Status, tt.to)
			}
		})
	}
}

func TestStore_UpdateKeepsChatHistory(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))
	ctx := context.Background()

	if _, err := s.AppendMessage(ctx, "1", domain.RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	draft := "Уважаемый клиент"
	got, err := s.Update(ctx, "1", domain.TicketPatch{AIResponse: &draft})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.AIResponse != draft || len(got.ChatHistory) != 1 {
		t.Errorf("got %+v, want draft saved and chat kept", got)
	}
}

func TestStore_EmptyPatchRejected(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))
	if _, err := s.Update(context.Background(), "1", domain.TicketPatch{}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestStore_EscalationIsAtomic(t *testing.T) {
	backend := repository.NewMemoryBackend()
	backend.Seed(seedTicket("Иванов", domain.TicketStatusOpen))
	flaky := &flakyBackend{Backend: backend}
	s := New(Dependencies{Backend: flaky})
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	flaky.failUpdate = errDown
	_, err := s.AppendMessage(ctx, "1", domain.RoleUser, "call operator")
	if !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}

	got, _ := s.Get("1")
	if got.Status != domain.TicketStatusOpen || len(got.ChatHistory) != 0 {
		t.Errorf("local ticket changed after failed write: %+v", got)
	}
	chat, _ := backend.LoadChat(ctx, "1")
	if len(chat) != 0 {
		t.Errorf("backend kept %d messages from a rolled back transaction", len(chat))
	}
}

func TestStore_FailedWriteLeavesTicketUnchanged(t *testing.T) {
	backend := repository.NewMemoryBackend()
	backend.Seed(seedTicket("Иванов", domain.TicketStatusOpen))
	flaky := &flakyBackend{Backend: backend}
	s := New(Dependencies{Backend: flaky})
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	flaky.failMessage = errDown
	if _, err := s.AppendMessage(ctx, "1", domain.RoleUser, "hello"); !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Errorf("append err = %v, want upstream unavailable", err)
	}
	flaky.failUpdate = errDown
	draft := "draft"
	if _, err := s.Update(ctx, "1", domain.TicketPatch{AIResponse: &draft}); !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Errorf("update err = %v, want upstream unavailable", err)
	}

	got, _ := s.Get("1")
	if got.AIResponse != "" || len(got.ChatHistory) != 0 {
		t.Errorf("local ticket changed: %+v", got)
	}
}

func TestStore_LoadFallsBackToSnapshot(t *testing.T) {
	backend := &flakyBackend{Backend: repository.NewMemoryBackend(), failLoad: errDown}
	snap := seedTicket("Иванов", domain.TicketStatusNeedsOperator)
	snap.ID = "17"
	cache := &fakeCache{snapshot: []domain.Ticket{snap}}
	s := New(Dependencies{Backend: backend, Cache: cache})

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Degraded() {
		t.Error("store not marked degraded")
	}
	got, err := s.Get("17")
	if err != nil || got.FullName != "Иванов" {
		t.Errorf("Get = %+v, %v", got, err)
	}
}

func TestStore_DegradedStoreRejectsWritesUntilRecovered(t *testing.T) {
	backend := repository.NewMemoryBackend()
	backend.Seed(seedTicket("Иванов", domain.TicketStatusOpen))
	flaky := &flakyBackend{Backend: backend}
	cache := &fakeCache{}
	s := New(Dependencies{Backend: flaky, Cache: cache})
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cache.snapshot = cache.saved

	closed := domain.TicketStatusClosed
	if _, err := backend.PersistTicketUpdate(ctx, "1", repository.TicketUpdate{Status: &closed, Reason: domain.ReasonOperator}); err != nil {
		t.Fatalf("close in backend: %v", err)
	}
	flaky.failLoad = errDown
	if err := s.Load(ctx); err != nil || !s.Degraded() {
		t.Fatalf("Load = %v, degraded = %v", err, s.Degraded())
	}
	flaky.failLoad = nil

	if _, err := s.AppendMessage(ctx, "1", domain.RoleUser, "hello"); !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Errorf("append err = %v, want upstream unavailable", err)
	}
	next := domain.TicketStatusInProgress
	if _, err := s.Update(ctx, "1", domain.TicketPatch{Status: &next}); !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Errorf("update err = %v, want upstream unavailable", err)
	}
	if _, err := s.Create(ctx, domain.TicketIntake{FullName: "Петров"}); !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Errorf("create err = %v, want upstream unavailable", err)
	}
	if chat, _ := backend.LoadChat(ctx, "1"); len(chat) != 0 {
		t.Errorf("backend chat = %d messages, want 0", len(chat))
	}

	flaky.failLoad = errDown
	if live, err := s.Recover(ctx); live || err == nil {
		t.Errorf("Recover with backend down = %v, %v", live, err)
	}
	flaky.failLoad = nil
	live, err := s.Recover(ctx)
	if err != nil || !live || s.Degraded() {
		t.Fatalf("Recover = %v, %v, degraded = %v", live, err, s.Degraded())
	}
	got, _ := s.Get("1")
	if got.Status != domain.TicketStatusClosed {
		t.Errorf("status after recovery = %s, want closed", got.Status)
	}
	if _, err := s.Update(ctx, "1", domain.TicketPatch{Status: &next}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("update of closed ticket err = %v, want invalid state", err)
	}
}

func TestStore_UpdateRollsBackWhenHistoryWriteFails(t *testing.T) {
	backend := repository.NewMemoryBackend()
	backend.Seed(seedTicket("Иванов", domain.TicketStatusOpen))
	flaky := &flakyBackend{Backend: backend, failHistory: errDown}
	s := New(Dependencies{Backend: flaky})
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	next := domain.TicketStatusInProgress
	if _, err := s.Update(ctx, "1", domain.TicketPatch{Status: &next, ChangedBy: "3"}); !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}

	local, _ := s.Get("1")
	persisted, _ := backend.LoadTickets(ctx)
	if local.Status != domain.TicketStatusOpen || persisted[0].Status != domain.TicketStatusOpen {
		t.Errorf("status local = %s, persisted = %s, want open for both", local.Status, persisted[0].Status)
	}
	if history, _ := backend.ListStatusChanges(ctx, "1"); len(history) != 0 {
		t.Errorf("history = %+v, want none", history)
	}
}

func TestStore_RequireResponseIsCheckedWithTheClose(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))
	ctx := context.Background()
	closed := domain.TicketStatusClosed
	blank := "   "

	tests := []struct {
		name  string
		patch domain.TicketPatch
	}{
		{"no draft", domain.TicketPatch{Status: &closed, RequireResponse: true}},
		{"blank draft in same patch", domain.TicketPatch{Status: &closed, AIResponse: &blank, RequireResponse: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Update(ctx, "1", tt.patch); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
			if got, _ := s.Get("1"); got.Status != domain.TicketStatusOpen {
				t.Errorf("status = %s, want open", got.Status)
			}
		})
	}

	draft := "Ответ клиенту"
	got, err := s.Update(ctx, "1", domain.TicketPatch{Status: &closed, AIResponse: &draft, RequireResponse: true})
	if err != nil || got.Status != domain.TicketStatusClosed {
		t.Errorf("Update = %+v, %v", got.Status, err)
	}
}

func TestStore_LoadWithoutSnapshotSurfacesError(t *testing.T) {
	backend := &flakyBackend{Backend: repository.NewMemoryBackend(), failLoad: errDown}
	s := New(Dependencies{Backend: backend, Cache: &fakeCache{}})

	if err := s.Load(context.Background()); !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want upstream unavailable", err)
	}
}

func TestStore_LoadSavesSnapshot(t *testing.T) {
	backend := repository.NewMemoryBackend()
	backend.Seed(seedTicket("Иванов", domain.TicketStatusOpen))
	cache := &fakeCache{}
	s := New(Dependencies{Backend: backend, Cache: cache})

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cache.saved) != 1 || s.Degraded() {
		t.Errorf("saved %d tickets, degraded=%v", len(cache.saved), s.Degraded())
	}
}

func TestStore_CreateDefaultsToOpen(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	got, err := s.Create(ctx, domain.TicketIntake{FullName: "Иванов", Summary: "поверка"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Status != domain.TicketStatusOpen || got.ID == "" {
		t.Errorf("created %+v", got)
	}
	if list := s.List(); len(list) != 1 || list[0].ID != got.ID {
		t.Errorf("list = %+v", list)
	}

	_, err = s.Create(ctx, domain.TicketIntake{Status: domain.TicketStatusNeedsOperator})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("needs_operator intake err = %v, want invalid input", err)
	}
}

func TestStore_ConcurrentAppendsAreAllRecorded(t *testing.T) {
	s, backend := newTestStore(t,
		seedTicket("Иванов", domain.TicketStatusOpen),
		seedTicket("Петров", domain.TicketStatusOpen),
	)
	ctx := context.Background()

	const perTicket = 40
	var wg sync.WaitGroup
	for _, id := range []string{"1", "2"} {
		for i := 0; i < perTicket; i++ {
			wg.Add(1)
			go func(id string, i int) {
				defer wg.Done()
				if _, err := s.AppendMessage(ctx, id, domain.RoleUser, fmt.Sprintf("message %d", i)); err != nil {
					t.Errorf("append %s/%d: %v", id, i, err)
				}
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range []string{"1", "2"} {
		got, _ := s.Get(id)
		if len(got.ChatHistory) != perTicket {
			t.Errorf("ticket %s chat len = %d, want %d", id, len(got.ChatHistory), perTicket)
		}
		persisted, _ := backend.LoadChat(ctx, id)
		for i := range persisted {
			if persisted[i].ID != got.ChatHistory[i].ID {
				t.Fatalf("ticket %s: local order diverges from persisted order at %d", id, i)
			}
		}
	}
}

func TestStore_ConcurrentTriggersEscalateOnce(t *testing.T) {
	s, backend := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))
	ctx := context.Background()

	var escalations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.AppendMessage(ctx, "1", domain.RoleUser, "вызвать оператора")
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			if res.Decision.Escalated {
				escalations.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := escalations.Load(); n != 1 {
		t.Errorf("escalations = %d, want 1", n)
	}
	history, _ := backend.ListStatusChanges(ctx, "1")
	if len(history) != 1 {
		t.Errorf("history entries = %d, want 1", len(history))
	}
}

func TestStore_HistoryPassthrough(t *testing.T) {
	s, _ := newTestStore(t, seedTicket("Иванов", domain.TicketStatusOpen))
	ctx := context.Background()

	next := domain.TicketStatusInProgress
	if _, err := s.Update(ctx, "1", domain.TicketPatch{Status: &next, ChangedBy: "3"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	history, err := s.History(ctx, "1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].ChangedBy != "3" || history[0].Reason != domain.ReasonOperator {
		t.Errorf("history = %+v", history)
	}
	if _, err := s.History(ctx, "99"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown history err = %v", err)
	}
}
