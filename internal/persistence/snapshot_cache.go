package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eris-support/triage-service/internal/domain"
)

// ErrNoSnapshot is returned when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no ticket snapshot cached")

// RedisSnapshotCache keeps the last known ticket collection in Redis so a
// restarted instance can serve reads while Postgres is unreachable.
type RedisSnapshotCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSnapshotCache builds the cache. A nil client yields a cache that
// never has a snapshot.
func NewRedisSnapshotCache(client *redis.Client, key string, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, key: key, ttl: ttl}
}

type snapshotEnvelope struct {
	SavedAt time.Time        `json:"saved_at"`
	Tickets []snapshotTicket `json:"tickets"`
}

type snapshotTicket struct {
	ID            string            `json:"id"`
	DateReceived  time.Time         `json:"date_received"`
	FullName      string            `json:"full_name"`
	Company       string            `json:"company"`
	Phone         string            `json:"phone"`
	Email         string            `json:"email"`
	DeviceSerials []string          `json:"device_serials"`
	DeviceType    string            `json:"device_type"`
	Sentiment     domain.Sentiment  `json:"sentiment"`
	Category      domain.Category   `json:"category"`
	Summary       string            `json:"summary"`
	OriginalEmail string            `json:"original_email"`
	AIResponse    string            `json:"ai_response"`
	Status        string            `json:"status"`
	ChatHistory   []snapshotMessage `json:"chat_history"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type snapshotMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Save stores tickets, replacing any previous snapshot.
func (c *RedisSnapshotCache) Save(ctx context.Context, tickets []domain.Ticket) error {
	if c == nil || c.client == nil {
		return nil
	}
	env := snapshotEnvelope{SavedAt: time.Now().UTC(), Tickets: make([]snapshotTicket, 0, len(tickets))}
	for _, t := range tickets {
		env.Tickets = append(env.Tickets, toSnapshot(t))
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.client.Set(ctx, c.key, body, c.ttl).Err()
}

// Load returns the last saved tickets or ErrNoSnapshot.
func (c *RedisSnapshotCache) Load(ctx context.Context) ([]domain.Ticket, error) {
	if c == nil || c.client == nil {
		return nil, ErrNoSnapshot
	}
	body, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	tickets := make([]domain.Ticket, 0, len(env.Tickets))
	for _, st := range env.Tickets {
		t, err := fromSnapshot(st)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func toSnapshot(t domain.Ticket) snapshotTicket {
	msgs := make([]snapshotMessage, 0, len(t.ChatHistory))
	for _, m := range t.ChatHistory {
		msgs = append(msgs, snapshotMessage{ID: m.ID, Role: m.Role.String(), Text: m.Text, CreatedAt: m.CreatedAt})
	}
	return snapshotTicket{
		ID:            t.ID,
		DateReceived:  t.DateReceived,
		FullName:      t.FullName,
		Company:       t.Company,
		Phone:         t.Phone,
		Email:         t.Email,
		DeviceSerials: t.DeviceSerials,
		DeviceType:    t.DeviceType,
		Sentiment:     t.Sentiment,
		Category:      t.Category,
		Summary:       t.Summary,
		OriginalEmail: t.OriginalEmail,
		AIResponse:    t.AIResponse,
		Status:        string(t.Status),
		ChatHistory:   msgs,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func fromSnapshot(st snapshotTicket) (domain.Ticket, error) {
	msgs := make([]domain.ChatMessage, 0, len(st.ChatHistory))
	for _, m := range st.ChatHistory {
		role, ok := domain.ParseRole(m.Role)
		if !ok {
			return domain.Ticket{}, fmt.Errorf("snapshot ticket %s: unknown role %q", st.ID, m.Role)
		}
		msgs = append(msgs, domain.ChatMessage{ID: m.ID, TicketID: st.ID, Role: role, Text: m.Text, CreatedAt: m.CreatedAt})
	}
	return domain.Ticket{
		ID:            st.ID,
		DateReceived:  st.DateReceived,
		FullName:      st.FullName,
		Company:       st.Company,
		Phone:         st.Phone,
		Email:         st.Email,
		DeviceSerials: st.DeviceSerials,
		DeviceType:    st.DeviceType,
		Sentiment:     st.Sentiment,
		Category:      st.Category,
		Summary:       st.Summary,
		OriginalEmail: st.OriginalEmail,
		AIResponse:    st.AIResponse,
		Status:        domain.TicketStatus(st.Status),
		ChatHistory:   msgs,
		CreatedAt:     st.CreatedAt,
		UpdatedAt:     st.UpdatedAt,
	}, nil
}
