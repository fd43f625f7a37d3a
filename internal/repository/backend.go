package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// TicketUpdate carries the operator-mutable fields of a ticket together with
// the audit metadata recorded when the status changes.
type TicketUpdate struct {
	AIResponse *string
	Status     *domain.TicketStatus
	ChangedBy  string
	Reason     string
}

// TicketRepository persists tickets.
type TicketRepository interface {
	LoadTickets(ctx context.Context) ([]domain.Ticket, error)
	PersistTicket(ctx context.Context, intake domain.TicketIntake) (domain.Ticket, error)
	PersistTicketUpdate(ctx context.Context, ticketID string, update TicketUpdate) (domain.Ticket, error)
}

// ChatMessageRepository persists chat threads. PersistMessage assigns the
// message id and its position in the thread.
type ChatMessageRepository interface {
	LoadChat(ctx context.Context, ticketID string) ([]domain.ChatMessage, error)
	PersistMessage(ctx context.Context, ticketID string, role domain.Role, text string) (domain.ChatMessage, error)
}

// StatusHistoryRepository reads the status audit trail.
type StatusHistoryRepository interface {
	ListStatusChanges(ctx context.Context, ticketID string) ([]domain.StatusChange, error)
}

// Backend is the persistence collaborator behind the ticket store.
type Backend interface {
	TicketRepository
	ChatMessageRepository
	StatusHistoryRepository
	// InTx runs fn against a transactional view; writes made through tx are
	// committed together or not at all.
	InTx(ctx context.Context, fn func(tx Backend) error) error
}

// OperatorRepository manages operator accounts.
type OperatorRepository interface {
	Create(ctx context.Context, op *domain.Operator) error
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
	// LinkTelegram attaches a messenger account; one account maps to at most
	// one operator.
	LinkTelegram(ctx context.Context, operatorID string, telegramID int64) error
	// ListTelegramLinked returns operators with at least one linked account.
	ListTelegramLinked(ctx context.Context) ([]domain.Operator, error)
}

// KnowledgeBaseRepository reads knowledge base sections with their files.
type KnowledgeBaseRepository interface {
	ListSections(ctx context.Context) ([]domain.KBSection, error)
	GetSection(ctx context.Context, id string) (domain.KBSection, error)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// parseID converts an opaque ticket id into the serial key used by Postgres.
func parseID(resource, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return n, nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// mapError turns driver errors into domain errors.
func mapError(resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewUpstreamUnavailable("postgres", err)
}
