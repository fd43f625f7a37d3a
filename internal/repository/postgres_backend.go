package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eris-support/triage-service/internal/domain"
)

// PostgresBackend implements Backend on a pgx pool or an open transaction.
type PostgresBackend struct {
	*ticketRepository
	*chatMessageRepository
	*statusHistoryRepository
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// NewPostgresBackend instantiates the backend.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return newPostgresBackend(pool, pool, nil)
}

func newPostgresBackend(db querier, pool *pgxpool.Pool, tx pgx.Tx) *PostgresBackend {
	return &PostgresBackend{
		ticketRepository:        &ticketRepository{db: db},
		chatMessageRepository:   &chatMessageRepository{db: db},
		statusHistoryRepository: &statusHistoryRepository{db: db},
		pool:                    pool,
		tx:                      tx,
	}
}

// InTx runs fn inside a single Postgres transaction. Nested calls reuse the
// transaction that is already open.
func (b *PostgresBackend) InTx(ctx context.Context, fn func(tx Backend) error) error {
	if b.tx != nil {
		return fn(b)
	}
	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return fn(newPostgresBackend(tx, b.pool, tx))
	})
	if err != nil {
		return mapError("transaction", "", err)
	}
	return nil
}

// PersistTicketUpdate writes the ticket row and its status history entry.
// Outside a transaction it opens one so the pair never commits half way.
func (b *PostgresBackend) PersistTicketUpdate(ctx context.Context, ticketID string, update TicketUpdate) (domain.Ticket, error) {
	if b.tx != nil {
		return b.ticketRepository.PersistTicketUpdate(ctx, ticketID, update)
	}
	var ticket domain.Ticket
	err := b.InTx(ctx, func(tx Backend) error {
		var err error
		ticket, err = tx.PersistTicketUpdate(ctx, ticketID, update)
		return err
	})
	return ticket, err
}

var _ Backend = (*PostgresBackend)(nil)

