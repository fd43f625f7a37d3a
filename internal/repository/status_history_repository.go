package repository

import (
	"context"

	"github.com/eris-support/triage-service/internal/domain"
)

type statusHistoryRepository struct {
	db querier
}

func (r *statusHistoryRepository) create(ctx context.Context, ticketID int64, oldStatus, newStatus domain.TicketStatus, changedBy, reason string) error {
	const query = `
        INSERT INTO ticket_status_history (ticket_id, old_status, new_status, changed_by, reason)
        VALUES ($1,$2,$3,NULLIF($4,'')::bigint,$5)`
	_, err := r.db.Exec(ctx, query, ticketID, oldStatus, newStatus, changedBy, reason)
	return err
}

func (r *statusHistoryRepository) ListStatusChanges(ctx context.Context, ticketID string) ([]domain.StatusChange, error) {
	id, err := parseID("ticket", ticketID)
	if err != nil {
		return nil, err
	}

	const query = `
        SELECT id::text, ticket_id::text, old_status, new_status, COALESCE(changed_by::text,''), reason, created_at
        FROM ticket_status_history WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, mapError("ticket status history", ticketID, err)
	}
	defer rows.Close()

	var result []domain.StatusChange
	for rows.Next() {
		var change domain.StatusChange
		if err := rows.Scan(
			&change.ID,
			&change.TicketID,
			&change.OldStatus,
			&change.NewStatus,
			&change.ChangedBy,
			&change.Reason,
			&change.CreatedAt,
		); err != nil {
			return nil, mapError("ticket status history", ticketID, err)
		}
		result = append(result, change)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("ticket status history", ticketID, err)
	}
	return result, nil
}
