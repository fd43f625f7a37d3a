package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/eris-support/triage-service/internal/domain"
)

const ticketColumns = `id::text, date_received, COALESCE(full_name,''), COALESCE(company,''), COALESCE(phone,''),
               COALESCE(email,''), COALESCE(device_serials, '{}'), COALESCE(device_type,''),
               COALESCE(sentiment,''), COALESCE(category,''), COALESCE(summary,''),
               COALESCE(original_email,''), COALESCE(ai_response,''), status, created_at, updated_at`

type ticketRepository struct {
	db querier
}

func (r *ticketRepository) LoadTickets(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapError("tickets", "", err)
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, mapError("tickets", "", err)
	}
	return tickets, nil
}

func (r *ticketRepository) PersistTicket(ctx context.Context, intake domain.TicketIntake) (domain.Ticket, error) {
	query := `
        INSERT INTO tickets (date_received, full_name, company, phone, email, device_serials, device_type,
                             sentiment, category, summary, original_email, ai_response, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING ` + ticketColumns
	serials := intake.DeviceSerials
	if serials == nil {
		serials = []string{}
	}
	ticket, err := scanTicket(r.db.QueryRow(ctx, query,
		intake.DateReceived,
		intake.FullName,
		intake.Company,
		intake.Phone,
		intake.Email,
		serials,
		intake.DeviceType,
		intake.Sentiment,
		intake.Category,
		intake.Summary,
		intake.OriginalEmail,
		intake.AIResponse,
		intake.Status,
	))
	if err != nil {
		return domain.Ticket{}, mapError("ticket", "", err)
	}
	return ticket, nil
}

func (r *ticketRepository) PersistTicketUpdate(ctx context.Context, ticketID string, update TicketUpdate) (domain.Ticket, error) {
	id, err := parseID("ticket", ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}

	var oldStatus domain.TicketStatus
	if err := r.db.QueryRow(ctx, `SELECT status FROM tickets WHERE id=$1 FOR UPDATE`, id).Scan(&oldStatus); err != nil {
		return domain.Ticket{}, mapError("ticket", ticketID, err)
	}

	query := `
        UPDATE tickets SET ai_response=COALESCE($1, ai_response), status=COALESCE($2, status), updated_at=NOW()
        WHERE id=$3
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, update.AIResponse, update.Status, id))
	if err != nil {
		return domain.Ticket{}, mapError("ticket", ticketID, err)
	}

	if update.Status != nil && *update.Status != oldStatus {
		history := &statusHistoryRepository{db: r.db}
		if err := history.create(ctx, id, oldStatus, *update.Status, update.ChangedBy, update.Reason); err != nil {
			return domain.Ticket{}, mapError("ticket status history", ticketID, err)
		}
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.DateReceived,
		&ticket.FullName,
		&ticket.Company,
		&ticket.Phone,
		&ticket.Email,
		&ticket.DeviceSerials,
		&ticket.DeviceType,
		&ticket.Sentiment,
		&ticket.Category,
		&ticket.Summary,
		&ticket.OriginalEmail,
		&ticket.AIResponse,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	return ticket, err
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
