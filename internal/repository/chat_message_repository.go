package repository

import (
	"context"
	"fmt"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

type chatMessageRepository struct {
	db querier
}

func (r *chatMessageRepository) PersistMessage(ctx context.Context, ticketID string, role domain.Role, text string) (domain.ChatMessage, error) {
	id, err := parseID("ticket", ticketID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if !role.Valid() {
		return domain.ChatMessage{}, apperrors.NewInvalidInput("unknown message role", nil)
	}

	const query = `
        INSERT INTO chat_messages (ticket_id, role, text)
        VALUES ($1,$2,$3)
        RETURNING id::text, ticket_id::text, created_at`
	msg := domain.ChatMessage{Role: role, Text: text}
	if err := r.db.QueryRow(ctx, query, id, role.String(), text).Scan(&msg.ID, &msg.TicketID, &msg.CreatedAt); err != nil {
		return domain.ChatMessage{}, mapError("ticket", ticketID, err)
	}
	return msg, nil
}

func (r *chatMessageRepository) LoadChat(ctx context.Context, ticketID string) ([]domain.ChatMessage, error) {
	id, err := parseID("ticket", ticketID)
	if err != nil {
		return nil, err
	}

	const query = `
        SELECT id::text, ticket_id::text, role, text, created_at
        FROM chat_messages WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, mapError("chat", ticketID, err)
	}
	defer rows.Close()

	var result []domain.ChatMessage
	for rows.Next() {
		var (
			msg  domain.ChatMessage
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.TicketID, &role, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, mapError("chat", ticketID, err)
		}
		parsed, ok := domain.ParseRole(role)
		if !ok {
			return nil, apperrors.NewInternalError(fmt.Errorf("chat message %s has unknown role %q", msg.ID, role))
		}
		msg.Role = parsed
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("chat", ticketID, err)
	}
	return result, nil
}
