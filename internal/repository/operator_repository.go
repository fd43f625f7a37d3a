package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

const operatorColumns = `o.id::text, o.email, o.full_name, o.password_hash, o.role, o.created_at,
               COALESCE((SELECT array_agg(t.telegram_id ORDER BY t.id) FROM operator_telegram_ids t
                         WHERE t.operator_id = o.id), '{}')`

type operatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository returns a Postgres-backed implementation.
func NewOperatorRepository(pool *pgxpool.Pool) OperatorRepository {
	return &operatorRepository{pool: pool}
}

func (r *operatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	const query = `
        INSERT INTO operators (email, password_hash, full_name, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id::text, created_at`
	if err := r.pool.QueryRow(ctx, query,
		op.Email,
		op.PasswordHash,
		op.FullName,
		op.Role,
	).Scan(&op.ID, &op.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewInvalidInput("operator email already registered", map[string]any{"email": op.Email})
		}
		return mapError("operator", op.Email, err)
	}
	return nil
}

func (r *operatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	key, err := parseID("operator", id)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + operatorColumns + ` FROM operators o WHERE o.id=$1`
	return r.fetchSingle(ctx, query, id, key)
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators o WHERE LOWER(o.email)=LOWER($1)`
	return r.fetchSingle(ctx, query, email, email)
}

func (r *operatorRepository) LinkTelegram(ctx context.Context, operatorID string, telegramID int64) error {
	key, err := parseID("operator", operatorID)
	if err != nil {
		return err
	}
	const query = `INSERT INTO operator_telegram_ids (operator_id, telegram_id) VALUES ($1, $2)`
	if _, err := r.pool.Exec(ctx, query, key, telegramID); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewInvalidInput("telegram account already linked", map[string]any{"telegram_id": telegramID})
		}
		return mapError("operator", operatorID, err)
	}
	return nil
}

func (r *operatorRepository) ListTelegramLinked(ctx context.Context) ([]domain.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators o
        WHERE EXISTS (SELECT 1 FROM operator_telegram_ids t WHERE t.operator_id = o.id)
        ORDER BY o.id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, mapError("operators", "", err)
	}
	defer rows.Close()

	var result []domain.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, mapError("operators", "", err)
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("operators", "", err)
	}
	return result, nil
}

func (r *operatorRepository) fetchSingle(ctx context.Context, query, ref string, arg any) (*domain.Operator, error) {
	op, err := scanOperator(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError("operator", ref, err)
	}
	return &op, nil
}

func scanOperator(row interface{ Scan(dest ...any) error }) (domain.Operator, error) {
	var op domain.Operator
	err := row.Scan(
		&op.ID,
		&op.Email,
		&op.FullName,
		&op.PasswordHash,
		&op.Role,
		&op.CreatedAt,
		&op.TelegramIDs,
	)
	return op, err
}
