package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/config"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/repository"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// AuthService coordinates operator login and account bootstrap.
type AuthService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Operator  *domain.Operator
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, operators repository.OperatorRepository) *AuthService {
	return &AuthService{
		operators:  operators,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// Login authenticates an operator by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewInvalidInput("email and password are required", nil)
	}
	op, err := s.operators.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(op.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	token, claims, err := s.tokenMgr.GenerateToken(op)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Operator: op, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// CreateOperator registers a new operator account.
func (s *AuthService) CreateOperator(ctx context.Context, email, fullName, password string, role domain.OperatorRole) (*domain.Operator, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewInvalidInput("email is required", nil)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.OperatorRoleOperator
	}
	if role != domain.OperatorRoleOperator && role != domain.OperatorRoleAdmin {
		return nil, apperrors.NewInvalidInput("unknown operator role", map[string]any{"role": role})
	}
	if _, err := s.operators.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewInvalidInput("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	op := &domain.Operator{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// EnsureOperator creates the account unless one with that email exists.
func (s *AuthService) EnsureOperator(ctx context.Context, email, fullName, password string, role domain.OperatorRole) (*domain.Operator, bool, error) {
	if op, err := s.operators.GetByEmail(ctx, email); err == nil {
		return op, false, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}
	op, err := s.CreateOperator(ctx, email, fullName, password, role)
	if err != nil {
		return nil, false, err
	}
	return op, true, nil
}

// TelegramRecipients lists the messenger accounts the notification bot may
// talk to; admins is the subset owned by administrators.
type TelegramRecipients struct {
	Users  []int64
	Admins []int64
}

// AllowedTelegramUsers collects the linked messenger accounts.
func (s *AuthService) AllowedTelegramUsers(ctx context.Context) (TelegramRecipients, error) {
	ops, err := s.operators.ListTelegramLinked(ctx)
	if err != nil {
		return TelegramRecipients{}, err
	}
	out := TelegramRecipients{Users: []int64{}, Admins: []int64{}}
	for _, op := range ops {
		out.Users = append(out.Users, op.TelegramIDs...)
		if op.Role == domain.OperatorRoleAdmin {
			out.Admins = append(out.Admins, op.TelegramIDs...)
		}
	}
	return out, nil
}

// LinkTelegram attaches a messenger account to the operator with email.
func (s *AuthService) LinkTelegram(ctx context.Context, email string, telegramID int64) (*domain.Operator, error) {
	if telegramID <= 0 {
		return nil, apperrors.NewInvalidInput("telegram id must be positive", map[string]any{"telegram_id": telegramID})
	}
	op, err := s.operators.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if err := s.operators.LinkTelegram(ctx, op.ID, telegramID); err != nil {
		return nil, err
	}
	op.TelegramIDs = append(op.TelegramIDs, telegramID)
	return op, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
