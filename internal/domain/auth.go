package domain

import "time"

// Session is the authenticated operator context handed to every component
// that needs auth state.
type Session struct {
	TokenID   string
	Operator  *Operator
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Operator != nil && s.Operator.Role == OperatorRoleAdmin
}
