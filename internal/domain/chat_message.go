package domain

import "time"

// Role tags the author of a chat message.
type Role int

const (
	RoleUser Role = iota + 1
	RoleBot
	RoleOperator
)

// ParseRole maps the wire form onto a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "user":
		return RoleUser, true
	case "bot":
		return RoleBot, true
	case "operator":
		return RoleOperator, true
	}
	return 0, false
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleBot:
		return "bot"
	case RoleOperator:
		return "operator"
	}
	return "unknown"
}

// Valid reports whether r is one of the three roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBot, RoleOperator:
		return true
	}
	return false
}

// ChatMessage is one immutable entry of a ticket's chat thread.
type ChatMessage struct {
	ID        string
	TicketID  string
	Role      Role
	Text      string
	CreatedAt time.Time
}
