package domain

import "time"

// OperatorRole enumerates support desk roles.
type OperatorRole string

const (
	OperatorRoleOperator OperatorRole = "operator"
	OperatorRoleAdmin    OperatorRole = "admin"
)

// Operator is a support desk member who triages tickets. TelegramIDs are the
// messenger accounts allowed to talk to the notification bot on their behalf.
type Operator struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         OperatorRole
	TelegramIDs  []int64
	CreatedAt    time.Time
}
