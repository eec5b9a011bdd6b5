package schemas

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User stores information about a vibbin account
type User struct {
	// for DB storage, never changes
	Id uuid.UUID

	// login name, unique
	Username string

	// display name
	Name string

	// hashed password
	Password string

	ProfilePicture sql.NullString
	LastSeen       sql.NullTime
	CreatedAt      time.Time
}

// CallStatus is the status recorded in the durable call log.
type CallStatus string

const (
	CallAnswered CallStatus = "ANSWERED"
	CallRejected CallStatus = "REJECTED"
	CallEnded    CallStatus = "ENDED"
)

// CallLog is one row of the append-only call audit trail.
type CallLog struct {
	Id         uuid.UUID
	CallerId   uuid.UUID
	ReceiverId uuid.UUID
	Status     CallStatus
	StartedAt  sql.NullTime
	EndedAt    sql.NullTime

	// whole seconds, only set once the call has ended
	Duration  sql.NullInt64
	CreatedAt time.Time
}
