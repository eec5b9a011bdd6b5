package dal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibbin/vibbin/internal/schemas"
	"github.com/vibbin/vibbin/internal/schemas/public"
)

// HistoryLimit is the number of entries returned by GetCallHistory
const HistoryLimit = 50

// LogAnswered appends an ANSWERED entry for a call that was just accepted
func LogAnswered(ctx context.Context, db *sql.DB, callerId, receiverId string, startedAt time.Time) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO call_logs (id, caller_id, receiver_id, status, started_at, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		uuid.NewString(), callerId, receiverId, schemas.CallAnswered, startedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting answered call: %w", err)
	}
	return nil
}

// LogRejected appends a REJECTED entry
func LogRejected(ctx context.Context, db *sql.DB, callerId, receiverId string) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO call_logs (id, caller_id, receiver_id, status, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), callerId, receiverId, schemas.CallRejected, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting rejected call: %w", err)
	}
	return nil
}

// LogEnded moves the newest ANSWERED entry for the pair to ENDED. Returns false when there was no
// answered entry, which happens for calls that ended before being accepted.
func LogEnded(ctx context.Context, db *sql.DB, callerId, receiverId string, endedAt time.Time, duration int) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE call_logs SET status = ?, ended_at = ?, duration = ?
		WHERE id = (
			SELECT id FROM call_logs
			WHERE caller_id = ? AND receiver_id = ? AND status = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT 1
		)`,
		schemas.CallEnded, endedAt.UTC(), duration, callerId, receiverId, schemas.CallAnswered,
	)
	if err != nil {
		return false, fmt.Errorf("error updating ended call: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("driver does not support RowsAffected")
	}
	return rows > 0, nil
}

// GetCallHistory returns the newest call log entries involving userId
func GetCallHistory(ctx context.Context, db *sql.DB, userId string, limit int) ([]public.CallLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT l.id, l.status, l.started_at, l.ended_at, l.duration, l.created_at,
			c.id, c.name, c.username, c.profile_picture,
			r.id, r.name, r.username, r.profile_picture
		FROM call_logs l
		JOIN users c ON c.id = l.caller_id
		JOIN users r ON r.id = l.receiver_id
		WHERE l.caller_id = ? OR l.receiver_id = ?
		ORDER BY l.created_at DESC, l.rowid DESC
		LIMIT ?`, userId, userId, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying call history: %w", err)
	}
	defer rows.Close()

	history := []public.CallLog{}
	for rows.Next() {
		var (
			entry              public.CallLog
			startedAt, endedAt sql.NullTime
			duration           sql.NullInt64
			callerPic, recvPic sql.NullString
		)
		err := rows.Scan(&entry.Id, &entry.Status, &startedAt, &endedAt, &duration, &entry.CreatedAt,
			&entry.Caller.Id, &entry.Caller.Name, &entry.Caller.Username, &callerPic,
			&entry.Receiver.Id, &entry.Receiver.Name, &entry.Receiver.Username, &recvPic,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning call log: %w", err)
		}
		if startedAt.Valid {
			entry.StartedAt = &startedAt.Time
		}
		if endedAt.Valid {
			entry.EndedAt = &endedAt.Time
		}
		if duration.Valid {
			entry.Duration = &duration.Int64
		}
		if callerPic.Valid {
			entry.Caller.ProfilePicture = &callerPic.String
		}
		if recvPic.Valid {
			entry.Receiver.ProfilePicture = &recvPic.String
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}
