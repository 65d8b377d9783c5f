package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

type NotificationRepo struct {
	db *dbpg.DB
}

func NewNotificationRepo(db *dbpg.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create persists the attempt record with status pending. Finalization
// happens through MarkSent/MarkFailed; each write is its own statement
// so a failed batch cannot strand a half-written record.
func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, ticket_id, reminder_id, channel, message, subject, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id`,
		n.UserID, n.TicketID, n.ReminderID, n.Channel, n.Message, n.Subject, models.NotificationPending,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

func (r *NotificationRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = $1, sent_at = $2, error_message = NULL
		WHERE id = $3`,
		models.NotificationSent, sentAt, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return requireAffected(res)
}

func (r *NotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = $1, error_message = $2
		WHERE id = $3`,
		models.NotificationFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return requireAffected(res)
}

// LastSentAt returns the sent_at of the most recent successfully sent
// notification for the reminder, or nil when there is none.
func (r *NotificationRepo) LastSentAt(ctx context.Context, reminderID int64) (*time.Time, error) {
	var sentAt time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT sent_at FROM notifications
		WHERE reminder_id = $1 AND status = 'sent' AND sent_at IS NOT NULL
		ORDER BY sent_at DESC LIMIT 1`,
		reminderID,
	).Scan(&sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last sent: %w", err)
	}
	return &sentAt, nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	rows, err := r.db.Master.QueryContext(ctx, `
		SELECT id, user_id, ticket_id, reminder_id, channel, message,
		       COALESCE(subject, ''), status, COALESCE(error_message, ''), sent_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var ticketID, reminderID sql.NullInt64
		var sentAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &ticketID, &reminderID, &n.Channel,
			&n.Message, &n.Subject, &n.Status, &n.ErrorMessage, &sentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if ticketID.Valid {
			n.TicketID = &ticketID.Int64
		}
		if reminderID.Valid {
			n.ReminderID = &reminderID.Int64
		}
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

var _ storage.NotificationStore = (*NotificationRepo)(nil)
