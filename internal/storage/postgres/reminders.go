package postgres

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

type ReminderRepo struct {
	db *dbpg.DB
}

func NewReminderRepo(db *dbpg.DB) *ReminderRepo {
	return &ReminderRepo{db: db}
}

// Create inserts the reminder and its channel rows in one transaction.
// The unique constraint on ticket_id enforces one reminder per ticket.
func (r *ReminderRepo) Create(ctx context.Context, ticketID int64, frequencyDays int, channels []models.Channel) (int64, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reminders (ticket_id, frequency_days, active)
		VALUES ($1, $2, TRUE)
		RETURNING id`,
		ticketID, frequencyDays,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrReminderExists
		}
		return 0, fmt.Errorf("insert reminder: %w", err)
	}

	for _, ch := range channels {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reminder_channels (reminder_id, channel, enabled)
			VALUES ($1, $2, TRUE)`, id, ch); err != nil {
			return 0, fmt.Errorf("insert reminder channel: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *ReminderRepo) GetByID(ctx context.Context, id int64) (*models.Reminder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, frequency_days, active, created_at
		FROM reminders WHERE id = $1`, id)
	var rem models.Reminder
	if err := row.Scan(&rem.ID, &rem.TicketID, &rem.FrequencyDays, &rem.Active, &rem.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if err := r.loadChannels(ctx, &rem); err != nil {
		return nil, err
	}
	return &rem, nil
}

func (r *ReminderRepo) ListActive(ctx context.Context) ([]models.Reminder, error) {
	return r.list(ctx, `
		SELECT id, ticket_id, frequency_days, active, created_at
		FROM reminders WHERE active = TRUE ORDER BY id`)
}

func (r *ReminderRepo) ListByUser(ctx context.Context, userID int64) ([]models.Reminder, error) {
	return r.list(ctx, `
		SELECT r.id, r.ticket_id, r.frequency_days, r.active, r.created_at
		FROM reminders AS r
		JOIN tickets AS t ON t.id = r.ticket_id
		WHERE t.user_id = $1 ORDER BY r.id`, userID)
}

func (r *ReminderRepo) list(ctx context.Context, query string, args ...any) ([]models.Reminder, error) {
	rows, err := r.db.Master.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []models.Reminder
	for rows.Next() {
		var rem models.Reminder
		if err := rows.Scan(&rem.ID, &rem.TicketID, &rem.FrequencyDays, &rem.Active, &rem.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadChannels(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ReminderRepo) loadChannels(ctx context.Context, rem *models.Reminder) error {
	rows, err := r.db.Master.QueryContext(ctx, `
		SELECT id, reminder_id, channel, enabled
		FROM reminder_channels WHERE reminder_id = $1 ORDER BY id`, rem.ID)
	if err != nil {
		return fmt.Errorf("query reminder channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rc models.ReminderChannel
		if err := rows.Scan(&rc.ID, &rc.ReminderID, &rc.Channel, &rc.Enabled); err != nil {
			return fmt.Errorf("scan reminder channel: %w", err)
		}
		rem.Channels = append(rem.Channels, rc)
	}
	return rows.Err()
}

// Update applies the set fields; a non-nil channel list replaces the
// existing set wholesale.
func (r *ReminderRepo) Update(ctx context.Context, id int64, upd models.ReminderUpdate) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE reminders SET
			frequency_days = COALESCE($1, frequency_days),
			active         = COALESCE($2, active)
		WHERE id = $3`,
		upd.FrequencyDays, upd.Active, id)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if upd.Channels != nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reminder_channels WHERE reminder_id = $1`, id); err != nil {
			return fmt.Errorf("clear reminder channels: %w", err)
		}
		for _, ch := range upd.Channels {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reminder_channels (reminder_id, channel, enabled)
				VALUES ($1, $2, TRUE)`, id, ch); err != nil {
				return fmt.Errorf("insert reminder channel: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Delete removes the reminder; channel rows go with it via ON DELETE CASCADE.
func (r *ReminderRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return requireAffected(res)
}
