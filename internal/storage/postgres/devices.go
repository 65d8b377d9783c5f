package postgres

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/notofine/backend/internal/models"
)

type DeviceTokenRepo struct {
	db *dbpg.DB
}

func NewDeviceTokenRepo(db *dbpg.DB) *DeviceTokenRepo {
	return &DeviceTokenRepo{db: db}
}

// Upsert registers the token for the user. An already known token is
// reassigned, which covers another user logging in on the same device.
func (r *DeviceTokenRepo) Upsert(ctx context.Context, userID int64, token, platform string) (*models.DeviceToken, error) {
	var dt models.DeviceToken
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO device_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET
			user_id  = excluded.user_id,
			platform = excluded.platform
		RETURNING id, user_id, token, COALESCE(platform, ''), created_at`,
		userID, token, platform,
	).Scan(&dt.ID, &dt.UserID, &dt.Token, &dt.Platform, &dt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert device token: %w", err)
	}
	return &dt, nil
}

// Delete is idempotent: removing an unknown token is not an error.
func (r *DeviceTokenRepo) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM device_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

func (r *DeviceTokenRepo) ListByUser(ctx context.Context, userID int64) ([]models.DeviceToken, error) {
	rows, err := r.db.Master.QueryContext(ctx, `
		SELECT id, user_id, token, COALESCE(platform, ''), created_at
		FROM device_tokens WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query device tokens: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceToken
	for rows.Next() {
		var dt models.DeviceToken
		if err := rows.Scan(&dt.ID, &dt.UserID, &dt.Token, &dt.Platform, &dt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}
