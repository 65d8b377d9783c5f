package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wb-go/wbf/dbpg"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

type UserRepo struct {
	db *dbpg.DB
}

func NewUserRepo(db *dbpg.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (full_name, email, password_hash, phone, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id`,
		u.FullName, u.Email, u.PasswordHash, u.Phone, u.IsActive,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrEmailTaken
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

const userColumns = `id, full_name, email, password_hash, COALESCE(phone, ''), is_active, subscription_expires_at, created_at`

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepo) SetSubscriptionExpiry(ctx context.Context, userID int64, until *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET subscription_expires_at = $1 WHERE id = $2`, until, userID)
	if err != nil {
		return fmt.Errorf("update subscription expiry: %w", err)
	}
	return requireAffected(res)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var expires sql.NullTime
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash,
		&u.Phone, &u.IsActive, &expires, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if expires.Valid {
		t := expires.Time
		u.SubscriptionExpiresAt = &t
	}
	return &u, nil
}

// requireAffected turns a zero-row update into ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
