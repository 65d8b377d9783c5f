package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

type TicketRepo struct {
	db *dbpg.DB
}

func NewTicketRepo(db *dbpg.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

const ticketColumns = `id, user_id, ticket_number, amount_usd, COALESCE(description, ''), COALESCE(image_url, ''), status, created_at`

func (r *TicketRepo) Create(ctx context.Context, t *models.Ticket) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tickets (user_id, ticket_number, amount_usd, description, image_url, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id`,
		t.UserID, t.TicketNumber, t.AmountUSD, t.Description, t.ImageURL, models.TicketOpen,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	return id, nil
}

func (r *TicketRepo) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	var t models.Ticket
	if err := row.Scan(&t.ID, &t.UserID, &t.TicketNumber, &t.AmountUSD,
		&t.Description, &t.ImageURL, &t.Status, &t.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TicketRepo) ListByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *TicketRepo) ListOpenByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE user_id = $1 AND status = 'open' ORDER BY created_at DESC`, userID)
}

func (r *TicketRepo) list(ctx context.Context, query string, args ...any) ([]models.Ticket, error) {
	rows, err := r.db.Master.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.UserID, &t.TicketNumber, &t.AmountUSD,
			&t.Description, &t.ImageURL, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TicketRepo) Update(ctx context.Context, id int64, upd storage.TicketUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET
			description = COALESCE($1, description),
			status      = COALESCE($2, status),
			amount_usd  = COALESCE($3, amount_usd)
		WHERE id = $4`,
		upd.Description, (*string)(upd.Status), upd.AmountUSD, id)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return requireAffected(res)
}

func (r *TicketRepo) Delete(ctx context.Context, id int64) (string, error) {
	var imageURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM tickets WHERE id = $1 RETURNING image_url`, id).Scan(&imageURL)
	if err != nil {
		return "", notFound(err)
	}
	return imageURL.String, nil
}
