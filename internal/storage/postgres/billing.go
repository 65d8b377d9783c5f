package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

// PlanRepo, SubscriptionRepo and PaymentRepo back the billing surface.

type PlanRepo struct {
	db *dbpg.DB
}

func NewPlanRepo(db *dbpg.DB) *PlanRepo {
	return &PlanRepo{db: db}
}

func (r *PlanRepo) Create(ctx context.Context, p *models.Plan) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO plans (name, price_usd, duration_days, description, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), TRUE)
		RETURNING id`,
		p.Name, p.PriceUSD, p.DurationDays, p.Description,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrPlanExists
		}
		return 0, fmt.Errorf("insert plan: %w", err)
	}
	return id, nil
}

const planColumns = `id, name, price_usd, duration_days, COALESCE(description, ''), is_active`

func (r *PlanRepo) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	var p models.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.PriceUSD, &p.DurationDays, &p.Description, &p.IsActive); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PlanRepo) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY id`
	if activeOnly {
		query = `SELECT ` + planColumns + ` FROM plans WHERE is_active = TRUE ORDER BY id`
	}
	rows, err := r.db.Master.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var out []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceUSD, &p.DurationDays, &p.Description, &p.IsActive); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update mutates price, description and active flag only; name and
// duration stay fixed so existing subscriptions keep their meaning.
func (r *PlanRepo) Update(ctx context.Context, id int64, price *float64, description *string, isActive *bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE plans SET
			price_usd   = COALESCE($1, price_usd),
			description = COALESCE($2, description),
			is_active   = COALESCE($3, is_active)
		WHERE id = $4`,
		price, description, isActive, id)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return requireAffected(res)
}

type SubscriptionRepo struct {
	db *dbpg.DB
}

func NewSubscriptionRepo(db *dbpg.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) Create(ctx context.Context, s *models.Subscription) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, plan_id, status, start_date, end_date, auto_renew)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.UserID, s.PlanID, s.Status, s.StartDate, s.EndDate, s.AutoRenew,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}
	return id, nil
}

func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	rows, err := r.db.Master.QueryContext(ctx, `
		SELECT id, user_id, plan_id, status, start_date, end_date, auto_renew, created_at
		FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status,
			&s.StartDate, &s.EndDate, &s.AutoRenew, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes the subscription and returns the deleted row so the
// caller can reset the user's expiry when it was the active one.
func (r *SubscriptionRepo) Delete(ctx context.Context, id int64) (*models.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM subscriptions WHERE id = $1
		RETURNING id, user_id, plan_id, status, start_date, end_date, auto_renew, created_at`, id)
	var s models.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status,
		&s.StartDate, &s.EndDate, &s.AutoRenew, &s.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

type PaymentRepo struct {
	db *dbpg.DB
}

func NewPaymentRepo(db *dbpg.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Create(ctx context.Context, p *models.Payment) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (user_id, ticket_id, subscription_id, plan_id, amount_usd, status, checkout_url)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id`,
		p.UserID, p.TicketID, p.SubscriptionID, p.PlanID, p.AmountUSD, p.Status, p.CheckoutURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return id, nil
}

func (r *PaymentRepo) Complete(ctx context.Context, id int64, subscriptionID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, subscription_id = $2
		WHERE id = $3`,
		models.PaymentCompleted, subscriptionID, id)
	if err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	return requireAffected(res)
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, ticket_id, subscription_id, plan_id, amount_usd, status, COALESCE(checkout_url, ''), created_at
		FROM payments WHERE id = $1`, id)
	var p models.Payment
	var ticketID, subID, planID sql.NullInt64
	if err := row.Scan(&p.ID, &p.UserID, &ticketID, &subID, &planID,
		&p.AmountUSD, &p.Status, &p.CheckoutURL, &p.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if ticketID.Valid {
		p.TicketID = &ticketID.Int64
	}
	if subID.Valid {
		p.SubscriptionID = &subID.Int64
	}
	if planID.Valid {
		p.PlanID = &planID.Int64
	}
	return &p, nil
}
