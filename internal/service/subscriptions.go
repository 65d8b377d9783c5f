package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/payments"
	"github.com/notofine/backend/internal/storage"
)

var (
	ErrPaymentNotPending = errors.New("payment is not pending")
	ErrAlreadySubscribed = errors.New("an active subscription already exists")
)

// SubscriptionService covers plans, plan purchases through the checkout
// provider, and the webhook that finalizes a payment.
type SubscriptionService struct {
	plans    storage.PlanStore
	subs     storage.SubscriptionStore
	payStore storage.PaymentStore
	users    storage.UserStore
	provider payments.Provider
}

func NewSubscriptionService(
	plans storage.PlanStore,
	subs storage.SubscriptionStore,
	payStore storage.PaymentStore,
	users storage.UserStore,
	provider payments.Provider,
) *SubscriptionService {
	return &SubscriptionService{
		plans:    plans,
		subs:     subs,
		payStore: payStore,
		users:    users,
		provider: provider,
	}
}

func (s *SubscriptionService) CreatePlan(ctx context.Context, p *models.Plan) (*models.Plan, error) {
	if p.Name == "" {
		return nil, errors.New("plan name is required")
	}
	if p.PriceUSD < 0 {
		return nil, errors.New("plan price cannot be negative")
	}
	if p.DurationDays < 1 {
		return nil, errors.New("plan duration must be at least one day")
	}
	p.IsActive = true
	id, err := s.plans.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.plans.GetByID(ctx, id)
}

func (s *SubscriptionService) ListPlans(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	return s.plans.List(ctx, activeOnly)
}

func (s *SubscriptionService) UpdatePlan(ctx context.Context, id int64, price *float64, description *string, isActive *bool) (*models.Plan, error) {
	if price != nil && *price < 0 {
		return nil, errors.New("plan price cannot be negative")
	}
	if err := s.plans.Update(ctx, id, price, description, isActive); err != nil {
		return nil, err
	}
	return s.plans.GetByID(ctx, id)
}

// Subscribe opens a pending payment for the plan and returns it with
// the provider checkout URL. The subscription itself is created only
// when the payment completes.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, planID int64) (*models.Payment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.SubscriptionExpiresAt != nil && user.SubscriptionExpiresAt.After(time.Now()) {
		return nil, ErrAlreadySubscribed
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("plan %q is not available", plan.Name)
	}

	payment := &models.Payment{
		UserID:    userID,
		PlanID:    &plan.ID,
		AmountUSD: plan.PriceUSD,
		Status:    models.PaymentPending,
	}
	id, err := s.payStore.Create(ctx, payment)
	if err != nil {
		return nil, err
	}
	payment.ID = id

	checkout, err := s.provider.CreateCheckout(ctx, id, plan.Name, plan.PriceUSD)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	payment.CheckoutURL = checkout.URL
	return payment, nil
}

// CompletePayment is the webhook path: it marks the payment completed,
// creates the paid subscription, and pushes the user's subscription
// expiry forward by the plan duration.
func (s *SubscriptionService) CompletePayment(ctx context.Context, paymentID int64) (*models.Subscription, error) {
	payment, err := s.payStore.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentPending {
		return nil, ErrPaymentNotPending
	}
	if payment.PlanID == nil {
		return nil, errors.New("payment is not tied to a plan")
	}
	plan, err := s.plans.GetByID(ctx, *payment.PlanID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sub := &models.Subscription{
		UserID:    payment.UserID,
		PlanID:    plan.ID,
		Status:    models.SubscriptionPaid,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, plan.DurationDays),
	}
	subID, err := s.subs.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	sub.ID = subID

	if err := s.payStore.Complete(ctx, paymentID, subID); err != nil {
		return nil, fmt.Errorf("complete payment %d: %w", paymentID, err)
	}
	if err := s.users.SetSubscriptionExpiry(ctx, payment.UserID, &sub.EndDate); err != nil {
		return nil, fmt.Errorf("set subscription expiry: %w", err)
	}

	zlog.Logger.Info().
		Int64("payment_id", paymentID).
		Int64("subscription_id", subID).
		Int64("user_id", payment.UserID).
		Time("until", sub.EndDate).
		Msg("subscription activated")
	return sub, nil
}

func (s *SubscriptionService) ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	return s.subs.ListByUser(ctx, userID)
}

// Cancel removes the subscription and rolls the user's expiry back when
// the canceled one was the furthest-reaching.
func (s *SubscriptionService) Cancel(ctx context.Context, userID, id int64) error {
	owned, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	mine := false
	for i := range owned {
		if owned[i].ID == id {
			mine = true
			break
		}
	}
	if !mine {
		return ErrForbidden
	}

	if _, err := s.subs.Delete(ctx, id); err != nil {
		return err
	}

	remaining, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	var latest *time.Time
	for i := range remaining {
		if remaining[i].Status != models.SubscriptionPaid {
			continue
		}
		if latest == nil || remaining[i].EndDate.After(*latest) {
			latest = &remaining[i].EndDate
		}
	}
	return s.users.SetSubscriptionExpiry(ctx, userID, latest)
}
