package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/payments"
	"github.com/notofine/backend/internal/storage"
)

type memPlans struct {
	byID map[int64]*models.Plan
}

func (m *memPlans) Create(_ context.Context, p *models.Plan) (int64, error) {
	for _, existing := range m.byID {
		if existing.Name == p.Name {
			return 0, storage.ErrPlanExists
		}
	}
	id := int64(len(m.byID) + 1)
	p.ID = id
	m.byID[id] = p
	return id, nil
}

func (m *memPlans) GetByID(_ context.Context, id int64) (*models.Plan, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlans) List(_ context.Context, activeOnly bool) ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range m.byID {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memPlans) Update(_ context.Context, id int64, price *float64, description *string, isActive *bool) error {
	p, ok := m.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	if price != nil {
		p.PriceUSD = *price
	}
	if description != nil {
		p.Description = *description
	}
	if isActive != nil {
		p.IsActive = *isActive
	}
	return nil
}

type memSubs struct {
	byID map[int64]*models.Subscription
}

func (m *memSubs) Create(_ context.Context, s *models.Subscription) (int64, error) {
	id := int64(len(m.byID) + 1)
	s.ID = id
	m.byID[id] = s
	return id, nil
}

func (m *memSubs) ListByUser(_ context.Context, userID int64) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range m.byID {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSubs) Delete(_ context.Context, id int64) (*models.Subscription, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(m.byID, id)
	return s, nil
}

type memPayments struct {
	byID map[int64]*models.Payment
}

func (m *memPayments) Create(_ context.Context, p *models.Payment) (int64, error) {
	id := int64(len(m.byID) + 1)
	p.ID = id
	m.byID[id] = p
	return id, nil
}

func (m *memPayments) Complete(_ context.Context, id, subscriptionID int64) error {
	p, ok := m.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = models.PaymentCompleted
	p.SubscriptionID = &subscriptionID
	return nil
}

func (m *memPayments) GetByID(_ context.Context, id int64) (*models.Payment, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func newBillingFixture(t *testing.T) (*SubscriptionService, *memUsers, *memPayments) {
	t.Helper()
	users := &memUsers{byID: map[int64]*models.User{
		1: {ID: 1, Email: "dana@example.com", IsActive: true},
	}}
	pays := &memPayments{byID: make(map[int64]*models.Payment)}
	svc := NewSubscriptionService(
		&memPlans{byID: make(map[int64]*models.Plan)},
		&memSubs{byID: make(map[int64]*models.Subscription)},
		pays,
		users,
		payments.NewStubProvider("https://pay.test"),
	)
	return svc, users, pays
}

func TestSubscribeCreatesPendingPaymentWithCheckout(t *testing.T) {
	svc, _, pays := newBillingFixture(t)

	plan, err := svc.CreatePlan(context.Background(), &models.Plan{Name: "monthly", PriceUSD: 9.99, DurationDays: 30})
	require.NoError(t, err)

	payment, err := svc.Subscribe(context.Background(), 1, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Contains(t, payment.CheckoutURL, "https://pay.test/checkout/")
	assert.Equal(t, plan.PriceUSD, payment.AmountUSD)
	assert.Len(t, pays.byID, 1)
}

func TestCompletePaymentActivatesSubscription(t *testing.T) {
	svc, users, _ := newBillingFixture(t)

	plan, err := svc.CreatePlan(context.Background(), &models.Plan{Name: "monthly", PriceUSD: 9.99, DurationDays: 30})
	require.NoError(t, err)
	payment, err := svc.Subscribe(context.Background(), 1, plan.ID)
	require.NoError(t, err)

	sub, err := svc.CompletePayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPaid, sub.Status)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), sub.EndDate, time.Minute)

	user, err := users.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, user.SubscriptionExpiresAt)
	assert.WithinDuration(t, sub.EndDate, *user.SubscriptionExpiresAt, time.Second)

	// webhook retries are rejected once the payment settled
	_, err = svc.CompletePayment(context.Background(), payment.ID)
	assert.ErrorIs(t, err, ErrPaymentNotPending)
}

func TestSubscribeRejectedWhileSubscriptionActive(t *testing.T) {
	svc, users, _ := newBillingFixture(t)

	plan, err := svc.CreatePlan(context.Background(), &models.Plan{Name: "monthly", PriceUSD: 9.99, DurationDays: 30})
	require.NoError(t, err)
	payment, err := svc.Subscribe(context.Background(), 1, plan.ID)
	require.NoError(t, err)
	_, err = svc.CompletePayment(context.Background(), payment.ID)
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), 1, plan.ID)
	assert.ErrorIs(t, err, ErrAlreadySubscribed, "no second checkout while the current subscription runs")

	// an expired subscription no longer blocks a new purchase
	past := time.Now().AddDate(0, 0, -1)
	require.NoError(t, users.SetSubscriptionExpiry(context.Background(), 1, &past))
	_, err = svc.Subscribe(context.Background(), 1, plan.ID)
	require.NoError(t, err)
}

func TestSubscribeInactivePlan(t *testing.T) {
	svc, _, _ := newBillingFixture(t)

	plan, err := svc.CreatePlan(context.Background(), &models.Plan{Name: "legacy", PriceUSD: 5, DurationDays: 30})
	require.NoError(t, err)
	off := false
	_, err = svc.UpdatePlan(context.Background(), plan.ID, nil, nil, &off)
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), 1, plan.ID)
	assert.Error(t, err)
}

func TestCreatePlanDuplicateName(t *testing.T) {
	svc, _, _ := newBillingFixture(t)

	_, err := svc.CreatePlan(context.Background(), &models.Plan{Name: "monthly", PriceUSD: 9.99, DurationDays: 30})
	require.NoError(t, err)
	_, err = svc.CreatePlan(context.Background(), &models.Plan{Name: "monthly", PriceUSD: 19.99, DurationDays: 30})
	assert.ErrorIs(t, err, storage.ErrPlanExists)
}
