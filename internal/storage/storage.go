// Package storage defines the persistence contracts the services and the
// reminder engine consume. The postgres subpackage implements them over
// wbf/dbpg; tests substitute in-memory fakes.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/notofine/backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrReminderExists is returned when a ticket already has a reminder.
	ErrReminderExists = errors.New("reminder already exists for this ticket")
	// ErrEmailTaken is returned when registering an already used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPlanExists is returned when creating a plan with a taken name.
	ErrPlanExists = errors.New("plan with this name already exists")
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetSubscriptionExpiry(ctx context.Context, userID int64, until *time.Time) error
}

type TicketStore interface {
	Create(ctx context.Context, t *models.Ticket) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Ticket, error)
	// ListOpenByUser returns the user's tickets with status open, the
	// set the reminder message is composed from.
	ListOpenByUser(ctx context.Context, userID int64) ([]models.Ticket, error)
	Update(ctx context.Context, id int64, upd TicketUpdate) error
	// Delete removes the ticket and returns its stored image URL so the
	// caller can unlink the file after the row is gone.
	Delete(ctx context.Context, id int64) (imageURL string, err error)
}

// TicketUpdate carries the mutable ticket fields; nil leaves a field as is.
type TicketUpdate struct {
	Description *string
	Status      *models.TicketStatus
	AmountUSD   *float64
}

type ReminderStore interface {
	// Create inserts a reminder plus its channel rows; ErrReminderExists
	// when the ticket already has one.
	Create(ctx context.Context, ticketID int64, frequencyDays int, channels []models.Channel) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Reminder, error)
	// ListActive returns every active reminder with its channels loaded.
	ListActive(ctx context.Context) ([]models.Reminder, error)
	// ListByUser joins through tickets owned by the user.
	ListByUser(ctx context.Context, userID int64) ([]models.Reminder, error)
	// Update applies the set fields; a non-nil channel list replaces the
	// existing set wholesale (delete-all-then-insert).
	Update(ctx context.Context, id int64, upd models.ReminderUpdate) error
	Delete(ctx context.Context, id int64) error
}

type NotificationStore interface {
	// Create persists a pending attempt record and returns its id.
	Create(ctx context.Context, n *models.Notification) (int64, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	// LastSentAt returns the sent_at of the most recent notification with
	// status sent for the reminder, or nil when it was never sent.
	LastSentAt(ctx context.Context, reminderID int64) (*time.Time, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
}

type DeviceTokenStore interface {
	// Upsert registers the token for the user; an existing token is
	// reassigned (another user logged in on the same device).
	Upsert(ctx context.Context, userID int64, token, platform string) (*models.DeviceToken, error)
	Delete(ctx context.Context, token string) error
	ListByUser(ctx context.Context, userID int64) ([]models.DeviceToken, error)
}

type PlanStore interface {
	Create(ctx context.Context, p *models.Plan) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	Update(ctx context.Context, id int64, price *float64, description *string, isActive *bool) error
}

type SubscriptionStore interface {
	Create(ctx context.Context, s *models.Subscription) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error)
	Delete(ctx context.Context, id int64) (*models.Subscription, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) (int64, error)
	Complete(ctx context.Context, id int64, subscriptionID int64) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
}
