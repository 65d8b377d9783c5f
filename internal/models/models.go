package models

import (
	"fmt"
	"time"
)

// Channel is a notification delivery mechanism.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// ParseChannel validates a channel name coming from the API or the queue.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketResolved TicketStatus = "resolved"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type SubscriptionStatus string

const (
	SubscriptionPending  SubscriptionStatus = "pending"
	SubscriptionPaid     SubscriptionStatus = "paid"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type User struct {
	ID                    int64      `json:"id"`
	FullName              string     `json:"full_name"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	Phone                 string     `json:"phone,omitempty"`
	IsActive              bool       `json:"is_active"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

type Ticket struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	TicketNumber string       `json:"ticket_number"`
	AmountUSD    float64      `json:"amount_usd"`
	Description  string       `json:"description,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Status       TicketStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Reminder is the per-ticket nudge configuration. A ticket owns at most
// one reminder; the database enforces the uniqueness.
type Reminder struct {
	ID            int64             `json:"id"`
	TicketID      int64             `json:"ticket_id"`
	FrequencyDays int               `json:"frequency_days"`
	Active        bool              `json:"active"`
	Channels      []ReminderChannel `json:"channels"`
	CreatedAt     time.Time         `json:"created_at"`
}

// EnabledChannels returns the channel kinds with enabled=true,
// preserving configuration order.
func (r *Reminder) EnabledChannels() []Channel {
	var out []Channel
	for _, rc := range r.Channels {
		if rc.Enabled {
			out = append(out, rc.Channel)
		}
	}
	return out
}

type ReminderChannel struct {
	ID         int64   `json:"id"`
	ReminderID int64   `json:"reminder_id"`
	Channel    Channel `json:"channel"`
	Enabled    bool    `json:"enabled"`
}

// ReminderUpdate carries the mutable reminder fields. Nil means "leave
// as is"; a non-nil Channels replaces the channel set wholesale.
type ReminderUpdate struct {
	FrequencyDays *int
	Active        *bool
	Channels      []Channel
}

// Notification is one delivery attempt. The row is written before the
// attempt with status pending and finalized exactly once afterwards.
// SentAt is non-nil iff the status is sent.
type Notification struct {
	ID           int64              `json:"id"`
	UserID       int64              `json:"user_id"`
	TicketID     *int64             `json:"ticket_id,omitempty"`
	ReminderID   *int64             `json:"reminder_id,omitempty"`
	Channel      Channel            `json:"channel"`
	Message      string             `json:"message"`
	Subject      string             `json:"subject,omitempty"`
	Status       NotificationStatus `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

type DeviceToken struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"device_token"`
	Platform  string    `json:"device_type"`
	CreatedAt time.Time `json:"created_at"`
}

type Plan struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	PriceUSD     float64 `json:"price"`
	DurationDays int     `json:"duration_days"`
	Description  string  `json:"description,omitempty"`
	IsActive     bool    `json:"is_active"`
}

type Subscription struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	PlanID    int64              `json:"plan_id"`
	Status    SubscriptionStatus `json:"payment_status"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	AutoRenew bool               `json:"auto_renew"`
	CreatedAt time.Time          `json:"created_at"`
}

type Payment struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"user_id"`
	TicketID       *int64        `json:"ticket_id,omitempty"`
	SubscriptionID *int64        `json:"subscription_id,omitempty"`
	PlanID         *int64        `json:"plan_id,omitempty"`
	AmountUSD      float64       `json:"amount_usd"`
	Status         PaymentStatus `json:"payment_status"`
	CheckoutURL    string        `json:"checkout_url,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TicketEvent is the message published to the ticket queue when a new
// ticket is registered; the consumer turns it into a notification.
type TicketEvent struct {
	TicketID     int64   `json:"ticketId"`
	UserID       int64   `json:"userId"`
	TicketNumber string  `json:"ticketNumber"`
	AmountUSD    float64 `json:"amountUsd"`
}
