package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/lock"
	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

// leaseTTL bounds how long a crashed dispatch can keep other runs away
// from the same reminder.
const leaseTTL = 60 * time.Second

// Summary is the aggregate result of one dispatch cycle: how many
// reminders were processed and how many sends succeeded per channel.
// Channels holds a key for every channel that was attempted, including
// ones where every attempt failed.
type Summary struct {
	Processed int            `json:"processed"`
	Channels  map[string]int `json:"channels"`
}

// ReminderEngine selects due reminders and fans each one out across its
// enabled channels, recording every attempt. Concurrent cycles are safe:
// a per-reminder lease keeps two overlapping runs from double-sending.
type ReminderEngine struct {
	reminders storage.ReminderStore
	tickets   storage.TicketStore
	records   storage.NotificationStore
	notifier  *NotificationService
	locker    lock.Locker

	// now is swapped in tests to freeze the due computation.
	now func() time.Time
}

func NewReminderEngine(
	reminders storage.ReminderStore,
	tickets storage.TicketStore,
	records storage.NotificationStore,
	notifier *NotificationService,
	locker lock.Locker,
) *ReminderEngine {
	return &ReminderEngine{
		reminders: reminders,
		tickets:   tickets,
		records:   records,
		notifier:  notifier,
		locker:    locker,
		now:       time.Now,
	}
}

// ListDue returns the active reminders whose next send time has arrived.
// A reminder that has never produced a sent notification is due
// immediately; otherwise it is due frequency_days calendar days after
// the last successful send.
func (e *ReminderEngine) ListDue(ctx context.Context) ([]models.Reminder, error) {
	active, err := e.reminders.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active reminders: %w", err)
	}

	now := e.now()
	var due []models.Reminder
	for _, r := range active {
		lastSent, err := e.records.LastSentAt(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("last sent for reminder %d: %w", r.ID, err)
		}
		if lastSent == nil {
			due = append(due, r)
			continue
		}
		if !now.Before(lastSent.AddDate(0, 0, r.FrequencyDays)) {
			due = append(due, r)
		}
	}
	return due, nil
}

// ProcessDue runs one dispatch cycle. Individual reminder failures are
// logged and skipped; the cycle always completes with an aggregate
// summary.
func (e *ReminderEngine) ProcessDue(ctx context.Context) (*Summary, error) {
	due, err := e.ListDue(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Channels: make(map[string]int)}
	for _, r := range due {
		counts, err := e.Dispatch(ctx, &r)
		if err != nil {
			zlog.Logger.Error().Err(err).Int64("reminder_id", r.ID).Msg("reminder dispatch failed")
			continue
		}
		if counts == nil {
			// skipped: resolved ticket or lease held elsewhere
			continue
		}
		summary.Processed++
		for ch, n := range counts {
			summary.Channels[ch] += n
		}
	}

	zlog.Logger.Info().
		Int("due", len(due)).
		Int("processed", summary.Processed).
		Interface("channels", summary.Channels).
		Msg("dispatch cycle completed")
	return summary, nil
}

// Dispatch sends one reminder across its enabled channels and returns
// per-channel success counts. A nil map with nil error means the
// reminder was skipped: its ticket is resolved, gone, or another run
// holds the lease.
func (e *ReminderEngine) Dispatch(ctx context.Context, r *models.Reminder) (map[string]int, error) {
	leaseKey := fmt.Sprintf("reminder:lease:%d", r.ID)
	ok, err := e.locker.Acquire(ctx, leaseKey, leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		zlog.Logger.Debug().Int64("reminder_id", r.ID).Msg("reminder leased by another run, skipping")
		return nil, nil
	}
	defer func() {
		if err := e.locker.Release(context.WithoutCancel(ctx), leaseKey); err != nil {
			zlog.Logger.Warn().Err(err).Str("key", leaseKey).Msg("lease release failed")
		}
	}()

	ticket, err := e.tickets.GetByID(ctx, r.TicketID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load ticket %d: %w", r.TicketID, err)
	}
	if ticket.Status == models.TicketResolved {
		return nil, nil
	}

	open, err := e.tickets.ListOpenByUser(ctx, ticket.UserID)
	if err != nil {
		return nil, fmt.Errorf("list open tickets for user %d: %w", ticket.UserID, err)
	}
	body := composeReminderBody(ticket, open)

	counts := make(map[string]int)
	for _, ch := range r.EnabledChannels() {
		n := &models.Notification{
			UserID:     ticket.UserID,
			TicketID:   &ticket.ID,
			ReminderID: &r.ID,
			Channel:    ch,
			Message:    body,
			Subject:    "Payment reminder - Notofine",
		}
		counts[string(ch)] = 0
		sent, err := e.notifier.Deliver(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("deliver %s notification: %w", ch, err)
		}
		if sent {
			counts[string(ch)]++
		}
	}
	return counts, nil
}

// composeReminderBody builds the plural-aware message from the user's
// open tickets. The triggering ticket's number is named when it is the
// only one outstanding.
func composeReminderBody(ticket *models.Ticket, open []models.Ticket) string {
	var total float64
	for _, t := range open {
		total += t.AmountUSD
	}
	switch len(open) {
	case 0:
		// the triggering ticket is open but the listing missed it;
		// fall back to the single-ticket wording
		return fmt.Sprintf("Reminder: ticket %s for $%.2f is awaiting payment.", ticket.TicketNumber, ticket.AmountUSD)
	case 1:
		return fmt.Sprintf("Reminder: ticket %s for $%.2f is awaiting payment.", open[0].TicketNumber, open[0].AmountUSD)
	default:
		return fmt.Sprintf("Reminder: you have %d tickets awaiting payment, $%.2f in total.", len(open), total)
	}
}
