package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

var (
	// ErrInvalidFrequency rejects non-positive reminder frequencies.
	ErrInvalidFrequency = errors.New("frequency_days must be at least 1")
	// ErrNoChannels rejects a reminder without any delivery channel.
	ErrNoChannels = errors.New("at least one channel is required")
	// ErrForbidden is returned when a user touches a resource they do
	// not own.
	ErrForbidden = errors.New("resource belongs to another user")
)

// ReminderService is the registry layer over reminder configurations.
// It validates input and enforces ticket ownership; uniqueness per
// ticket is enforced by the store.
type ReminderService struct {
	reminders storage.ReminderStore
	tickets   storage.TicketStore
}

func NewReminderService(reminders storage.ReminderStore, tickets storage.TicketStore) *ReminderService {
	return &ReminderService{reminders: reminders, tickets: tickets}
}

func (s *ReminderService) Create(ctx context.Context, userID, ticketID int64, frequencyDays int, chans []models.Channel) (*models.Reminder, error) {
	if frequencyDays < 1 {
		return nil, ErrInvalidFrequency
	}
	if len(chans) == 0 {
		return nil, ErrNoChannels
	}
	chans = dedupeChannels(chans)

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, ErrForbidden
	}

	id, err := s.reminders.Create(ctx, ticketID, frequencyDays, chans)
	if err != nil {
		return nil, err
	}
	return s.reminders.GetByID(ctx, id)
}

func (s *ReminderService) Get(ctx context.Context, userID, id int64) (*models.Reminder, error) {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, userID, r.TicketID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReminderService) ListByUser(ctx context.Context, userID int64) ([]models.Reminder, error) {
	return s.reminders.ListByUser(ctx, userID)
}

// Update applies the supplied fields. A non-nil channel list replaces
// the configured set wholesale.
func (s *ReminderService) Update(ctx context.Context, userID, id int64, upd models.ReminderUpdate) (*models.Reminder, error) {
	if upd.FrequencyDays != nil && *upd.FrequencyDays < 1 {
		return nil, ErrInvalidFrequency
	}
	if upd.Channels != nil {
		if len(upd.Channels) == 0 {
			return nil, ErrNoChannels
		}
		upd.Channels = dedupeChannels(upd.Channels)
	}

	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, userID, r.TicketID); err != nil {
		return nil, err
	}

	if err := s.reminders.Update(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.reminders.GetByID(ctx, id)
}

func (s *ReminderService) Delete(ctx context.Context, userID, id int64) error {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwner(ctx, userID, r.TicketID); err != nil {
		return err
	}
	return s.reminders.Delete(ctx, id)
}

func (s *ReminderService) checkOwner(ctx context.Context, userID, ticketID int64) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("load ticket %d: %w", ticketID, err)
	}
	if ticket.UserID != userID {
		return ErrForbidden
	}
	return nil
}

// dedupeChannels drops repeated channel kinds, keeping first occurrence
// order. The database does not enforce this.
func dedupeChannels(in []models.Channel) []models.Channel {
	seen := make(map[models.Channel]bool, len(in))
	out := in[:0]
	for _, ch := range in {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}
