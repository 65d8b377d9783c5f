package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

// TicketQueue is the durable queue ticket events are published to.
const TicketQueue = "ticket.notifications"

var ErrInvalidAmount = errors.New("amount must be greater than zero")

// TicketService manages citations and publishes an event for every new
// ticket so the consumer can notify the owner out of band.
type TicketService struct {
	tickets   storage.TicketStore
	publisher *rabbitmq.Publisher
}

func NewTicketService(tickets storage.TicketStore, publisher *rabbitmq.Publisher) *TicketService {
	return &TicketService{tickets: tickets, publisher: publisher}
}

func (s *TicketService) Create(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	if t.AmountUSD <= 0 {
		return nil, ErrInvalidAmount
	}
	if t.TicketNumber == "" {
		return nil, errors.New("ticket number is required")
	}
	t.Status = models.TicketOpen

	id, err := s.tickets.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	created, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publishEvent(created)
	return created, nil
}

// publishEvent pushes the ticket-created event to the queue. Publish
// failures are logged, not propagated: the ticket row is already
// durable and the event is best effort.
func (s *TicketService) publishEvent(t *models.Ticket) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(models.TicketEvent{
		TicketID:     t.ID,
		UserID:       t.UserID,
		TicketNumber: t.TicketNumber,
		AmountUSD:    t.AmountUSD,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("ticket_id", t.ID).Msg("marshal ticket event")
		return
	}
	err = s.publisher.Publish(
		body,
		TicketQueue,
		"application/json",
		rabbitmq.PublishingOptions{
			Headers: amqp091.Table{
				"delivery-mode": 2,
			},
		},
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("ticket_id", t.ID).Msg("publish ticket event")
		return
	}
	zlog.Logger.Info().Int64("ticket_id", t.ID).Str("queue", TicketQueue).Msg("ticket event published")
}

func (s *TicketService) Get(ctx context.Context, userID, id int64) (*models.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *TicketService) ListByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	return s.tickets.ListByUser(ctx, userID)
}

func (s *TicketService) Update(ctx context.Context, userID, id int64, upd storage.TicketUpdate) (*models.Ticket, error) {
	if upd.AmountUSD != nil && *upd.AmountUSD <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.tickets.GetByID(ctx, id)
}

// Resolve marks the ticket paid; its reminder stops firing from the
// next cycle on.
func (s *TicketService) Resolve(ctx context.Context, userID, id int64) (*models.Ticket, error) {
	resolved := models.TicketResolved
	return s.Update(ctx, userID, id, storage.TicketUpdate{Status: &resolved})
}

// Delete removes the ticket and reports the stored image URL so the
// caller can unlink the uploaded file.
func (s *TicketService) Delete(ctx context.Context, userID, id int64) (string, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return "", err
	}
	imageURL, err := s.tickets.Delete(ctx, id)
	if err != nil {
		return "", fmt.Errorf("delete ticket %d: %w", id, err)
	}
	return imageURL, nil
}
