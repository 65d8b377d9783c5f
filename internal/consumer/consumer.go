// Package consumer drains the ticket event queue and turns each new
// ticket into an immediate email notice to its owner. Reminder traffic
// stays with the scheduler; this path covers only the moment a citation
// is first registered.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/service"
)

// TicketEventProcessor delivers the ticket-created notice for one event.
type TicketEventProcessor struct {
	notifier *service.NotificationService

	processedCount int
	failedCount    int
}

func NewTicketEventProcessor(notifier *service.NotificationService) *TicketEventProcessor {
	return &TicketEventProcessor{notifier: notifier}
}

func (p *TicketEventProcessor) Process(ctx context.Context, ev models.TicketEvent) error {
	n := &models.Notification{
		UserID:   ev.UserID,
		TicketID: &ev.TicketID,
		Channel:  models.ChannelEmail,
		Subject:  "New ticket registered - Notofine",
		Message: fmt.Sprintf("Ticket %s for $%.2f has been added to your account. We will remind you until it is paid.",
			ev.TicketNumber, ev.AmountUSD),
	}
	sent, err := p.notifier.Deliver(ctx, n)
	if err != nil {
		return err
	}
	if sent {
		p.processedCount++
	} else {
		// recorded as failed in the audit log, nothing to retry here
		p.failedCount++
	}
	return nil
}

// Run consumes the queue until ctx is canceled. Malformed or failed
// messages are logged and skipped so one bad event cannot wedge the
// queue.
func Run(ctx context.Context, consumer *rabbitmq.Consumer, processor *TicketEventProcessor) error {
	defer func() {
		zlog.Logger.Info().
			Int("processed", processor.processedCount).
			Int("failed", processor.failedCount).
			Msg("ticket consumer stopped")
	}()

	msgChan := make(chan []byte, 100)

	consumeErrChan := make(chan error, 1)
	go func() {
		consumeErrChan <- consumer.Consume(msgChan)
		close(consumeErrChan)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-consumeErrChan:
			if err != nil {
				return fmt.Errorf("consume: %w", err)
			}
			return nil

		case body, ok := <-msgChan:
			if !ok {
				return nil
			}
			if err := processSingleMessage(ctx, body, processor); err != nil {
				processor.failedCount++
				zlog.Logger.Error().Err(err).Msg("ticket event processing failed")
			}
		}
	}
}

func processSingleMessage(ctx context.Context, body []byte, processor *TicketEventProcessor) error {
	var ev models.TicketEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("json parsing error: %w", err)
	}
	if ev.UserID == 0 {
		return fmt.Errorf("ticket event without user id")
	}
	return processor.Process(ctx, ev)
}
