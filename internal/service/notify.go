// Package service holds the business logic: the reminder engine, the
// reminder registry, ticket/user/subscription operations, and the
// notification delivery core they all share.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/channels"
	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

const defaultSendTimeout = 10 * time.Second

// NotificationService delivers one message to one user over one channel
// and records the attempt. Every delivery path in the system (reminder
// dispatch, ticket events, direct API sends) goes through Deliver so the
// audit log stays complete.
type NotificationService struct {
	users       storage.UserStore
	records     storage.NotificationStore
	senders     channels.SenderMap
	sendTimeout time.Duration
}

func NewNotificationService(users storage.UserStore, records storage.NotificationStore, senders channels.SenderMap) *NotificationService {
	return &NotificationService{
		users:       users,
		records:     records,
		senders:     senders,
		sendTimeout: defaultSendTimeout,
	}
}

// Deliver writes a pending record, runs the channel sender under a
// timeout, and finalizes the record as sent or failed. The returned bool
// reports delivery success; the error is reserved for persistence
// problems, a failed send is not an error here.
func (s *NotificationService) Deliver(ctx context.Context, n *models.Notification) (bool, error) {
	user, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		return false, fmt.Errorf("load user %d: %w", n.UserID, err)
	}

	n.Status = models.NotificationPending
	id, err := s.records.Create(ctx, n)
	if err != nil {
		return false, fmt.Errorf("create notification record: %w", err)
	}
	n.ID = id

	outcome := s.attempt(ctx, user, n)
	if outcome.OK {
		sentAt := time.Now()
		if err := s.records.MarkSent(ctx, id, sentAt); err != nil {
			return false, fmt.Errorf("mark notification %d sent: %w", id, err)
		}
		n.Status = models.NotificationSent
		n.SentAt = &sentAt
		zlog.Logger.Info().
			Int64("notification_id", id).
			Int64("user_id", n.UserID).
			Str("channel", string(n.Channel)).
			Msg("notification sent")
		return true, nil
	}

	if err := s.records.MarkFailed(ctx, id, outcome.Err); err != nil {
		return false, fmt.Errorf("mark notification %d failed: %w", id, err)
	}
	n.Status = models.NotificationFailed
	n.ErrorMessage = outcome.Err
	zlog.Logger.Warn().
		Int64("notification_id", id).
		Int64("user_id", n.UserID).
		Str("channel", string(n.Channel)).
		Str("kind", string(outcome.Kind)).
		Str("error", outcome.Err).
		Msg("notification failed")
	return false, nil
}

// attempt runs the sender with a bounded timeout and converts a panic
// into a failed outcome so one misbehaving sender cannot take down the
// dispatch cycle.
func (s *NotificationService) attempt(ctx context.Context, user *models.User, n *models.Notification) (outcome channels.Outcome) {
	sender, ok := s.senders[n.Channel]
	if !ok {
		return channels.Outcome{Kind: channels.FailureValidation, Err: fmt.Sprintf("no sender configured for channel %s", n.Channel)}
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = channels.Outcome{Kind: channels.FailureTransport, Err: fmt.Sprintf("sender panic: %v", r)}
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	return sender.Send(sendCtx, user, channels.Message{
		Subject:  n.Subject,
		Body:     n.Message,
		ImageURL: "",
	})
}

// History returns the user's recent notification records, newest first.
func (s *NotificationService) History(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.records.ListByUser(ctx, userID, limit)
}
