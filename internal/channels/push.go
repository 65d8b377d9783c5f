package channels

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

// PushSender delivers over Firebase Cloud Messaging. One logical send
// fans out to every registered device token of the user; the outcome is
// OK when at least one device accepts the message.
type PushSender struct {
	client *messaging.Client
	tokens storage.DeviceTokenStore
}

func NewPushSender(client *messaging.Client, tokens storage.DeviceTokenStore) *PushSender {
	return &PushSender{client: client, tokens: tokens}
}

func (p *PushSender) Send(ctx context.Context, user *models.User, msg Message) Outcome {
	if p.client == nil {
		return validationFailure("fcm credentials not configured")
	}
	tokens, err := p.tokens.ListByUser(ctx, user.ID)
	if err != nil {
		return transportFailure("list device tokens: " + err.Error())
	}
	if len(tokens) == 0 {
		return validationFailure("no registered device tokens for user")
	}

	delivered := 0
	var lastErr error
	for _, tok := range tokens {
		m := &messaging.Message{
			Token: tok.Token,
			Notification: &messaging.Notification{
				Title:    msg.Subject,
				Body:     msg.Body,
				ImageURL: msg.ImageURL,
			},
			Android: &messaging.AndroidConfig{Priority: "high"},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{Sound: "default"},
				},
			},
		}
		if _, err := p.client.Send(ctx, m); err != nil {
			lastErr = err
			zlog.Logger.Warn().Err(err).Int64("user_id", user.ID).Msg("push delivery failed for device")
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return transportFailure(fmt.Sprintf("push failed for all %d devices: %v", len(tokens), lastErr))
	}
	zlog.Logger.Info().Int64("user_id", user.ID).Int("devices", delivered).Msg("push sent")
	return sent()
}
