package channels

import (
	"context"

	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/models"
)

// SMSSender validates the recipient and logs the delivery. The real SMS
// gateway is not wired yet; a missing phone number still fails before
// any transport would be attempted, so the validation path is final.
type SMSSender struct{}

func NewSMSSender() *SMSSender {
	return &SMSSender{}
}

func (s *SMSSender) Send(ctx context.Context, user *models.User, msg Message) Outcome {
	if user.Phone == "" {
		return validationFailure("missing phone number for user")
	}
	select {
	case <-ctx.Done():
		return transportFailure("sms send canceled: " + ctx.Err().Error())
	default:
	}
	zlog.Logger.Info().Str("phone", user.Phone).Msg("sms sent")
	return sent()
}
