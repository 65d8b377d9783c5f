// Package channels holds the delivery-channel senders. Each sender
// returns a typed Outcome instead of raising errors across the
// dispatcher boundary, so expected failure modes (missing phone,
// missing token, unset credentials) never abort sibling channels.
package channels

import (
	"context"

	"github.com/notofine/backend/internal/models"
)

// FailureKind separates configuration/validation failures from remote
// transport failures; both end up as failed notification records, the
// kind only drives logging and the error text.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureTransport  FailureKind = "transport"
)

// Outcome is the result of one channel send attempt.
type Outcome struct {
	OK   bool
	Kind FailureKind
	Err  string
}

func sent() Outcome {
	return Outcome{OK: true}
}

func validationFailure(msg string) Outcome {
	return Outcome{Kind: FailureValidation, Err: msg}
}

func transportFailure(msg string) Outcome {
	return Outcome{Kind: FailureTransport, Err: msg}
}

// Message is the channel-independent payload.
type Message struct {
	Subject  string
	Body     string
	ImageURL string
}

// Sender delivers one message to one user over one channel.
// Implementations must honor ctx cancellation so a stalled transport
// cannot block sibling channels.
type Sender interface {
	Send(ctx context.Context, user *models.User, msg Message) Outcome
}

// SenderMap is the closed channel-kind to implementation mapping built
// once at bootstrap.
type SenderMap map[models.Channel]Sender
