package fulfillment

import (
	"context"
	"time"
)

// FeedbackStore durably appends feedback records.
type FeedbackStore interface {
	// IsAvailable reports whether the store was configured and connected.
	IsAvailable() bool
	// Append stores the record and returns the identifier assigned to it.
	Append(ctx context.Context, record FeedbackRecord) (string, error)
}

// MessageGateway delivers a text body to a phone number.
type MessageGateway interface {
	// IsAvailable reports whether the gateway has credentials to send.
	IsAvailable() bool
	// Send delivers body to destination, an E.164 number. The gateway is
	// responsible for qualifying the address with its channel.
	Send(ctx context.Context, destination, body string) error
}

// Recorder receives dispatch outcomes for metrics.
type Recorder interface {
	RecordDispatch(branch, outcome string, elapsed time.Duration)
	RecordCollaboratorCall(collaborator string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordDispatch(string, string, time.Duration) {}

func (nopRecorder) RecordCollaboratorCall(string, error) {}
