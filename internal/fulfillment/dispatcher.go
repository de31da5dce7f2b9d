package fulfillment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/YevheniiGera/cx-fulfillment/internal/logging"
	"github.com/YevheniiGera/cx-fulfillment/internal/phone"
)

// Intent display names and fulfillment tags the dispatcher routes on.
const (
	IntentFeedback  = "FeedbackIntent"
	IntentRecommend = "RecommendIntent"

	TagFeedback  = "feedback-recommend"
	TagRecommend = "recommend-share"
)

// Texts returned to the agent.
const (
	TextFeedbackRecorded    = "Thank you for your feedback! It has been recorded."
	TextFeedbackFailed      = "Sorry, I couldn't save your feedback at this time."
	TextFeedbackUnavailable = "Sorry, no feedback text provided or database unavailable."

	TextMessageSent   = "Message sent successfully."
	TextMessageFailed = "Failed to send message. Please try again later."

	// TextMessagingDisabled is returned when the gateway has no credentials
	// configured. No send is attempted, so this is reported separately from
	// TextMessageFailed.
	TextMessagingDisabled  = "Sorry, messaging is not available right now."
	TextMissingPhoneNumber = "Sorry, I did not receive a valid phone number."

	TextFallback = "I'm sorry, I didn't understand that. Could you please rephrase?"
)

// DefaultShareLink is the link sent in recommendation messages.
const DefaultShareLink = "https://www.google.com/search?q=https://example.com/share"

const recommendationTemplate = "Hello! I wanted to recommend this service to you. Check it out here: %s"

// DefaultCallTimeout bounds each store or gateway call.
const DefaultCallTimeout = 10 * time.Second

// Branch identifies the action selected for a request.
type Branch string

const (
	BranchFeedback  Branch = "feedback"
	BranchRecommend Branch = "recommend"
	BranchFallback  Branch = "fallback"
)

// Outcome labels reported to the Recorder.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnavailable = "unavailable"
	OutcomeMissing     = "missing_parameter"
	OutcomeUnmatched   = "unmatched"
	OutcomeError       = "error"
)

// Collaborator labels reported to the Recorder.
const (
	CollaboratorStore   = "feedback_store"
	CollaboratorGateway = "message_gateway"
)

// Route selects the branch for req. The feedback branch wins when both match.
func Route(req Request) Branch {
	switch {
	case req.IntentName == IntentFeedback || req.Tag == TagFeedback:
		return BranchFeedback
	case req.IntentName == IntentRecommend || req.Tag == TagRecommend:
		return BranchRecommend
	default:
		return BranchFallback
	}
}

// UnexpectedErrorText is the text returned when a branch fails unexpectedly.
func UnexpectedErrorText(err error) string {
	return "Unexpected error: " + err.Error()
}

// RecommendationBody renders the recommendation message for shareLink.
func RecommendationBody(shareLink string) string {
	return fmt.Sprintf(recommendationTemplate, shareLink)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithShareLink sets the link embedded in recommendation messages.
func WithShareLink(link string) Option {
	return func(d *Dispatcher) {
		if link != "" {
			d.shareLink = link
		}
	}
}

// WithCallTimeout bounds every collaborator call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

// WithClock replaces the clock used to timestamp feedback.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithRecorder reports dispatch outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// Dispatcher runs the action selected for each fulfillment request. It holds
// no per-request state and is safe for concurrent use.
type Dispatcher struct {
	store       FeedbackStore
	gateway     MessageGateway
	logger      *zap.Logger
	recorder    Recorder
	now         func() time.Time
	shareLink   string
	callTimeout time.Duration
}

// NewDispatcher creates a Dispatcher. store and gateway may be nil, in which
// case their branches report the collaborator as unavailable.
func NewDispatcher(store FeedbackStore, gateway MessageGateway, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		store:       store,
		gateway:     gateway,
		logger:      logger,
		recorder:    nopRecorder{},
		now:         time.Now,
		shareLink:   DefaultShareLink,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the branch selected for req and returns the response text.
// It never fails: errors and panics from a branch become an "Unexpected
// error" text.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	branch := Route(req)
	logger := logging.FromContext(ctx, d.logger)

	logger.Info("received webhook request",
		zap.String("intent", req.IntentName),
		zap.String("tag", req.Tag),
		zap.String("branch", string(branch)),
	)

	text, outcome, err := d.run(ctx, logger, branch, req)
	if err != nil {
		logger.Error("webhook error", zap.String("branch", string(branch)), zap.Error(err))
		text, outcome = UnexpectedErrorText(err), OutcomeError
	}

	d.recorder.RecordDispatch(string(branch), outcome, time.Since(start))
	return TextResponse(text)
}

// run executes branch. A panic in a collaborator is returned as an error so
// the request still gets an answer and is still recorded.
func (d *Dispatcher) run(ctx context.Context, logger *zap.Logger, branch Branch, req Request) (text, outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch panic", zap.Any("panic", r), zap.Stack("stack"))
			text, outcome, err = "", "", fmt.Errorf("%v", r)
		}
	}()

	switch branch {
	case BranchFeedback:
		if req.ParametersErr != nil {
			return "", "", req.ParametersErr
		}
		return d.feedback(ctx, logger, req.Parameters)
	case BranchRecommend:
		if req.ParametersErr != nil {
			return "", "", req.ParametersErr
		}
		return d.recommend(ctx, logger, req.Parameters)
	default:
		return TextFallback, OutcomeUnmatched, nil
	}
}

func (d *Dispatcher) feedback(ctx context.Context, logger *zap.Logger, params Parameters) (string, string, error) {
	text, ok, err := params.String(ParamFeedbackText)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return TextFeedbackUnavailable, OutcomeMissing, nil
	}
	if d.store == nil || !d.store.IsAvailable() {
		logger.Warn("feedback store unavailable, feedback not saved")
		return TextFeedbackUnavailable, OutcomeUnavailable, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	id, err := d.store.Append(callCtx, FeedbackRecord{Text: text, Timestamp: d.now().UTC()})
	d.recorder.RecordCollaboratorCall(CollaboratorStore, err)
	if err != nil {
		logger.Error("error saving feedback", zap.Error(err))
		return TextFeedbackFailed, OutcomeFailure, nil
	}

	logger.Info("feedback saved", zap.String("id", id))
	return TextFeedbackRecorded, OutcomeSuccess, nil
}

func (d *Dispatcher) recommend(ctx context.Context, logger *zap.Logger, params Parameters) (string, string, error) {
	raw, ok, err := params.String(ParamRecipientPhone)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return TextMissingPhoneNumber, OutcomeMissing, nil
	}
	if d.gateway == nil || !d.gateway.IsAvailable() {
		logger.Warn("message gateway unavailable, recommendation not sent")
		return TextMessagingDisabled, OutcomeUnavailable, nil
	}

	destination := phone.Normalize(raw)

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	err = d.gateway.Send(callCtx, destination, RecommendationBody(d.shareLink))
	d.recorder.RecordCollaboratorCall(CollaboratorGateway, err)
	if err != nil {
		logger.Error("failed to send recommendation", zap.String("to", destination), zap.Error(err))
		return TextMessageFailed, OutcomeFailure, nil
	}

	logger.Info("recommendation sent", zap.String("to", destination))
	return TextMessageSent, OutcomeSuccess, nil
}
