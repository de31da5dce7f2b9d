// Package fulfillment maps Dialogflow CX webhook calls onto the feedback and
// recommendation actions and builds the text the agent shows the user.
package fulfillment

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Session parameter names read by the dispatcher.
const (
	ParamFeedbackText   = "feedback_text"
	ParamRecipientPhone = "recipient_phone_number"
)

var (
	// ErrUnavailable is returned by collaborators that are not configured.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrParameterType is returned when a session parameter holds a value
	// that cannot be read as text.
	ErrParameterType = errors.New("unsupported parameter type")

	// ErrMalformedParameters is returned when the session parameters of a
	// request are present but are not a JSON object.
	ErrMalformedParameters = errors.New("malformed session parameters")
)

// Parameters is the session parameter bag sent by the agent. Values are the
// decoded JSON values: string, float64, bool, nil, map or slice.
type Parameters map[string]any

// String returns the parameter as text. ok is false when the key is missing,
// null or an empty string. Numbers and booleans are rendered as text; objects
// and lists are reported as ErrParameterType.
func (p Parameters) String(key string) (value string, ok bool, err error) {
	raw, found := p[key]
	if !found || raw == nil {
		return "", false, nil
	}

	switch v := raw.(type) {
	case string:
		return v, v != "", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case int:
		return strconv.Itoa(v), true, nil
	case int64:
		return strconv.FormatInt(v, 10), true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	default:
		return "", false, fmt.Errorf("parameter %q: %w %T", key, ErrParameterType, raw)
	}
}

// Request is a single fulfillment call reduced to what the dispatcher routes on.
type Request struct {
	IntentName string
	Tag        string
	Parameters Parameters

	// ParametersErr is set when the parameters could not be read. Branches
	// that need parameters fail with it; the fallback ignores it.
	ParametersErr error
}

// Message is one response block holding the text lines shown to the user.
type Message struct {
	Text []string `json:"text"`
}

// Response is the ordered list of message blocks returned to the agent.
type Response struct {
	Messages []Message `json:"messages"`
}

// TextResponse builds a response holding a single text message.
func TextResponse(text string) Response {
	return Response{Messages: []Message{{Text: []string{text}}}}
}

// FeedbackRecord is the document appended to the feedback store.
type FeedbackRecord struct {
	Text      string
	Timestamp time.Time
}
