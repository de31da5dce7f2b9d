package main

import (
	"fmt"

	"cloud.google.com/go/dialogflow/cx/apiv3/cxpb"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/YevheniiGera/cx-fulfillment/internal/fulfillment"
	"github.com/YevheniiGera/cx-fulfillment/internal/logging"
)

// Written when the response itself cannot be encoded.
const fallbackBody = `{"fulfillmentResponse":{"messages":[{"text":{"text":["I'm sorry, I didn't understand that. Could you please rephrase?"]}}]}}`

type WebhookHandler struct {
	dispatcher *fulfillment.Dispatcher
	logger     *zap.Logger
}

func NewWebhookHandler(dispatcher *fulfillment.Dispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Fulfill answers a Dialogflow CX webhook call. It always responds 200 with a
// fulfillment response, whatever the request body holds.
func (h *WebhookHandler) Fulfill(c *fiber.Ctx) (err error) {
	ctx := c.UserContext()
	logger := logging.FromContext(ctx, h.logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("webhook panic", zap.Any("panic", r), zap.Stack("stack"))
			err = h.respond(c, logger, fulfillment.TextResponse(fulfillment.UnexpectedErrorText(fmt.Errorf("%v", r))))
		}
	}()

	req, decodeErr := decodeWebhookRequest(c.Body())
	if decodeErr != nil {
		logger.Warn("malformed webhook request", zap.Error(decodeErr))
	}

	return h.respond(c, logger, h.dispatcher.Dispatch(ctx, req))
}

func (h *WebhookHandler) respond(c *fiber.Ctx, logger *zap.Logger, resp fulfillment.Response) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Status(fiber.StatusOK)

	body, err := protojson.Marshal(encodeWebhookResponse(resp))
	if err != nil {
		logger.Error("failed to encode webhook response", zap.Error(err))
		return c.SendString(fallbackBody)
	}
	return c.Send(body)
}

// decodeWebhookRequest reads the fields the dispatcher routes on from a CX
// WebhookRequest body. The body is parsed as generic JSON so a mistyped field
// elsewhere in the request does not hide the intent. A body that is not a
// JSON object returns an error and an empty request, which routes to the
// fallback.
func decodeWebhookRequest(body []byte) (fulfillment.Request, error) {
	var root structpb.Value
	if err := protojson.Unmarshal(body, &root); err != nil {
		return fulfillment.Request{}, fmt.Errorf("failed to decode webhook request: %w", err)
	}
	fields, ok := objectFields(&root)
	if !ok {
		return fulfillment.Request{}, fmt.Errorf("failed to decode webhook request: expected object, got %s", kindName(&root))
	}

	req := fulfillment.Request{
		IntentName: stringField(fields["intentInfo"], "displayName"),
		Tag:        stringField(fields["fulfillmentInfo"], "tag"),
	}
	req.Parameters, req.ParametersErr = sessionParameters(fields["sessionInfo"])
	return req, nil
}

// sessionParameters extracts sessionInfo.parameters. Absent or null values
// give an empty bag; anything other than an object is an error.
func sessionParameters(session *structpb.Value) (fulfillment.Parameters, error) {
	params := fulfillment.Parameters{}
	if isAbsent(session) {
		return params, nil
	}
	sessionFields, ok := objectFields(session)
	if !ok {
		return params, fmt.Errorf("sessionInfo: %w: expected object, got %s", fulfillment.ErrMalformedParameters, kindName(session))
	}

	raw := sessionFields["parameters"]
	if isAbsent(raw) {
		return params, nil
	}
	rawFields, ok := objectFields(raw)
	if !ok {
		return params, fmt.Errorf("sessionInfo.parameters: %w: expected object, got %s", fulfillment.ErrMalformedParameters, kindName(raw))
	}

	for key, value := range rawFields {
		params[key] = value.AsInterface()
	}
	return params, nil
}

// stringField returns obj[key] when obj is an object and the value is a
// string, and "" otherwise.
func stringField(obj *structpb.Value, key string) string {
	fields, _ := objectFields(obj)
	return fields[key].GetStringValue()
}

func objectFields(v *structpb.Value) (map[string]*structpb.Value, bool) {
	s, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, false
	}
	return s.StructValue.GetFields(), true
}

func isAbsent(v *structpb.Value) bool {
	if v == nil {
		return true
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return isNull
}

func kindName(v *structpb.Value) string {
	switch v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return "string"
	case *structpb.Value_NumberValue:
		return "number"
	case *structpb.Value_BoolValue:
		return "bool"
	case *structpb.Value_ListValue:
		return "array"
	case *structpb.Value_StructValue:
		return "object"
	default:
		return "null"
	}
}

func encodeWebhookResponse(resp fulfillment.Response) *cxpb.WebhookResponse {
	messages := make([]*cxpb.ResponseMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		messages = append(messages, &cxpb.ResponseMessage{
			Message: &cxpb.ResponseMessage_Text_{
				Text: &cxpb.ResponseMessage_Text{Text: m.Text},
			},
		})
	}

	return &cxpb.WebhookResponse{
		FulfillmentResponse: &cxpb.WebhookResponse_FulfillmentResponse{Messages: messages},
	}
}
