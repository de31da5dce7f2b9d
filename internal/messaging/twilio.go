// Package messaging sends recommendation messages through Twilio.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/YevheniiGera/cx-fulfillment/internal/config"
	"github.com/YevheniiGera/cx-fulfillment/internal/fulfillment"
)

// ChannelSMS sends plain SMS; any other channel prefixes addresses with "<channel>:".
const ChannelSMS = "sms"

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioGateway sends messages with the Twilio REST API.
type TwilioGateway struct {
	api     messageCreator
	from    string
	channel string
	logger  *zap.Logger
}

// NewTwilioGateway creates a gateway from cfg. Without an account SID and
// auth token the gateway is returned unavailable.
func NewTwilioGateway(cfg config.TwilioConfig, logger *zap.Logger) *TwilioGateway {
	g := &TwilioGateway{
		from:    cfg.From,
		channel: strings.ToLower(strings.TrimSpace(cfg.Channel)),
		logger:  logger,
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		logger.Warn("twilio credentials missing, messaging disabled")
		return g
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	g.api = client.Api
	return g
}

// IsAvailable reports whether the gateway has credentials.
func (g *TwilioGateway) IsAvailable() bool {
	return g != nil && g.api != nil
}

// Send delivers body to destination over the configured channel. The REST
// call itself is not cancellable; ctx bounds how long Send waits for it.
func (g *TwilioGateway) Send(ctx context.Context, destination, body string) error {
	if !g.IsAvailable() {
		return fulfillment.ErrUnavailable
	}

	to := g.address(destination)
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.address(g.from))
	params.SetBody(body)

	g.logger.Info("attempting to send message", zap.String("to", to), zap.String("channel", g.channel))

	type result struct {
		msg *openapi.ApiV2010Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := g.api.CreateMessage(params)
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to send message to %s: %w", to, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("failed to send message to %s: %w", to, r.err)
		}
		if r.msg != nil && r.msg.Sid != nil {
			g.logger.Info("message sent successfully", zap.String("sid", *r.msg.Sid))
		}
		return nil
	}
}

// address qualifies a phone number with the channel prefix, leaving already
// qualified addresses untouched.
func (g *TwilioGateway) address(number string) string {
	if g.channel == "" || g.channel == ChannelSMS || strings.Contains(number, ":") {
		return number
	}
	return g.channel + ":" + number
}
