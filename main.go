package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/YevheniiGera/cx-fulfillment/internal/config"
	"github.com/YevheniiGera/cx-fulfillment/internal/feedback"
	"github.com/YevheniiGera/cx-fulfillment/internal/fulfillment"
	"github.com/YevheniiGera/cx-fulfillment/internal/logging"
	"github.com/YevheniiGera/cx-fulfillment/internal/messaging"
	"github.com/YevheniiGera/cx-fulfillment/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := feedback.Open(ctx, cfg.Feedback, logger.Named("feedback"))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close feedback store", zap.Error(err))
		}
	}()

	gateway := messaging.NewTwilioGateway(cfg.Twilio, logger.Named("messaging"))
	m := metrics.New()

	dispatcher := fulfillment.NewDispatcher(store, gateway, logger.Named("dispatcher"),
		fulfillment.WithShareLink(cfg.Fulfillment.ShareLink),
		fulfillment.WithCallTimeout(cfg.Fulfillment.CallTimeout),
		fulfillment.WithRecorder(m),
	)

	app := newApp(dispatcher, store, gateway, logger, m)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logger.Error("failed to shut down server", zap.Error(err))
		}
	}()

	logger.Info("starting webhook server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("env", cfg.Server.Environment),
		zap.Bool("feedback_store", store.IsAvailable()),
		zap.Bool("message_gateway", gateway.IsAvailable()),
	)

	if err := app.Listen(cfg.Server.Addr()); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}

func newApp(
	dispatcher *fulfillment.Dispatcher,
	store fulfillment.FeedbackStore,
	gateway fulfillment.MessageGateway,
	logger *zap.Logger,
	m *metrics.Metrics,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "cx-fulfillment",
		DisableStartupMessage: true,
	})

	app.Use(fiberrecover.New())
	app.Use(requestContext(logger, m))

	webhook := NewWebhookHandler(dispatcher, logger.Named("webhook"))
	app.Post("/webhook", webhook.Fulfill)
	app.Post("/fulfillment", webhook.Fulfill)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":          "ok",
			"feedback_store":  store.IsAvailable(),
			"message_gateway": gateway.IsAvailable(),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Hello, World 👋!")
	})

	return app
}
