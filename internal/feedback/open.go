package feedback

import (
	"context"

	"go.uber.org/zap"

	"github.com/YevheniiGera/cx-fulfillment/internal/config"
	"github.com/YevheniiGera/cx-fulfillment/internal/fulfillment"
)

// Store is a feedback store that owns a connection.
type Store interface {
	fulfillment.FeedbackStore
	Close() error
}

// Disabled is the store used when no backend could be initialised.
type Disabled struct{}

// IsAvailable always reports false.
func (Disabled) IsAvailable() bool { return false }

// Append always fails with fulfillment.ErrUnavailable.
func (Disabled) Append(context.Context, fulfillment.FeedbackRecord) (string, error) {
	return "", fulfillment.ErrUnavailable
}

// Close does nothing.
func (Disabled) Close() error { return nil }

// Open builds the store selected by cfg.Backend. A backend that fails to
// initialise is logged and replaced by Disabled so the webhook keeps
// answering without a database.
func Open(ctx context.Context, cfg config.FeedbackConfig, logger *zap.Logger) Store {
	switch cfg.Backend {
	case config.BackendFirestore:
		store, err := NewFirestoreStore(ctx, cfg.ProjectID, cfg.Collection, cfg.CredentialsFile, logger)
		if err != nil {
			logger.Warn("continuing without database connection", zap.Error(err))
			return Disabled{}
		}
		return store

	case config.BackendPostgres:
		store, err := NewPostgresStore(ctx, cfg.DatabaseURL, cfg.Collection, logger)
		if err != nil {
			logger.Warn("continuing without database connection", zap.Error(err))
			return Disabled{}
		}
		return store

	default:
		logger.Info("feedback storage disabled", zap.String("backend", cfg.Backend))
		return Disabled{}
	}
}
