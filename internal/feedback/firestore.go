// Package feedback implements the feedback stores used by the dispatcher.
package feedback

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/YevheniiGera/cx-fulfillment/internal/fulfillment"
)

type documentAdder interface {
	Add(ctx context.Context, data interface{}) (*firestore.DocumentRef, *firestore.WriteResult, error)
}

// FirestoreStore appends feedback documents to a Firestore collection.
type FirestoreStore struct {
	client *firestore.Client
	docs   documentAdder
	logger *zap.Logger
}

// NewFirestoreStore connects to Firestore. An empty projectID is detected
// from the environment; an empty credentialsFile uses Application Default
// Credentials.
func NewFirestoreStore(ctx context.Context, projectID, collection, credentialsFile string, logger *zap.Logger) (*FirestoreStore, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}

	// Collection returns nil for a path that does not name a collection,
	// such as "a/b".
	docs := client.Collection(collection)
	if docs == nil {
		_ = client.Close()
		return nil, fmt.Errorf("invalid Firestore collection path %q", collection)
	}

	logger.Info("firestore connected",
		zap.String("collection", collection),
		zap.Bool("credentials_file", credentialsFile != ""),
	)

	return &FirestoreStore{
		client: client,
		docs:   docs,
		logger: logger,
	}, nil
}

// IsAvailable reports whether the store has a collection to write to.
func (s *FirestoreStore) IsAvailable() bool {
	return s != nil && s.docs != nil
}

// Append adds a document with text and timestamp fields and returns its ID.
func (s *FirestoreStore) Append(ctx context.Context, record fulfillment.FeedbackRecord) (string, error) {
	if !s.IsAvailable() {
		return "", fulfillment.ErrUnavailable
	}

	ref, _, err := s.docs.Add(ctx, map[string]interface{}{
		"text":      record.Text,
		"timestamp": record.Timestamp.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add feedback document: %w", err)
	}
	return ref.ID, nil
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
