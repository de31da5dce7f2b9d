package feedback

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/YevheniiGera/cx-fulfillment/internal/fulfillment"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore appends feedback rows to a PostgreSQL table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	db     querier
	table  string
	logger *zap.Logger
}

// NewPostgresStore connects to PostgreSQL and creates the feedback table if
// it does not exist.
func NewPostgresStore(ctx context.Context, databaseURL, table string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := newPostgresStore(pool, table, logger)
	s.pool = pool
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres feedback store connected", zap.String("table", table))
	return s, nil
}

func newPostgresStore(db querier, table string, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger,
	}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		id BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create feedback table: %w", err)
	}
	return nil
}

// IsAvailable reports whether the store holds a database handle.
func (s *PostgresStore) IsAvailable() bool {
	return s != nil && s.db != nil
}

// Append inserts a feedback row and returns its id.
func (s *PostgresStore) Append(ctx context.Context, record fulfillment.FeedbackRecord) (string, error) {
	if !s.IsAvailable() {
		return "", fulfillment.ErrUnavailable
	}

	query := `INSERT INTO ` + s.table + ` (text, timestamp) VALUES ($1, $2) RETURNING id`

	var id int64
	if err := s.db.QueryRow(ctx, query, record.Text, record.Timestamp.UTC()).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert feedback: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
