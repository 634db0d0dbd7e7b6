package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PostgresStore is the durable PostgreSQL backend. It persists both the
// recommendation history and the service description embeddings (so the
// semantic tier does not re-embed the registry on every restart — see
// internal/match.VectorStore).
//
// All operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ HistoryStore = (*PostgresStore)(nil)

const ddlHistory = `
CREATE TABLE IF NOT EXISTS recommendation_history (
    id          BIGSERIAL    PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    service_id  TEXT         NOT NULL,
    shown_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recommendation_history_user_service
    ON recommendation_history (user_id, service_id, shown_at DESC);
`

// ddlServiceEmbeddings returns the embedding table DDL with the vector
// dimension substituted. The dimension is baked into the column type at
// schema creation time; switching models with a different dimension requires
// a manual schema change.
func ddlServiceEmbeddings(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS service_embeddings (
    service_id  TEXT         NOT NULL,
    model_id    TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (service_id, model_id)
);
`, dimensions)
}

// NewPostgresStore connects to the database at dsn, registers pgvector types
// on every connection, and ensures the required tables exist.
// embeddingDimensions must match the embedding model's output dimension.
func NewPostgresStore(ctx context.Context, dsn string, embeddingDimensions int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres history: parse dsn: %w", err)
	}

	// pgvector types only exist once the extension is installed, which
	// requires an embedding provider to be configured.
	if embeddingDimensions > 0 {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres history: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres history: ping: %w", err)
	}

	// With no embedding provider configured the vector table is skipped
	// entirely; the dimension is baked into the column type.
	stmts := []string{ddlHistory}
	if embeddingDimensions > 0 {
		stmts = append(stmts, ddlServiceEmbeddings(embeddingDimensions))
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres history: migrate: %w", err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// InsertShown implements [HistoryStore].
func (s *PostgresStore) InsertShown(ctx context.Context, userID, serviceID string, ts time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recommendation_history (user_id, service_id, shown_at) VALUES ($1, $2, $3)`,
		userID, serviceID, ts)
	if err != nil {
		return fmt.Errorf("postgres history: insert: %w", err)
	}
	return nil
}

// LastShown implements [HistoryStore].
func (s *PostgresStore) LastShown(ctx context.Context, userID, serviceID string) (time.Time, bool, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT shown_at FROM recommendation_history
		 WHERE user_id = $1 AND service_id = $2
		 ORDER BY shown_at DESC LIMIT 1`,
		userID, serviceID).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("postgres history: query last shown: %w", err)
	}
	return ts, true, nil
}

// LoadServiceVectors implements match.VectorStore.
func (s *PostgresStore) LoadServiceVectors(ctx context.Context, modelID string) (map[string][]float32, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT service_id, embedding FROM service_embeddings WHERE model_id = $1`,
		modelID)
	if err != nil {
		return nil, fmt.Errorf("postgres history: load service vectors: %w", err)
	}
	defer rows.Close()

	vectors := make(map[string][]float32)
	for rows.Next() {
		var (
			id  string
			vec pgvector.Vector
		)
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("postgres history: scan service vector: %w", err)
		}
		vectors[id] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres history: iterate service vectors: %w", err)
	}
	return vectors, nil
}

// SaveServiceVector implements match.VectorStore.
func (s *PostgresStore) SaveServiceVector(ctx context.Context, serviceID, modelID string, vec []float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO service_embeddings (service_id, model_id, embedding, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (service_id, model_id)
		 DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`,
		serviceID, modelID, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("postgres history: save service vector: %w", err)
	}
	return nil
}
