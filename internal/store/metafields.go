// Package store reads the published campaign document from PostgreSQL.
// The table mirrors the shop metafield the admin app writes; the engine
// only ever reads it.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/gefjon/internal/validation"
)

// ErrDocumentNotFound is returned when no metafield exists for the namespace/key.
var ErrDocumentNotFound = errors.New("campaign metafield not found")

// MetafieldSource implements campaign.Source on top of a pgx pool.
// It also satisfies observability.Checker.
type MetafieldSource struct {
	db        *pgxpool.Pool
	namespace string
	key       string
}

// NewMetafieldSource creates a source for the metafield at namespace/key.
func NewMetafieldSource(db *pgxpool.Pool, namespace, key string) *MetafieldSource {
	validation.AssertNotNil(db, "database pool")
	return &MetafieldSource{db: db, namespace: namespace, key: key}
}

// Name identifies the source in logs and readiness probes.
func (s *MetafieldSource) Name() string {
	return "postgres"
}

// Fetch returns the raw campaign document.
func (s *MetafieldSource) Fetch(ctx context.Context) ([]byte, error) {
	const query = `SELECT value FROM shop_metafields WHERE namespace = $1 AND key = $2`

	var value string
	err := s.db.QueryRow(ctx, query, s.namespace, s.key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s.%s", ErrDocumentNotFound, s.namespace, s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metafield %s.%s: %w", s.namespace, s.key, err)
	}
	return []byte(value), nil
}

// Check verifies the database connection.
func (s *MetafieldSource) Check(ctx context.Context) error {
	return s.db.Ping(ctx)
}
