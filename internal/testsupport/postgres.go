// Package testsupport holds the container fixtures and metric assertions
// shared by the unit and integration suites.
package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rafaeljc/gefjon/internal/config"
	"github.com/rafaeljc/gefjon/internal/database"
)

const (
	postgresImage = "postgres:15-alpine"

	// Metafield coordinates the integration suites publish under.
	MetafieldNamespace = "gefjon"
	MetafieldKey       = "campaigns"
)

// PostgresContainer is a throwaway database with the shop_metafields schema.
type PostgresContainer struct {
	Container        testcontainers.Container
	DB               *pgxpool.Pool
	ConnectionString string
}

// StartPostgresContainer boots PostgreSQL, applies every .sql file under
// migrationsDir in name order and opens a pool through database.NewPostgresPool.
func StartPostgresContainer(ctx context.Context, migrationsDir string) (*PostgresContainer, error) {
	scripts, err := migrationScripts(migrationsDir)
	if err != nil {
		return nil, err
	}

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("gefjon_test"),
		postgres.WithUsername("gefjon"),
		postgres.WithPassword("gefjon"),
		postgres.WithInitScripts(scripts...),
		testcontainers.WithWaitStrategy(
			// The server restarts once after running init scripts.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(15*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:             dsn,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 10 * time.Minute,
		MaxConnIdleTime: time.Minute,
		ConnectTimeout:  5 * time.Second,
	})
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("postgres pool: %w", err)
	}

	return &PostgresContainer{Container: ctr, DB: pool, ConnectionString: dsn}, nil
}

// PublishCampaigns upserts the campaign document the way the admin app
// writes its metafield.
func (c *PostgresContainer) PublishCampaigns(ctx context.Context, doc string) error {
	const q = `
		INSERT INTO shop_metafields (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := c.DB.Exec(ctx, q, MetafieldNamespace, MetafieldKey, doc); err != nil {
		return fmt.Errorf("publish campaigns: %w", err)
	}
	return nil
}

// UnpublishCampaigns removes the campaign metafield.
func (c *PostgresContainer) UnpublishCampaigns(ctx context.Context) error {
	const q = `DELETE FROM shop_metafields WHERE namespace = $1 AND key = $2`
	if _, err := c.DB.Exec(ctx, q, MetafieldNamespace, MetafieldKey); err != nil {
		return fmt.Errorf("unpublish campaigns: %w", err)
	}
	return nil
}

// Terminate closes the pool and removes the container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.DB.Close()
	return c.Container.Terminate(ctx)
}

func migrationScripts(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations dir: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var scripts []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		scripts = append(scripts, filepath.Join(abs, e.Name()))
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no migrations in %s", abs)
	}
	slices.Sort(scripts)
	return scripts, nil
}
