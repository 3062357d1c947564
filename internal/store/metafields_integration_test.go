//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/gefjon/internal/store"
	"github.com/rafaeljc/gefjon/internal/testsupport"
)

// TestMetafieldSource_Integration runs the campaign source against a real
// PostgreSQL with the production schema applied.
func TestMetafieldSource_Integration(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err, "failed to start postgres container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	src := store.NewMetafieldSource(pgContainer.DB, testsupport.MetafieldNamespace, testsupport.MetafieldKey)

	t.Run("Should report a missing document", func(t *testing.T) {
		_, err := src.Fetch(ctx)
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
	})

	t.Run("Should return the published document", func(t *testing.T) {
		doc := `{"campaigns":[{"id":"1","campaignType":"tiered","status":"active","goals":[]}]}`
		require.NoError(t, pgContainer.PublishCampaigns(ctx, doc))

		got, err := src.Fetch(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(got))
	})

	t.Run("Should see the latest published value", func(t *testing.T) {
		require.NoError(t, pgContainer.PublishCampaigns(ctx, `{"campaigns":[]}`))

		got, err := src.Fetch(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"campaigns":[]}`, string(got))
	})

	t.Run("Should report the document missing once unpublished", func(t *testing.T) {
		require.NoError(t, pgContainer.UnpublishCampaigns(ctx))

		_, err := src.Fetch(ctx)
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
	})

	t.Run("Should pass the readiness check", func(t *testing.T) {
		assert.Equal(t, "postgres", src.Name())
		assert.NoError(t, src.Check(ctx))
	})
}
