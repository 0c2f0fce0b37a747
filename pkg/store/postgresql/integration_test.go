package postgresql_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/store"
	"github.com/dukex/flowbase/pkg/store/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupStore(t *testing.T) (*postgresql.Store, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("flowbase_test"),
		postgres.WithUsername("flowbase"),
		postgres.WithPassword("flowbase"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s, err := postgresql.NewStore(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close(ctx)
		_ = container.Terminate(context.Background())

		cancel()
	})

	return s, ctx
}

func TestStore_Integration(t *testing.T) {
	s, ctx := setupStore(t)

	_, err := s.Insert(ctx, store.TablesTable, models.Record{"id": models.String("tbl_deals"), "name": models.String("Deals")})
	require.NoError(t, err)

	created, err := s.Insert(ctx, "tbl_deals", models.Record{"title": models.String("Renewal"), "amount": models.Number(900)})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID())

	updated, err := s.Update(ctx, "tbl_deals", created.ID(), models.Record{"stage": models.String("won")})
	require.NoError(t, err)
	assert.Equal(t, "won", updated.Get("stage").Text())
	assert.Equal(t, "Renewal", updated.Get("title").Text())

	rows, err := s.Select(ctx, "tbl_deals", protocol.Filter{"stage": models.String("won")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(900), rows[0].Get("amount").Float())

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	id, err := store.NewResolver(s, logger).ResolveTable(ctx, models.TableRef{TableName: "Deals"})
	require.NoError(t, err)
	assert.Equal(t, "tbl_deals", id)

	require.NoError(t, s.Delete(ctx, "tbl_deals", created.ID()))
	assert.True(t, store.IsRecordNotFound(s.Delete(ctx, "tbl_deals", created.ID())))
}
