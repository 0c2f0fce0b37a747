package postgresql_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence"
	"github.com/dukex/flowbase/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPersistence(t *testing.T) (*postgresql.Persistence, context.Context) {
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

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close(ctx)
		_ = container.Terminate(context.Background())

		cancel()
	})

	return p, ctx
}

func TestPostgreSQLPersistence_Integration(t *testing.T) {
	p, ctx := setupPersistence(t)

	require.NoError(t, p.HealthCheck(ctx))

	automation := &models.Automation{
		Name:   "Follow up",
		Status: models.AutomationStatusActive,
		Trigger: models.RecordUpdatedTrigger{
			Table:  "Deals",
			Fields: []string{"stage"},
		},
		Conditions: []models.Condition{
			models.FieldCondition{FieldKey: "stage", Operator: models.OpEquals, Value: models.String("won")},
		},
		Actions: []models.Action{
			models.SendWebhookAction{ActionMeta: models.ActionMeta{ID: "hook"}, URL: "https://example.com/{{id}}"},
		},
	}

	require.NoError(t, p.SaveAutomation(ctx, automation))

	loaded, err := p.AutomationByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.Trigger, loaded.Trigger)
	assert.Equal(t, automation.Conditions, loaded.Conditions)
	assert.Equal(t, automation.Actions, loaded.Actions)

	loaded.Status = models.AutomationStatusPaused
	require.NoError(t, p.SaveAutomation(ctx, loaded))

	all, err := p.Automations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.AutomationStatusPaused, all[0].Status)

	for i := range 3 {
		require.NoError(t, p.Write(ctx, &models.AutomationLog{
			ID:           "log-" + string(rune('a'+i)),
			AutomationID: automation.ID,
			Status:       models.RunStatusSuccess,
			Input:        models.LogInput{Trigger: automation.Trigger, Record: models.Record{"id": models.String("r1")}},
			Output:       []models.ActionResult{{Type: models.ActionSendWebhook, Success: true}},
			CreatedAt:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	logs, err := p.LogsByAutomation(ctx, automation.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "log-c", logs[0].ID)
	assert.Equal(t, automation.Trigger, logs[0].Input.Trigger)

	require.NoError(t, p.DeleteAutomation(ctx, automation.ID))

	_, err = p.AutomationByID(ctx, automation.ID)
	assert.True(t, persistence.IsAutomationNotFound(err))

	err = p.DeleteAutomation(ctx, automation.ID)
	assert.True(t, persistence.IsAutomationNotFound(err))
}
