package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowbase/pkg/channels/gochannel"
	"github.com/dukex/flowbase/pkg/cmd"
	"github.com/dukex/flowbase/pkg/eventbus"
	"github.com/dukex/flowbase/pkg/events"
	"github.com/dukex/flowbase/pkg/mailer"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence/file"
	"github.com/dukex/flowbase/pkg/ratelimit"
	"github.com/dukex/flowbase/pkg/registry"
	"github.com/dukex/flowbase/pkg/services"
	"github.com/dukex/flowbase/pkg/store/memory"
	"github.com/dukex/flowbase/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcomeAutomation = `{
	"name": "Welcome",
	"trigger": {"type": "record_created", "config": {"table": "Users"}},
	"actions": [
		{"id": "mail", "name": "Mail", "type": "send_email", "config": {"to": "{{email}}", "subject": "Hi {{name}}"}}
	]
}`

func newTestApp(t *testing.T, publisher eventbus.EventPublisher) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())
	reg := registry.NewDefaultRegistry(logger)

	runner := cmd.NewEngine(cmd.EngineConfig{
		Persistence:    p,
		Store:          memory.NewStore(),
		Sender:         mailer.NewLogSender(logger),
		RateLimitStore: ratelimit.NewMemoryStore(),
		Logger:         logger,
	})

	handlers := web.NewAPIHandlers(
		services.NewAutomation(p, reg),
		runner,
		reg,
		publisher,
		validator.New(validator.WithRequiredStructEnabled()),
		logger,
	)

	app := fiber.New()
	handlers.Register(app)

	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func createAutomation(t *testing.T, app *fiber.App) models.Automation {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/automations", welcomeAutomation)
	require.Equal(t, http.StatusCreated, status, string(body))

	var created models.Automation
	require.NoError(t, json.Unmarshal(body, &created))

	return created
}

func TestAutomationsCRUD(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)
	created := createAutomation(t, app)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.AutomationStatusActive, created.Status)
	assert.Equal(t, models.RecordCreatedTrigger{Table: "Users"}, created.Trigger)

	status, body := do(t, app, http.MethodGet, "/automations", "")
	require.Equal(t, http.StatusOK, status)

	var list web.ListAutomationsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.TotalCount)

	update := strings.Replace(welcomeAutomation, `"Welcome"`, `"Welcome back"`, 1)
	status, body = do(t, app, http.MethodPut, "/automations/"+created.ID, update)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodGet, "/automations/"+created.ID, "")
	require.Equal(t, http.StatusOK, status)

	var fetched models.Automation
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "Welcome back", fetched.Name)

	status, _ = do(t, app, http.MethodDelete, "/automations/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodGet, "/automations/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateAutomation_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"name":`},
		{name: "missing trigger", body: `{"name": "No trigger", "actions": []}`},
		{
			name: "invalid action config",
			body: `{"name": "Bad", "trigger": {"type": "manual"},
				"actions": [{"id": "a", "type": "send_email", "config": {"subject": "missing to"}}]}`,
		},
		{
			name: "unknown action type",
			body: `{"name": "Bad", "trigger": {"type": "manual"},
				"actions": [{"id": "a", "type": "send_fax", "config": {}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := newTestApp(t, nil)

			status, body := do(t, app, http.MethodPost, "/automations", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)
	created := createAutomation(t, app)

	status, _ := do(t, app, http.MethodPost, "/automations/"+created.ID+"/activate", "")
	assert.Equal(t, http.StatusConflict, status)

	status, body := do(t, app, http.MethodPost, "/automations/"+created.ID+"/pause", "")
	require.Equal(t, http.StatusOK, status)

	var paused models.Automation
	require.NoError(t, json.Unmarshal(body, &paused))
	assert.Equal(t, models.AutomationStatusPaused, paused.Status)

	status, _ = do(t, app, http.MethodPost, "/automations/missing/pause", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRunAutomation_WritesLogs(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)
	created := createAutomation(t, app)

	status, body := do(t, app, http.MethodPost, "/automations/"+created.ID+"/run",
		`{"record": {"id": "u1", "email": "ada@example.com", "name": "Ada"}}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var summary models.RunSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 1, summary.RunCount)
	assert.Equal(t, 1, summary.SuccessCount)

	status, body = do(t, app, http.MethodGet, "/automations/"+created.ID+"/logs?limit=5", "")
	require.Equal(t, http.StatusOK, status, string(body))

	var logs web.ListLogsResponse
	require.NoError(t, json.Unmarshal(body, &logs))
	assert.Equal(t, 5, logs.Limit)
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, models.RunStatusSuccess, logs.Logs[0].Status)

	status, _ = do(t, app, http.MethodGet, "/automations/"+created.ID+"/logs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/automations/missing/run", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRunBatch(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)
	createAutomation(t, app)

	status, body := do(t, app, http.MethodPost, "/runs",
		`{"trigger_types": ["schedule"], "record": {"email": "ada@example.com"}}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var summary models.RunSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 0, summary.RunCount)

	status, body = do(t, app, http.MethodPost, "/runs",
		`{"trigger_types": ["record_created"], "record": {"email": "ada@example.com"}, "table": {"table_name": "Users"}}`)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 1, summary.RunCount)
}

func TestTestAutomation(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)

	status, body := do(t, app, http.MethodPost, "/automations/test",
		`{"automation": `+welcomeAutomation+`, "sample_record": {"email": "ada@example.com", "name": "Ada"}, "force_trigger": true}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var report models.TestReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.TriggerMatched)
	require.Len(t, report.ActionResults, 1)
	assert.True(t, report.ActionResults[0].Success)

	status, _ = do(t, app, http.MethodPost, "/automations/test", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetActions(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)

	status, body := do(t, app, http.MethodGet, "/actions", "")
	require.Equal(t, http.StatusOK, status)

	var descriptors []registry.Descriptor
	require.NoError(t, json.Unmarshal(body, &descriptors))
	assert.Len(t, descriptors, 8)
}

func TestPublishRecordEvent(t *testing.T) {
	t.Parallel()

	pub, sub := gochannel.CreateChannel(watermill.NopLogger{})
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	bus := eventbus.NewWatermillEventBus(pub, sub, logger)

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *events.RecordCreated, 1)

	var once sync.Once

	require.NoError(t, bus.Handle(events.RecordCreatedEvent, func(_ context.Context, event any) error {
		once.Do(func() { received <- event.(*events.RecordCreated) })

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	app := newTestApp(t, bus)

	status, body := do(t, app, http.MethodPost, "/events/records",
		`{"type": "record.created", "table": {"table_name": "Users"}, "record": {"id": "u1", "email": "ada@example.com"}}`)
	require.Equal(t, http.StatusAccepted, status, string(body))

	var resp web.RecordEventResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.NotEmpty(t, resp.EventID)

	select {
	case event := <-received:
		assert.Equal(t, resp.EventID, event.ID)
		assert.Equal(t, "Users", event.Table.TableName)
		assert.Equal(t, "u1", event.Record.ID())
	case <-time.After(5 * time.Second):
		t.Fatal("record event not delivered")
	}

	status, _ = do(t, app, http.MethodPost, "/events/records", `{"type": "record.deleted"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/events/records", `{"type": "record.updated", "new_record": {"id": "u1"}}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPublishRecordEvent_WithoutBus(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)

	status, _ := do(t, app, http.MethodPost, "/events/records", `{"type": "record.created", "record": {"id": "u1"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, nil)

	status, body := do(t, app, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "healthy")
}
