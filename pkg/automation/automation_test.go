package automation_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dukex/flowbase/pkg/actions"
	"github.com/dukex/flowbase/pkg/actions/script"
	"github.com/dukex/flowbase/pkg/automation"
	"github.com/dukex/flowbase/pkg/condition"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/ratelimit"
	"github.com/dukex/flowbase/pkg/store"
	"github.com/dukex/flowbase/pkg/store/memory"
	"github.com/dukex/flowbase/pkg/trigger"
	"github.com/jonboulle/clockwork"
)

var now = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingLogs struct {
	mu      sync.Mutex
	entries []*models.AutomationLog
	err     error
}

func (l *recordingLogs) Write(_ context.Context, entry *models.AutomationLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)

	return l.err
}

func (l *recordingLogs) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []protocol.Email
}

func (s *recordingSender) Send(_ context.Context, e protocol.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, e)

	return nil
}

// explodingMatcher panics for record_created triggers bound to "explode".
type explodingMatcher struct {
	next trigger.Matcher
}

func (m explodingMatcher) Match(ctx context.Context, t models.Trigger, tc trigger.Context) (bool, error) {
	if created, ok := t.(models.RecordCreatedTrigger); ok && created.Table == "explode" {
		panic("trigger evaluation exploded")
	}

	return m.next.Match(ctx, t, tc)
}

type repository struct {
	automations []*models.Automation
	err         error
}

func (r *repository) Automations(context.Context) ([]*models.Automation, error) {
	return r.automations, r.err
}

func (r *repository) AutomationByID(_ context.Context, id string) (*models.Automation, error) {
	if r.err != nil {
		return nil, r.err
	}

	for _, a := range r.automations {
		if a.ID == id {
			return a, nil
		}
	}

	return nil, errors.New("automation not found")
}

type harness struct {
	clock  *clockwork.FakeClock
	logs   *recordingLogs
	sender *recordingSender
	store  *memory.Store
	orch   *automation.Orchestrator
	runner *automation.Runner
}

func newHarness(repo *repository) *harness {
	return newLimitedHarness(repo, 0)
}

// newLimitedHarness applies defaultInterval to automations without their own
// minimum interval.
func newLimitedHarness(repo *repository, defaultInterval time.Duration) *harness {
	logger := newLogger()
	clock := clockwork.NewFakeClockAt(now)
	logs := &recordingLogs{}
	sender := &recordingSender{}
	mem := memory.NewStore()
	resolver := store.NewResolver(mem, logger)

	conditions := condition.NewEvaluator(logger, clock, resolver)
	live := trigger.NewEvaluator(logger, clock)

	executor := actions.NewExecutor(actions.NewHandlers(actions.Dependencies{
		Sender:   sender,
		Store:    mem,
		Resolver: resolver,
		Logger:   logger,
	}), logger)

	orch := automation.NewOrchestrator(automation.Dependencies{
		Triggers:   explodingMatcher{next: live},
		Conditions: conditions,
		Actions:    executor,
		Limiter:    ratelimit.NewLimiter(ratelimit.NewMemoryStore(), defaultInterval, logger),
		Logs:       logs,
		Clock:      clock,
		Logger:     logger,
	})

	sandbox := automation.NewSandbox(trigger.NewTestEvaluator(live), conditions, script.NewAction(nil, logger), logger)

	return &harness{
		clock:  clock,
		logs:   logs,
		sender: sender,
		store:  mem,
		orch:   orch,
		runner: automation.NewRunner(repo, orch, sandbox, mem, resolver, logger),
	}
}

func emailAction(id string) models.SendEmailAction {
	return models.SendEmailAction{
		ActionMeta: models.ActionMeta{ID: id},
		To:         "{{email}}",
		Subject:    "Status is {{status}}",
	}
}

func newAutomation(id string, t models.Trigger, actionList ...models.Action) *models.Automation {
	return &models.Automation{
		ID:      id,
		Name:    "automation " + id,
		Status:  models.AutomationStatusActive,
		Trigger: t,
		Actions: actionList,
	}
}
