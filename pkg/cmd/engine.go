package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowbase/pkg/actions"
	"github.com/dukex/flowbase/pkg/actions/script"
	"github.com/dukex/flowbase/pkg/automation"
	"github.com/dukex/flowbase/pkg/condition"
	"github.com/dukex/flowbase/pkg/metrics"
	"github.com/dukex/flowbase/pkg/persistence"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/ratelimit"
	"github.com/dukex/flowbase/pkg/store"
	"github.com/dukex/flowbase/pkg/trigger"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
)

// EngineConfig lists the collaborators of the automation engine. HTTPClient,
// Metrics, Tracer and Clock are optional.
type EngineConfig struct {
	Persistence        persistence.Persistence
	Store              protocol.RecordStore
	Sender             protocol.EmailSender
	RateLimitStore     ratelimit.Store
	DefaultMinInterval time.Duration
	HTTPClient         *http.Client
	Metrics            *metrics.Metrics
	Tracer             trace.Tracer
	Clock              clockwork.Clock
	Logger             *slog.Logger
}

// NewEngine assembles the runner with live action handlers, logging runs to
// the persistence.
func NewEngine(config EngineConfig) *automation.Runner {
	logger := config.Logger

	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	resolver := store.NewResolver(config.Store, logger)
	conditions := condition.NewEvaluator(logger, clock, resolver)
	live := trigger.NewEvaluator(logger, clock)

	executorOptions := make([]actions.Option, 0, 1)
	if config.Metrics != nil {
		executorOptions = append(executorOptions, actions.WithObserver(config.Metrics))
	}

	executor := actions.NewExecutor(actions.NewHandlers(actions.Dependencies{
		Sender:     config.Sender,
		HTTPClient: config.HTTPClient,
		Store:      config.Store,
		Resolver:   resolver,
		Logger:     logger,
	}), logger, executorOptions...)

	deps := automation.Dependencies{
		Triggers:   live,
		Conditions: conditions,
		Actions:    executor,
		Limiter:    ratelimit.NewLimiter(config.RateLimitStore, config.DefaultMinInterval, logger),
		Logs:       config.Persistence,
		Tracer:     config.Tracer,
		Clock:      clock,
		Logger:     logger,
	}

	// a nil *Metrics must not become a non-nil Recorder
	if config.Metrics != nil {
		deps.Metrics = config.Metrics
	}

	orchestrator := automation.NewOrchestrator(deps)
	sandbox := automation.NewSandbox(trigger.NewTestEvaluator(live), conditions, script.NewAction(nil, logger), logger)

	return automation.NewRunner(config.Persistence, orchestrator, sandbox, config.Store, resolver, logger)
}
