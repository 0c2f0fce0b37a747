package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowbase/pkg/automation"
	"github.com/dukex/flowbase/pkg/eventbus"
	"github.com/dukex/flowbase/pkg/mailer"
	"github.com/dukex/flowbase/pkg/metrics"
	"github.com/dukex/flowbase/pkg/otelhelper"
	"github.com/dukex/flowbase/pkg/persistence"
	"github.com/dukex/flowbase/pkg/registry"
)

type StackConfig struct {
	ServiceName        string
	DatabaseURL        string
	StoreURL           string
	EventBus           string
	KafkaBrokers       string
	RateLimitURL       string
	DefaultMinInterval time.Duration
	OtelEnabled        bool
	SMTP               mailer.Config
}

// Stack is everything a binary needs to run automations. EventBus is nil when
// no bus is configured.
type Stack struct {
	Persistence persistence.Persistence
	Store       RecordStore
	EventBus    eventbus.EventBus
	Registry    *registry.Registry
	Metrics     *metrics.Metrics
	Runner      *automation.Runner

	closers []func(ctx context.Context) error
}

// NewStack opens every backend named by config. On error the backends opened
// so far are closed.
func NewStack(ctx context.Context, logger *slog.Logger, config StackConfig) (*Stack, error) {
	s := &Stack{
		Registry: registry.NewDefaultRegistry(logger),
		Metrics:  metrics.New(),
	}

	err := s.open(ctx, logger, config)
	if err != nil {
		closeErr := s.Close(ctx)
		if closeErr != nil {
			logger.ErrorContext(ctx, "Failed to close partially opened stack", "error", closeErr)
		}

		return nil, err
	}

	return s, nil
}

func (s *Stack) open(ctx context.Context, logger *slog.Logger, config StackConfig) error {
	p, err := NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return err
	}

	s.Persistence = p
	s.closers = append(s.closers, p.Close)

	recordStore, err := NewRecordStore(ctx, logger, config.StoreURL)
	if err != nil {
		return err
	}

	s.Store = recordStore
	s.closers = append(s.closers, recordStore.Close)

	rateLimitStore, closeRateLimit, err := NewRateLimitStore(ctx, config.RateLimitURL)
	if err != nil {
		return err
	}

	s.closers = append(s.closers, func(context.Context) error { return closeRateLimit() })

	bus, err := NewEventBus(config.EventBus, config.KafkaBrokers, config.ServiceName, logger)
	if err != nil {
		return err
	}

	if bus != nil {
		s.EventBus = bus
		s.closers = append(s.closers, func(context.Context) error { return bus.Close() })
	}

	tracer := otelhelper.NoopTracer()
	if config.OtelEnabled {
		tracer, err = otelhelper.NewTracer(ctx, config.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	s.Runner = NewEngine(EngineConfig{
		Persistence:        p,
		Store:              recordStore,
		Sender:             NewEmailSender(config.SMTP, logger),
		RateLimitStore:     rateLimitStore,
		DefaultMinInterval: config.DefaultMinInterval,
		Metrics:            s.Metrics,
		Tracer:             tracer,
		Logger:             logger,
	})

	return nil
}

// Close releases the backends in reverse opening order.
func (s *Stack) Close(ctx context.Context) error {
	var errs []error

	for i := len(s.closers) - 1; i >= 0; i-- {
		err := s.closers[i](ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.closers = nil

	return errors.Join(errs...)
}
