// Package registry describes the action kinds the executor supports and
// validates action configurations against their JSON schemas.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrUnknownActionType   = errors.New("unknown action type")
	ErrInvalidActionConfig = errors.New("invalid action config")
)

// Descriptor documents one action kind.
type Descriptor struct {
	Type        models.ActionType `json:"type"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Schema      map[string]any    `json:"schema"`
}

// ValidationError lists every schema violation of one action.
type ValidationError struct {
	ActionID string
	Type     models.ActionType
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("action %q (%s): %s", e.ActionID, e.Type, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidActionConfig
}

type entry struct {
	descriptor Descriptor
	schema     *gojsonschema.Schema
}

type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[models.ActionType]entry
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  log.Module(logger, "registry"),
		entries: make(map[models.ActionType]entry),
	}
}

// Register compiles the descriptor schema and replaces any previous
// registration of the same type.
func (r *Registry) Register(descriptor Descriptor) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(descriptor.Schema))
	if err != nil {
		return fmt.Errorf("schema of %s: %w", descriptor.Type, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[descriptor.Type] = entry{descriptor: descriptor, schema: schema}
	r.logger.Debug("Registered action", "type", descriptor.Type)

	return nil
}

// Descriptors returns every registered action kind sorted by type.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descriptors = append(descriptors, e.descriptor)
	}

	slices.SortFunc(descriptors, func(a, b Descriptor) int {
		return strings.Compare(string(a.Type), string(b.Type))
	})

	return descriptors
}

func (r *Registry) Descriptor(actionType models.ActionType) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[actionType]

	return e.descriptor, ok
}

// ValidateAction checks the action configuration against its schema.
func (r *Registry) ValidateAction(action models.Action) error {
	if action == nil {
		return fmt.Errorf("%w: missing action", ErrInvalidActionConfig)
	}

	r.mu.RLock()
	e, ok := r.entries[action.ActionType()]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActionType, action.ActionType())
	}

	config, err := actionConfig(action)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidActionConfig, err)
	}

	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(config))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidActionConfig, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &ValidationError{ActionID: action.Meta().ID, Type: action.ActionType(), Problems: problems}
}

// ValidateActions validates every action and joins the failures.
func (r *Registry) ValidateActions(actions []models.Action) error {
	errs := make([]error, 0)

	for _, action := range actions {
		err := r.ValidateAction(action)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
