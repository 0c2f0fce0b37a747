package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence"
	"github.com/dukex/flowbase/pkg/registry"
	"github.com/dukex/flowbase/pkg/trigger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Automation struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
}

// NewAutomation creates a new automation service.
func NewAutomation(persistence persistence.Persistence, registry *registry.Registry) *Automation {
	return &Automation{
		persistence: persistence,
		registry:    registry,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (a *Automation) HealthCheck(ctx context.Context) (string, bool) {
	if a.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := a.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (a *Automation) List(ctx context.Context) ([]*models.Automation, error) {
	automations, err := a.persistence.Automations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	return automations, nil
}

// FetchByID retrieves an automation by its ID.
func (a *Automation) FetchByID(ctx context.Context, id string) (*models.Automation, error) {
	return a.persistence.AutomationByID(ctx, id)
}

// Create validates and stores a new automation. New automations are active
// unless a status is given.
func (a *Automation) Create(ctx context.Context, automation *models.Automation) (*models.Automation, error) {
	if automation == nil {
		return nil, ErrAutomationNil
	}

	if automation.Status == "" {
		automation.Status = models.AutomationStatusActive
	}

	err := a.Validate(automation)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	automation.ID = uuid.New().String()
	automation.CreatedAt = now
	automation.UpdatedAt = now

	err = a.persistence.SaveAutomation(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation: %w", err)
	}

	return automation, nil
}

// Update replaces an existing automation by its ID.
func (a *Automation) Update(ctx context.Context, id string, automation *models.Automation) (*models.Automation, error) {
	if automation == nil {
		return nil, ErrAutomationNil
	}

	existing, err := a.persistence.AutomationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if automation.Status == "" {
		automation.Status = existing.Status
	}

	err = a.Validate(automation)
	if err != nil {
		return nil, err
	}

	automation.ID = id
	automation.CreatedAt = existing.CreatedAt
	automation.UpdatedAt = time.Now().UTC()

	err = a.persistence.SaveAutomation(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to update automation: %w", err)
	}

	return automation, nil
}

// Delete removes an automation by its ID.
func (a *Automation) Delete(ctx context.Context, id string) error {
	err := a.persistence.DeleteAutomation(ctx, id)
	if err != nil {
		if persistence.IsAutomationNotFound(err) {
			return err
		}

		return fmt.Errorf("failed to delete automation: %w", err)
	}

	return nil
}

// Logs returns the newest run logs of an existing automation.
func (a *Automation) Logs(ctx context.Context, id string, limit int) ([]*models.AutomationLog, error) {
	_, err := a.persistence.AutomationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	logs, err := a.persistence.LogsByAutomation(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation logs: %w", err)
	}

	return logs, nil
}

// Validate checks the struct tags, the trigger configuration and every action
// configuration.
func (a *Automation) Validate(automation *models.Automation) error {
	if automation == nil {
		return ErrAutomationNil
	}

	err := a.validate.Struct(automation)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError("Validate", "INVALID_AUTOMATION", validationErrors.Error(), ErrInvalidAutomation)
		}

		return fmt.Errorf("%w: %w", ErrInvalidAutomation, err)
	}

	err = validateTrigger(automation.Trigger)
	if err != nil {
		return NewValidationError("Validate", "INVALID_TRIGGER", err.Error(), ErrInvalidTrigger)
	}

	err = validateConditions(automation.Conditions)
	if err != nil {
		return NewValidationError("Validate", "INVALID_CONDITION", err.Error(), ErrInvalidCondition)
	}

	err = validateActionIDs(automation.Actions)
	if err == nil && a.registry != nil {
		err = a.registry.ValidateActions(automation.Actions)
	}

	if err != nil {
		return NewValidationError("Validate", "INVALID_ACTIONS", err.Error(), ErrInvalidActions)
	}

	return nil
}

func validateTrigger(t models.Trigger) error {
	switch t := t.(type) {
	case nil:
		return errors.New("trigger is required")
	case models.ScheduleTrigger:
		_, _, err := trigger.CompileSchedule(t)

		return err
	case models.FieldMatchTrigger:
		if t.Field == "" {
			return errors.New("field_match trigger requires a field")
		}
	case models.DateApproachingTrigger:
		if t.DateField == "" {
			return errors.New("date_approaching trigger requires a date_field")
		}

		if t.ThresholdDays < 0 {
			return errors.New("date_approaching threshold_days must not be negative")
		}
	case models.UnknownTrigger:
		return fmt.Errorf("unknown trigger type %q", t.Type)
	}

	return nil
}

func validateConditions(conditions []models.Condition) error {
	for i, condition := range conditions {
		switch c := condition.(type) {
		case nil:
			return fmt.Errorf("condition %d is empty", i)
		case models.UnknownCondition:
			return fmt.Errorf("condition %d has unknown type %q", i, c.Type)
		case models.LogicCondition:
			err := validateConditions(c.Conditions)
			if err != nil {
				return fmt.Errorf("condition %d: %w", i, err)
			}
		}
	}

	return nil
}

func validateActionIDs(actions []models.Action) error {
	seen := make(map[string]struct{}, len(actions))

	for _, action := range actions {
		if action == nil {
			continue
		}

		id := action.Meta().ID
		if id == "" {
			continue
		}

		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate action id %q", id)
		}

		seen[id] = struct{}{}
	}

	return nil
}
