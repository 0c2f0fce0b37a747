package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/flowbase/pkg/models"
)

// Activate makes a paused automation eligible for unsolicited runs again.
func (a *Automation) Activate(ctx context.Context, id string) (*models.Automation, error) {
	return a.setStatus(ctx, id, models.AutomationStatusActive, ErrAlreadyActive)
}

// Pause stops unsolicited runs. A paused automation still runs when addressed
// by id.
func (a *Automation) Pause(ctx context.Context, id string) (*models.Automation, error) {
	return a.setStatus(ctx, id, models.AutomationStatusPaused, ErrAlreadyPaused)
}

func (a *Automation) setStatus(ctx context.Context, id string, status models.AutomationStatus, conflict error) (*models.Automation, error) {
	automation, err := a.persistence.AutomationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if automation.Status == status {
		return nil, conflict
	}

	automation.Status = status
	automation.UpdatedAt = time.Now().UTC()

	err = a.persistence.SaveAutomation(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to set automation status: %w", err)
	}

	return automation, nil
}
