// Package persistence provides the storage layer for automations and their
// run logs.
package persistence

import (
	"context"

	"github.com/dukex/flowbase/pkg/models"
)

// DefaultLogLimit is the number of log entries returned when no limit is given.
const DefaultLogLimit = 50

type Persistence interface {
	Automations(ctx context.Context) ([]*models.Automation, error)
	SaveAutomation(ctx context.Context, automation *models.Automation) error
	AutomationByID(ctx context.Context, id string) (*models.Automation, error)
	DeleteAutomation(ctx context.Context, id string) error

	// Write stores one run log entry; it makes every Persistence a
	// protocol.LogWriter.
	Write(ctx context.Context, entry *models.AutomationLog) error
	// LogsByAutomation returns the newest entries first.
	LogsByAutomation(ctx context.Context, automationID string, limit int) ([]*models.AutomationLog, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// NormalizeLimit clamps a requested page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}

	return min(limit, 500)
}
