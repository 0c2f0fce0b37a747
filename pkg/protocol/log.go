package protocol

import (
	"context"

	"github.com/dukex/flowbase/pkg/models"
)

// LogWriter persists one AutomationLog per orchestrator attempt. Failures are
// reported to the caller, which must not let them interrupt a run.
type LogWriter interface {
	Write(ctx context.Context, entry *models.AutomationLog) error
}
