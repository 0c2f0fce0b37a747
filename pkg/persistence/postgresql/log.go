package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence"
)

// LogRepository handles automation log database operations.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLogRepository creates a new log repository.
func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger}
}

func (r *LogRepository) Write(ctx context.Context, entry *models.AutomationLog) error {
	input, err := json.Marshal(entry.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal log input: %w", err)
	}

	output := entry.Output
	if output == nil {
		output = []models.ActionResult{}
	}

	outputJSON, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal log output: %w", err)
	}

	query := `
		INSERT INTO automation_logs (id, automation_id, status, input, output, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.AutomationID,
		string(entry.Status),
		input,
		outputJSON,
		entry.Error,
		entry.DurationMs,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert automation log: %w", err)
	}

	return nil
}

// ListByAutomation returns the newest entries first.
func (r *LogRepository) ListByAutomation(ctx context.Context, automationID string, limit int) ([]*models.AutomationLog, error) {
	query := `
		SELECT id, automation_id, status, input, output, error, duration_ms, created_at
		FROM automation_logs
		WHERE automation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, automationID, persistence.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query automation logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.Error("failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.AutomationLog, 0)

	for rows.Next() {
		var (
			entry         models.AutomationLog
			status        string
			input, output []byte
		)

		err := rows.Scan(&entry.ID, &entry.AutomationID, &status, &input, &output, &entry.Error, &entry.DurationMs, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation log: %w", err)
		}

		entry.Status = models.RunStatus(status)

		err = json.Unmarshal(input, &entry.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal log input %s: %w", entry.ID, err)
		}

		err = json.Unmarshal(output, &entry.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal log output %s: %w", entry.ID, err)
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate automation logs: %w", err)
	}

	return entries, nil
}
