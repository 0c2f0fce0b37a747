package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence"
)

// Write appends one JSON line to the automation's log file.
func (fp *Persistence) Write(_ context.Context, entry *models.AutomationLog) error {
	if !validID(entry.AutomationID) {
		return persistence.NewAutomationError("WriteLog", entry.AutomationID, persistence.ErrInvalidAutomationID)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log %s: %w", entry.ID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	err = os.MkdirAll(fp.logsDir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	file, err := os.OpenFile(fp.logPath(entry.AutomationID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file for automation %s: %w", entry.AutomationID, err)
	}
	defer func() { _ = file.Close() }()

	_, err = file.Write(append(line, '\n'))
	if err != nil {
		return fmt.Errorf("failed to write log %s: %w", entry.ID, err)
	}

	return nil
}

// LogsByAutomation returns up to limit entries, newest first. An automation
// that never ran has no entries.
func (fp *Persistence) LogsByAutomation(_ context.Context, automationID string, limit int) ([]*models.AutomationLog, error) {
	if !validID(automationID) {
		return nil, persistence.NewAutomationError("ListLogs", automationID, persistence.ErrInvalidAutomationID)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	file, err := os.Open(fp.logPath(automationID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.AutomationLog{}, nil
		}

		return nil, fmt.Errorf("failed to open log file for automation %s: %w", automationID, err)
	}
	defer func() { _ = file.Close() }()

	entries := make([]*models.AutomationLog, 0)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var entry models.AutomationLog

		err := json.Unmarshal(scanner.Bytes(), &entry)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal log for automation %s: %w", automationID, err)
		}

		entries = append(entries, &entry)
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read log file for automation %s: %w", automationID, err)
	}

	slices.Reverse(entries)

	return entries[:min(len(entries), persistence.NormalizeLimit(limit))], nil
}

func (fp *Persistence) logPath(automationID string) string {
	return filepath.Join(fp.logsDir(), automationID+".jsonl")
}
