package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence"
	"github.com/google/uuid"
)

// Automations returns every stored automation, oldest first.
func (fp *Persistence) Automations(ctx context.Context) ([]*models.Automation, error) {
	jsonFiles, err := fs.Glob(os.DirFS(fp.automationsDir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list automation files: %w", err)
	}

	automations := make([]*models.Automation, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		automation, err := fp.AutomationByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		automations = append(automations, automation)
	}

	sort.SliceStable(automations, func(i, j int) bool {
		if automations[i].CreatedAt.Equal(automations[j].CreatedAt) {
			return automations[i].ID < automations[j].ID
		}

		return automations[i].CreatedAt.Before(automations[j].CreatedAt)
	})

	return automations, nil
}

// AutomationByID returns an *AutomationError wrapping ErrAutomationNotFound
// when no file exists for id.
func (fp *Persistence) AutomationByID(_ context.Context, id string) (*models.Automation, error) {
	if !validID(id) {
		return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrInvalidAutomationID)
	}

	body, err := os.ReadFile(filepath.Join(fp.automationsDir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, fmt.Errorf("failed to fetch automation %s: %w", id, err)
	}

	var automation models.Automation

	err = json.Unmarshal(body, &automation)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal automation %s: %w", id, err)
	}

	return &automation, nil
}

// SaveAutomation assigns an id to new automations and stamps the timestamps.
func (fp *Persistence) SaveAutomation(_ context.Context, automation *models.Automation) error {
	if automation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate automation id: %w", err)
		}

		automation.ID = id.String()
	}

	if !validID(automation.ID) {
		return persistence.NewAutomationError("Save", automation.ID, persistence.ErrInvalidAutomationID)
	}

	err := os.MkdirAll(fp.automationsDir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create automations directory: %w", err)
	}

	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	data, err := json.MarshalIndent(automation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal automation %s: %w", automation.ID, err)
	}

	return os.WriteFile(filepath.Join(fp.automationsDir(), automation.ID+".json"), data, 0600)
}

func (fp *Persistence) DeleteAutomation(_ context.Context, id string) error {
	if !validID(id) {
		return persistence.NewAutomationError("Delete", id, persistence.ErrInvalidAutomationID)
	}

	err := os.Remove(filepath.Join(fp.automationsDir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
		}

		return fmt.Errorf("failed to delete automation %s: %w", id, err)
	}

	return nil
}
