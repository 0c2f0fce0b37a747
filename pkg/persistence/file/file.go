// Package file provides file-based persistence for automations and their run
// logs.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flowbase/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
//
// Layout:
//
//	<root>/automations/<id>.json
//	<root>/logs/<automation_id>.jsonl
type Persistence struct {
	root string
	// mu serialises appends to the log files
	mu sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

var _ persistence.Persistence = (*Persistence)(nil)

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) automationsDir() string {
	return filepath.Join(fp.root, "automations")
}

func (fp *Persistence) logsDir() string {
	return filepath.Join(fp.root, "logs")
}

// validID rejects ids that would escape the storage directories.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
