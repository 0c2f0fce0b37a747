package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
)

// TablesTable is the meta table listing the user tables; each row carries the
// table id and its display "name".
const TablesTable = "tables"

// Resolver resolves table display names to ids through the tables meta table
// and fetches single records. Resolved names are cached for the lifetime of the
// resolver.
type Resolver struct {
	store  protocol.RecordStore
	logger *slog.Logger

	mu    sync.RWMutex
	names map[string]string
}

func NewResolver(store protocol.RecordStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: log.Module(logger, "table_resolver"),
		names:  make(map[string]string),
	}
}

// ResolveTable returns the table id, looking the display name up when the
// reference carries no id.
func (r *Resolver) ResolveTable(ctx context.Context, ref models.TableRef) (string, error) {
	if ref.TableID != "" {
		return ref.TableID, nil
	}

	name := strings.TrimSpace(ref.TableName)
	if name == "" {
		return "", fmt.Errorf("%w: empty table reference", ErrTableNotFound)
	}

	key := strings.ToLower(name)

	r.mu.RLock()
	id, ok := r.names[key]
	r.mu.RUnlock()

	if ok {
		return id, nil
	}

	rows, err := r.store.Select(ctx, TablesTable, protocol.Filter{"name": models.String(name)})
	if err != nil {
		return "", NewRecordError("resolve", TablesTable, "", err)
	}

	if len(rows) == 0 || rows[0].ID() == "" {
		return "", fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	id = rows[0].ID()

	r.mu.Lock()
	r.names[key] = id
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Resolved table name", "table_name", name, "table_id", id)

	return id, nil
}

// ResolveName resolves a bare table string that may be a display name or an
// id. Names win; an unknown name is taken to be an id.
func (r *Resolver) ResolveName(ctx context.Context, table string) (string, error) {
	id, err := r.ResolveTable(ctx, models.TableRef{TableName: table})
	if err == nil {
		return id, nil
	}

	if IsTableNotFound(err) && strings.TrimSpace(table) != "" {
		return table, nil
	}

	return "", err
}

// Get returns one record or ErrRecordNotFound.
func (r *Resolver) Get(ctx context.Context, tableID, recordID string) (models.Record, error) {
	rows, err := r.store.Select(ctx, tableID, protocol.Filter{models.RecordIDField: models.String(recordID)})
	if err != nil {
		return nil, NewRecordError("select", tableID, recordID, err)
	}

	if len(rows) == 0 {
		return nil, NewRecordError("select", tableID, recordID, ErrRecordNotFound)
	}

	return rows[0], nil
}

// FetchRelated loads a related record for related_record conditions. A
// missing record is reported as nil without error.
func (r *Resolver) FetchRelated(ctx context.Context, table, recordID string) (models.Record, error) {
	tableID, err := r.ResolveName(ctx, table)
	if err != nil {
		return nil, err
	}

	record, err := r.Get(ctx, tableID, recordID)
	if IsRecordNotFound(err) {
		return nil, nil
	}

	return record, err
}
