package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/store/memory"
	"github.com/dukex/flowbase/pkg/store/postgresql"
)

// RecordStore is a record store that owns resources.
type RecordStore interface {
	protocol.RecordStore
	Close(ctx context.Context) error
}

type memoryStore struct {
	*memory.Store
}

func (memoryStore) Close(context.Context) error { return nil }

// NewRecordStore builds the user data store: memory:// or a PostgreSQL URL.
func NewRecordStore(ctx context.Context, logger *slog.Logger, storeURL string) (RecordStore, error) {
	switch parseProvider(storeURL) {
	case "postgres", "postgresql":
		s, err := postgresql.NewStore(ctx, logger, storeURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL record store: %w", err)
		}

		return s, nil
	case "memory":
		return memoryStore{memory.NewStore()}, nil
	default:
		return nil, fmt.Errorf("unsupported record store URL %q", storeURL)
	}
}
