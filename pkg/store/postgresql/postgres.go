// Package postgresql stores the user data tables in PostgreSQL, one JSONB
// document per record.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/persistence/sqlbase"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/store"
	"github.com/google/uuid"
)

const migrationsTable = "record_store_migrations"

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS records (
				table_id VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (table_id, id)
			);

			CREATE INDEX IF NOT EXISTS idx_records_table_created ON records(table_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_records_data ON records USING GIN (data);
		`,
	}
}

// Store implements protocol.RecordStore on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to the database and runs the record store migrations.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	err = sqlbase.NewMigrationManager(logger, database, migrationsTable, migrations()).RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewStoreWithDB(database, logger), nil
}

// NewStoreWithDB wraps an open database whose schema is already in place.
func NewStoreWithDB(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: log.Module(logger, "record_store")}
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Select compares filter values as text against the JSONB fields.
func (s *Store) Select(ctx context.Context, tableID string, filter protocol.Filter) ([]models.Record, error) {
	query := strings.Builder{}
	query.WriteString("SELECT data FROM records WHERE table_id = $1")

	args := []any{tableID}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if key == models.RecordIDField {
			args = append(args, filter[key].Text())
			query.WriteString(" AND id = $" + strconv.Itoa(len(args)))

			continue
		}

		args = append(args, key, filter[key].Text())
		query.WriteString(" AND data ->> $" + strconv.Itoa(len(args)-1) + " = $" + strconv.Itoa(len(args)))
	}

	query.WriteString(" ORDER BY created_at, id")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, store.NewRecordError("select", tableID, "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]models.Record, 0)

	for rows.Next() {
		var data []byte

		err := rows.Scan(&data)
		if err != nil {
			return nil, store.NewRecordError("select", tableID, "", fmt.Errorf("failed to scan record: %w", err))
		}

		record, err := decode(data)
		if err != nil {
			return nil, store.NewRecordError("select", tableID, "", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, store.NewRecordError("select", tableID, "", fmt.Errorf("error iterating records: %w", err))
	}

	return records, nil
}

func (s *Store) Insert(ctx context.Context, tableID string, record models.Record) (models.Record, error) {
	stored := record.Clone()
	if stored == nil {
		stored = models.Record{}
	}

	id := stored.ID()
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return nil, store.NewRecordError("insert", tableID, "", fmt.Errorf("failed to generate record ID: %w", err))
		}

		id = generated.String()
		stored[models.RecordIDField] = models.String(id)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, store.NewRecordError("insert", tableID, id, fmt.Errorf("failed to marshal record: %w", err))
	}

	query := `
		INSERT INTO records (table_id, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (table_id, id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
		RETURNING data
	`

	var returned []byte

	err = s.db.QueryRowContext(ctx, query, tableID, id, data).Scan(&returned)
	if err != nil {
		return nil, store.NewRecordError("insert", tableID, id, err)
	}

	result, err := decode(returned)
	if err != nil {
		return nil, store.NewRecordError("insert", tableID, id, err)
	}

	return result, nil
}

// Update merges fields into the stored document. The id field is immutable.
func (s *Store) Update(ctx context.Context, tableID, id string, fields models.Record) (models.Record, error) {
	patch := fields.Clone()
	delete(patch, models.RecordIDField)

	if patch == nil {
		patch = models.Record{}
	}

	data, err := json.Marshal(patch)
	if err != nil {
		return nil, store.NewRecordError("update", tableID, id, fmt.Errorf("failed to marshal fields: %w", err))
	}

	query := `
		UPDATE records
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE table_id = $1 AND id = $2
		RETURNING data
	`

	var returned []byte

	err = s.db.QueryRowContext(ctx, query, tableID, id, data).Scan(&returned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewRecordError("update", tableID, id, store.ErrRecordNotFound)
		}

		return nil, store.NewRecordError("update", tableID, id, err)
	}

	result, err := decode(returned)
	if err != nil {
		return nil, store.NewRecordError("update", tableID, id, err)
	}

	return result, nil
}

func (s *Store) Delete(ctx context.Context, tableID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE table_id = $1 AND id = $2", tableID, id)
	if err != nil {
		return store.NewRecordError("delete", tableID, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.NewRecordError("delete", tableID, id, err)
	}

	if affected == 0 {
		return store.NewRecordError("delete", tableID, id, store.ErrRecordNotFound)
	}

	return nil
}

func decode(data []byte) (models.Record, error) {
	var record models.Record

	err := json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	if record == nil {
		record = models.Record{}
	}

	return record, nil
}
