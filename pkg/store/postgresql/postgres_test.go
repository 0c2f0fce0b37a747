package postgresql

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewStoreWithDB(db, logger), mock
}

func TestStore_SelectBuildsFilters(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT data FROM records WHERE table_id = \$1 AND id = \$2 AND data ->> \$3 = \$4 ORDER BY created_at, id`).
		WithArgs("tbl_deals", "r1", "status", "won").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"r1","status":"won","amount":12}`)))

	records, err := s.Select(context.Background(), "tbl_deals", protocol.Filter{
		"status": models.String("won"),
		"id":     models.String("r1"),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID())
	assert.Equal(t, float64(12), records[0].Get("amount").Float())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertGeneratesID(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO records").
		WithArgs("tbl_deals", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"generated","title":"New"}`)))

	record, err := s.Insert(context.Background(), "tbl_deals", models.Record{"title": models.String("New")})
	require.NoError(t, err)
	assert.Equal(t, "generated", record.ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE records").
		WithArgs("tbl_deals", "missing", []byte(`{"status":"lost"}`)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.Update(context.Background(), "tbl_deals", "missing", models.Record{
		"status": models.String("lost"),
		"id":     models.String("ignored"),
	})
	require.Error(t, err)
	assert.True(t, store.IsRecordNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM records").WithArgs("tbl_deals", "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM records").WithArgs("tbl_deals", "r2").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "tbl_deals", "r1"))
	assert.True(t, store.IsRecordNotFound(s.Delete(context.Background(), "tbl_deals", "r2")))
	require.NoError(t, mock.ExpectationsWereMet())
}
