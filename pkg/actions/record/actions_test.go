package record_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/flowbase/pkg/actions/record"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/store"
	"github.com/dukex/flowbase/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*record.Actions, *memory.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	mem := memory.NewStore()
	require.NoError(t, mem.CreateTable(ctx, "tbl_orders", "Orders"))
	require.NoError(t, mem.CreateTable(ctx, "tbl_tasks", "Tasks"))

	_, err := mem.Insert(ctx, "tbl_orders", models.Record{
		"id":     models.String("o1"),
		"status": models.String("new"),
		"amount": models.Number(10),
		"owner":  models.String("ada@example.com"),
	})
	require.NoError(t, err)

	return record.NewActions(mem, store.NewResolver(mem, logger), logger), mem
}

func ordersContext() *protocol.ActionContext {
	return &protocol.ActionContext{
		Record: models.Record{
			"id":     models.String("o1"),
			"status": models.String("new"),
			"amount": models.Number(10),
			"owner":  models.String("ada@example.com"),
		},
		Table: models.TableRef{TableName: "Orders"},
	}
}

func TestUpdateRecord(t *testing.T) {
	t.Parallel()

	actions, mem := setup(t)
	actx := ordersContext()

	result := actions.UpdateRecord(context.Background(), models.UpdateRecordAction{
		TableName:    "Orders",
		FieldUpdates: map[string]models.Value{"status": models.String("seen by {{owner}}")},
	}, actx)

	require.True(t, result.Success, result.Error)

	rows, err := mem.Select(context.Background(), "tbl_orders", protocol.Filter{"id": models.String("o1")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "seen by ada@example.com", rows[0].Get("status").Text())
	assert.Equal(t, "seen by ada@example.com", actx.Record.Get("status").Text(), "in-flight record follows the update")
}

func TestUpdateRecord_Errors(t *testing.T) {
	t.Parallel()

	actions, _ := setup(t)

	tests := []struct {
		name   string
		action models.UpdateRecordAction
		actx   *protocol.ActionContext
		errMsg string
	}{
		{
			name:   "unknown table",
			action: models.UpdateRecordAction{TableName: "Invoices", RecordID: "o1"},
			actx:   ordersContext(),
			errMsg: "table not found",
		},
		{
			name:   "no table anywhere",
			action: models.UpdateRecordAction{RecordID: "o1"},
			actx:   &protocol.ActionContext{Record: models.Record{}},
			errMsg: "missing table",
		},
		{
			name:   "no record id",
			action: models.UpdateRecordAction{TableID: "tbl_orders"},
			actx:   &protocol.ActionContext{Record: models.Record{}},
			errMsg: "missing record id",
		},
		{
			name:   "record does not exist",
			action: models.UpdateRecordAction{TableID: "tbl_orders", RecordID: "missing"},
			actx:   ordersContext(),
			errMsg: "record not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := actions.UpdateRecord(context.Background(), tt.action, tt.actx)

			assert.False(t, result.Success)
			assert.Contains(t, result.Error, tt.errMsg)
		})
	}
}

func TestCreateRecord(t *testing.T) {
	t.Parallel()

	actions, mem := setup(t)

	result := actions.CreateRecord(context.Background(), models.CreateRecordAction{
		TableName: "Tasks",
		Fields: map[string]models.Value{
			"title":    models.String("Follow up order {{id}}"),
			"priority": models.Number(2),
		},
	}, ordersContext())

	require.True(t, result.Success, result.Error)

	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, output["id"])

	rows, err := mem.Select(context.Background(), "tbl_tasks", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Follow up order o1", rows[0].Get("title").Text())
	assert.InDelta(t, 2.0, rows[0].Get("priority").Float(), 0)

	result = actions.CreateRecord(context.Background(), models.CreateRecordAction{}, ordersContext())
	assert.False(t, result.Success)
}

func TestDeleteRecord(t *testing.T) {
	t.Parallel()

	actions, mem := setup(t)

	result := actions.DeleteRecord(context.Background(), models.DeleteRecordAction{}, ordersContext())
	require.True(t, result.Success, result.Error)

	rows, err := mem.Select(context.Background(), "tbl_orders", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	result = actions.DeleteRecord(context.Background(), models.DeleteRecordAction{}, ordersContext())
	assert.False(t, result.Success)
}

func TestSetFieldValue(t *testing.T) {
	t.Parallel()

	actions, mem := setup(t)
	actx := ordersContext()

	result := actions.SetFieldValue(context.Background(), models.SetFieldValueAction{
		Field: "status",
		Value: models.String("{{status}}-processed"),
	}, actx)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "new-processed", actx.Record.Get("status").Text())

	rows, err := mem.Select(context.Background(), "tbl_orders", protocol.Filter{"id": models.String("o1")})
	require.NoError(t, err)
	assert.Equal(t, "new-processed", rows[0].Get("status").Text())
}

func TestSetFieldValue_MissingTableContext(t *testing.T) {
	t.Parallel()

	actions, _ := setup(t)
	actx := ordersContext()
	actx.Table = models.TableRef{}

	result := actions.SetFieldValue(context.Background(), models.SetFieldValueAction{
		Field: "status",
		Value: models.String("done"),
	}, actx)

	assert.False(t, result.Success)
	assert.Equal(t, "missing table context", result.Error)
	assert.Equal(t, "new", actx.Record.Get("status").Text())
}

func TestDuplicateRecord(t *testing.T) {
	t.Parallel()

	actions, mem := setup(t)

	result := actions.DuplicateRecord(context.Background(), models.DuplicateRecordAction{
		Overrides: map[string]models.Value{"status": models.String("copy of {{id}}")},
	}, ordersContext())

	require.True(t, result.Success, result.Error)

	rows, err := mem.Select(context.Background(), "tbl_orders", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotEqual(t, "o1", rows[1].ID())
	assert.Equal(t, "copy of o1", rows[1].Get("status").Text())
	assert.InDelta(t, 10.0, rows[1].Get("amount").Float(), 0)

	result = actions.DuplicateRecord(context.Background(), models.DuplicateRecordAction{
		TableID:  "tbl_orders",
		RecordID: "nope",
	}, ordersContext())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "source record not found")
}
