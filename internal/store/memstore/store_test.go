package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
)

func usersDefinition() schema.Definition {
	return schema.Definition{
		Key: "users",
		Columns: []schema.Column{
			{ID: "id", ReadOnly: true},
			{ID: "name"},
			{ID: "wealth", Type: schema.CellNumber},
			{ID: "active", Type: schema.CellBoolean},
		},
	}
}

func newTestStore(t *testing.T, config Config) *Store {
	t.Helper()
	s := New(usersDefinition(), []table.Row{
		{"id": "1", "name": "Ada", "wealth": int64(100), "active": true},
		{"name": "Grace", "wealth": int64(50), "active": false},
	}, config, nil)
	s.newID = func() string { return "new-1" }
	return s
}

func TestNew_AssignsMissingKeys(t *testing.T) {
	s := newTestStore(t, Config{})
	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["id"])
	assert.NotEmpty(t, rows[1]["id"], "seed rows without a key get a uuid")
}

func TestGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("save row keeps read-only fields", func(t *testing.T) {
		s := newTestStore(t, Config{})
		res, err := s.SaveRow(ctx, table.Row{"id": "1", "name": "Ada L."}, 0)
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, table.Row{"id": "1", "name": "Ada L.", "wealth": int64(100), "active": true}, res.Data)
		assert.Equal(t, "Ada L.", s.Rows()[0]["name"])
	})

	t.Run("save missing row is reported", func(t *testing.T) {
		s := newTestStore(t, Config{})
		res, err := s.SaveRow(ctx, table.Row{"id": "zzz"}, 0)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "This row no longer exists", res.Error)
	})

	t.Run("save all is all or nothing", func(t *testing.T) {
		s := newTestStore(t, Config{})
		res, err := s.SaveAll(ctx, []table.Row{{"id": "1", "name": "changed"}, {"id": "zzz"}})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Ada", s.Rows()[0]["name"])

		res, err = s.SaveAll(ctx, []table.Row{{"id": "1", "active": false}})
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, false, res.Data[0]["active"])
	})

	t.Run("add assigns key and rejects duplicates", func(t *testing.T) {
		s := newTestStore(t, Config{})
		res, err := s.AddRow(ctx, table.Row{"name": "Linus"})
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, "new-1", res.Data["id"])
		assert.Len(t, s.Rows(), 3)

		res, err = s.AddRow(ctx, table.Row{"id": "1"})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Two rows share the same key", res.Error)
	})

	t.Run("delete", func(t *testing.T) {
		s := newTestStore(t, Config{})
		res, err := s.DeleteRow(ctx, table.Row{"id": "1"}, 0)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Len(t, s.Rows(), 1)

		res, err = s.DeleteRow(ctx, table.Row{"name": "no key"}, 0)
		require.NoError(t, err)
		assert.Equal(t, "A row is missing its key", res.Error)
	})
}

func TestSimulatedFailure(t *testing.T) {
	s := newTestStore(t, Config{FailureRate: 0.5})
	s.roll = func() float64 { return 0.1 }

	res, err := s.SaveRow(context.Background(), table.Row{"id": "1", "name": "x"}, 0)
	require.NoError(t, err)
	assert.Equal(t, MsgSaveRejected, res.Error)
	assert.Equal(t, "Ada", s.Rows()[0]["name"], "rejected saves change nothing")

	s.roll = func() float64 { return 0.9 }
	res, err = s.SaveRow(context.Background(), table.Row{"id": "1", "name": "x"}, 0)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLatencyHonoursContext(t *testing.T) {
	s := newTestStore(t, Config{Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.DeleteRow(ctx, table.Row{"id": "1"}, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, s.Rows(), 2)
}

func TestGateway_DrivesController(t *testing.T) {
	s := newTestStore(t, Config{})
	def := usersDefinition()
	def.Features.Editing = true
	def.Features.AddRow = true
	opts := def.TableOptions()
	opts.Gateway = s.Gateway()

	c, err := table.New(s.Rows(), opts)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.StartAdd())
	require.NoError(t, c.UpdateDraftField("name", "Linus"))
	require.NoError(t, c.CommitAdd(ctx))
	assert.Empty(t, c.Status(table.OpNewRow).Error)
	require.Len(t, c.Rows(), 3)
	assert.Equal(t, "new-1", c.Rows()[2]["id"])

	require.NoError(t, c.DeleteRow(ctx, "new-1"))
	assert.Len(t, c.Rows(), 2)
	assert.Len(t, s.Rows(), 2)
}
