package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/lychee-technology/rowstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngine_SeedContinuesIDs(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine().AutoIncrement("users", "id")
	e.Seed("users", rowstore.Record{"id": int64(4), "name": "ada"}, rowstore.Record{"id": 9, "name": "grace"})

	id, err := e.Insert(ctx, "users", rowstore.Record{"name": "linus"}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	id, err = e.Insert(ctx, "users", rowstore.Record{"id": int64(50), "name": "ken"}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(50), id, "explicit ids are kept")

	assert.Equal(t, 2, len(e.Calls()), "seeding is not recorded")
	assert.Len(t, e.Rows("users"), 4)
}

func TestMemoryEngine_Unique(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine().Unique("users", "email")
	e.Seed("users", rowstore.Record{"id": 1, "email": "a@x.io"}, rowstore.Record{"id": 2, "email": "b@x.io"})

	_, err := e.Insert(ctx, "users", rowstore.Record{"id": 3, "email": "a@x.io"}, "")
	assert.True(t, errors.Is(err, rowstore.ErrUniqueViolation))

	_, err = e.Insert(ctx, "users", rowstore.Record{"id": 3, "email": nil}, "")
	require.NoError(t, err, "null never collides")

	q := &rowstore.Query{Table: "users", Where: rowstore.Predicate{rowstore.Eq("users.id", 2)}}
	_, err = e.Update(ctx, q, rowstore.Record{"email": "a@x.io"})
	assert.True(t, errors.Is(err, rowstore.ErrUniqueViolation))

	n, err := e.Update(ctx, q, rowstore.Record{"email": "b@x.io"})
	require.NoError(t, err, "a row does not collide with itself")
	assert.Equal(t, int64(1), n)

	_, err = e.InsertBatch(ctx, "users", []rowstore.Record{{"id": 4, "email": "c@x.io"}, {"id": 5, "email": "c@x.io"}}, 10)
	assert.True(t, errors.Is(err, rowstore.ErrUniqueViolation))
}

func TestMemoryEngine_Matching(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	e.Seed("users",
		rowstore.Record{"id": 1, "role": "admin", "deleted_at": nil},
		rowstore.Record{"id": int64(2), "role": "user", "deleted_at": "2024-01-01"},
		rowstore.Record{"id": 3.0, "role": "user"},
	)

	tests := []struct {
		name string
		pred rowstore.Predicate
		want int64
	}{
		{"everything", nil, 3},
		{"numeric equality across types", rowstore.Predicate{rowstore.Eq("users.id", int64(3))}, 1},
		{"in", rowstore.Predicate{rowstore.In("id", 1, 2)}, 2},
		{"empty in", rowstore.Predicate{rowstore.In("id")}, 0},
		{"not equals", rowstore.Predicate{{Column: "role", Op: rowstore.OpNotEquals, Value: "admin"}}, 2},
		{"is null", rowstore.Predicate{rowstore.IsNull("deleted_at")}, 2},
		{"not null", rowstore.Predicate{rowstore.NotNull("deleted_at")}, 1},
		{"null never equals", rowstore.Predicate{rowstore.Eq("deleted_at", nil)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := e.Count(ctx, &rowstore.Query{Table: "users", Where: tt.pred})
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	_, err := e.Count(ctx, &rowstore.Query{Table: "users", Where: rowstore.Predicate{{Column: "id", Op: "LIKE"}}})
	assert.Error(t, err)
}

func TestMemoryEngine_GroupSortPage(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	e.Seed("members",
		rowstore.Record{"org_id": 2, "user_id": 1},
		rowstore.Record{"org_id": 1, "user_id": 2},
		rowstore.Record{"org_id": 1, "user_id": 1},
		rowstore.Record{"org_id": 1, "user_id": 2},
	)

	rows, err := e.Select(ctx, &rowstore.Query{
		Table:   "members",
		GroupBy: []string{"members.org_id", "members.user_id"},
		OrderBy: []rowstore.Order{
			{Column: "members.org_id", SortOrder: rowstore.SortOrderAsc},
			{Column: "members.user_id", SortOrder: rowstore.SortOrderDesc},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, rowstore.Record{"org_id": 1, "user_id": 2}, rows[0])
	assert.Equal(t, rowstore.Record{"org_id": 1, "user_id": 1}, rows[1])
	assert.Equal(t, rowstore.Record{"org_id": 2, "user_id": 1}, rows[2])

	rows, err = e.Select(ctx, &rowstore.Query{Table: "members", Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = e.Select(ctx, &rowstore.Query{Table: "members", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, _ = e.Select(ctx, &rowstore.Query{Table: "members", Limit: 1})
	rows[0]["org_id"] = 99
	assert.Equal(t, 2, e.Rows("members")[0]["org_id"], "selected rows are copies")
}

func TestMemoryEngine_FailWithAndCalls(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	boom := errors.New("boom")
	e.FailWith(boom)

	_, err := e.Select(ctx, &rowstore.Query{Table: "t"})
	assert.ErrorIs(t, err, boom)
	_, err = e.Delete(ctx, &rowstore.Query{Table: "t"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, e.CallCount("select"))
	assert.Equal(t, 1, e.CallCount("delete"))

	e.FailWith(nil)
	e.ResetCalls()
	_, err = e.Insert(ctx, "t", rowstore.Record{"a": 1}, "")
	require.NoError(t, err)
	require.Len(t, e.Calls(), 1)
	assert.Equal(t, "insert", e.Calls()[0].Op)
	assert.Equal(t, "t", e.Calls()[0].Query.Table)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Count(cancelled, &rowstore.Query{Table: "t"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, len(e.Calls()), "cancelled statements are not recorded")
}
