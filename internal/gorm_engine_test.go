package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lychee-technology/rowstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func setupGormMock(t *testing.T) (*GormEngine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return NewGormEngine(gormDB, false), mock
}

func TestGormExpression(t *testing.T) {
	col := clause.Column{Name: "users.id"}

	tests := []struct {
		name string
		cond rowstore.Condition
		want clause.Expression
	}{
		{"equals", rowstore.Eq("users.id", 1), clause.Eq{Column: col, Value: 1}},
		{"not equals", rowstore.Condition{Column: "users.id", Op: rowstore.OpNotEquals, Value: 1}, clause.Neq{Column: col, Value: 1}},
		{"in", rowstore.In("users.id", 1, 2), clause.IN{Column: col, Values: []any{1, 2}}},
		{"empty in", rowstore.In("users.id"), clause.Expr{SQL: "1 = 0"}},
		{"is null", rowstore.IsNull("users.id"), clause.Eq{Column: col, Value: nil}},
		{"not null", rowstore.NotNull("users.id"), clause.Neq{Column: col, Value: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gormExpression(tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := gormExpression(rowstore.Condition{Column: "id", Op: rowstore.Operator("LIKE")})
	assert.Error(t, err)
}

func TestGormEngine_Select(t *testing.T) {
	engine, mock := setupGormMock(t)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE `users`.`id` IN \\(\\?,\\?\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("ada")).
			AddRow(int64(2), []byte("grace")))

	rows, err := engine.Select(context.Background(), &rowstore.Query{
		Table: "users",
		Where: rowstore.Predicate{rowstore.In("users.id", 1, 2)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0]["name"])
	assert.Equal(t, "grace", rows[1]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEngine_Count(t *testing.T) {
	engine, mock := setupGormMock(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `members` WHERE `members`.`deleted_at` IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(int64(4)))

	n, err := engine.Count(context.Background(), &rowstore.Query{
		Table: "members",
		Where: rowstore.Predicate{rowstore.IsNull("members.deleted_at")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEngine_InsertReadsLastInsertID(t *testing.T) {
	engine, mock := setupGormMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("SELECT LAST_INSERT_ID\\(\\)").
		WillReturnRows(sqlmock.NewRows([]string{"LAST_INSERT_ID()"}).AddRow(int64(5)))
	mock.ExpectCommit()

	id, err := engine.Insert(context.Background(), "users", rowstore.Record{"name": "ada"}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEngine_DuplicateEntry(t *testing.T) {
	engine, mock := setupGormMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `members`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry '1-1' for key 'PRIMARY'"})
	mock.ExpectRollback()

	_, err := engine.Insert(context.Background(), "members", rowstore.Record{"org_id": 1, "user_id": 1}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rowstore.ErrUniqueViolation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEngine_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	engine, mock := setupGormMock(t)
	q := &rowstore.Query{Table: "users", Where: rowstore.Predicate{rowstore.Eq("users.id", 3)}}

	mock.ExpectExec("UPDATE `users` SET `name`=\\? WHERE `users`.`id` = \\?").
		WithArgs("linus", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := engine.Update(ctx, q, rowstore.Record{"name": "linus"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec("DELETE FROM `users` WHERE `users`.`id` = \\?").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err = engine.Delete(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = engine.Update(ctx, q, rowstore.Record{})
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEngine_InsertBatch(t *testing.T) {
	engine, mock := setupGormMock(t)

	mock.ExpectExec("INSERT INTO `users`").WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("INSERT INTO `users`").WillReturnResult(sqlmock.NewResult(3, 1))

	n, err := engine.InsertBatch(context.Background(), "users", []rowstore.Record{
		{"name": "ada"}, {"name": "grace"}, {"name": "linus"},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())

	n, err = engine.InsertBatch(context.Background(), "users", nil, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClassifyGormError(t *testing.T) {
	assert.True(t, errors.Is(classifyGormError("users", "insert into", gorm.ErrDuplicatedKey), rowstore.ErrUniqueViolation))

	err := classifyGormError("users", "update", &mysqldriver.MySQLError{Number: 1452, Message: "foreign key"})
	assert.False(t, errors.Is(err, rowstore.ErrUniqueViolation))
	assert.Contains(t, err.Error(), "failed to update users")
}
