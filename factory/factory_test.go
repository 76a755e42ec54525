package factory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/internal"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Unit tests for collectTablesFromPool (uses pgxmock)
// ---------------------------------------------------------------------------

func TestCollectTablesFromPool_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT table_name FROM information_schema.tables`).WillReturnError(assert.AnError)

	_, err = collectTablesFromPool(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to verify database connection")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectTablesFromPool_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"table_name"}).
		AddRow("users").
		AddRow("members")
	mock.ExpectQuery(`SELECT table_name FROM information_schema.tables`).WillReturnRows(rows)

	tables, err := collectTablesFromPool(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "members"}, tables)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Unit tests for verifyTables (uses a stubbed collector)
// ---------------------------------------------------------------------------

func withTableCollector(t *testing.T, collector func(context.Context, queryPool) ([]string, error)) {
	t.Helper()
	original := tableCollector
	tableCollector = collector
	t.Cleanup(func() {
		tableCollector = original
	})
}

func TestVerifyTables(t *testing.T) {
	withTableCollector(t, func(context.Context, queryPool) ([]string, error) {
		return []string{"users", "members"}, nil
	})
	ctx := context.Background()

	assert.NoError(t, verifyTables(ctx, nil, "users", "public.members"))

	err := verifyTables(ctx, nil, "users", "orders", "app.invoices")
	require.Error(t, err)
	assert.Equal(t, "required tables are missing in the database: orders, invoices", err.Error())
}

func TestVerifyTables_CollectorError(t *testing.T) {
	withTableCollector(t, func(context.Context, queryPool) ([]string, error) {
		return nil, assert.AnError
	})
	err := verifyTables(context.Background(), nil, "users")
	assert.ErrorIs(t, err, assert.AnError)
}

// ---------------------------------------------------------------------------
// Connection settings
// ---------------------------------------------------------------------------

func TestPostgresURL(t *testing.T) {
	cfg := rowstore.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		Database: "rows",
		Username: "app",
		Password: "secret",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://app:secret@db:5432/rows?sslmode=disable", postgresURL(cfg))

	cfg.DSN = "postgres://elsewhere/db"
	assert.Equal(t, "postgres://elsewhere/db", postgresURL(cfg))
}

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(rowstore.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		Database:        "rows",
		Username:        "app",
		MaxConnections:  10,
		MaxIdleConns:    3,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
		Timeout:         5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(3), pc.MinConns)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Second, pc.MaxConnIdleTime)
	assert.Equal(t, 5*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, "rows", pc.ConnConfig.Database)

	_, err = poolConfig(rowstore.DatabaseConfig{DSN: "postgres://%zz"})
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(rowstore.DatabaseConfig{
		Host:     "db",
		Port:     3306,
		Database: "rows",
		Username: "app",
		Password: "secret",
		Timeout:  5 * time.Second,
	})
	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "secret", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "rows", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 5*time.Second, parsed.Timeout)

	assert.Equal(t, "user@/x", mysqlDSN(rowstore.DatabaseConfig{DSN: "user@/x"}))
}

func TestDSQLBeforeConnect(t *testing.T) {
	var gotEndpoint, gotRegion string
	gen := func(_ context.Context, endpoint, region string, _ aws.CredentialsProvider) (string, error) {
		gotEndpoint, gotRegion = endpoint, region
		return "signed-token", nil
	}

	cc := &pgx.ConnConfig{}
	cc.Host = "cluster.dsql.us-east-1.on.aws"
	require.NoError(t, dsqlBeforeConnect("", "us-east-1", nil, gen)(context.Background(), cc))
	assert.Equal(t, "signed-token", cc.Password)
	assert.Equal(t, "cluster.dsql.us-east-1.on.aws", gotEndpoint, "falls back to the connection host")
	assert.Equal(t, "us-east-1", gotRegion)

	require.NoError(t, dsqlBeforeConnect("configured.host", "eu-west-1", nil, gen)(context.Background(), cc))
	assert.Equal(t, "configured.host", gotEndpoint)

	failing := func(context.Context, string, string, aws.CredentialsProvider) (string, error) {
		return "", errors.New("no credentials")
	}
	err := dsqlBeforeConnect("h", "r", nil, failing)(context.Background(), cc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate dsql auth token")
}

// ---------------------------------------------------------------------------
// Engines
// ---------------------------------------------------------------------------

func TestOpenEngine_Memory(t *testing.T) {
	engine, err := OpenEngine(context.Background(), rowstore.DatabaseConfig{Driver: "memory"}, false)
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, "memory", engine.Driver)
	_, ok := engine.QueryEngine.(*internal.MemoryEngine)
	assert.True(t, ok)
}

func TestOpenEngine_SQLite(t *testing.T) {
	engine, err := OpenEngine(context.Background(), rowstore.DatabaseConfig{Driver: "sqlite3", Database: ":memory:", MaxConnections: 1}, false)
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, "sqlite3", engine.Driver)
	_, ok := engine.QueryEngine.(*internal.SQLEngine)
	assert.True(t, ok)
}

func TestOpenEngine_Unsupported(t *testing.T) {
	_, err := OpenEngine(context.Background(), rowstore.DatabaseConfig{Driver: "oracle"}, false)
	assert.EqualError(t, err, `unsupported database driver "oracle"`)

	_, _, err = OpenSQL(context.Background(), rowstore.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)

	var nilEngine *Engine
	nilEngine.Close()
}

func TestNewMemoryModel(t *testing.T) {
	ctx := context.Background()
	m, engine, err := NewMemoryModel(rowstore.DefaultModelConfig("users"))
	require.NoError(t, err)

	res, err := m.Insert(ctx, rowstore.Record{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.InsertID)
	assert.Len(t, engine.Rows("users"), 1)

	_, _, err = NewMemoryModel(rowstore.ModelConfig{})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistry(t *testing.T) {
	engine := internal.NewMemoryEngine()
	r := NewRegistry(engine, WithMetrics(NewMetrics("test")))

	users, err := r.Register("users", rowstore.DefaultModelConfig("users"))
	require.NoError(t, err)
	_, err = r.Register("members", rowstore.ModelConfig{Table: "members", PrimaryKey: rowstore.Key{"org_id", "user_id"}})
	require.NoError(t, err)

	_, err = r.Register("users", rowstore.DefaultModelConfig("users"))
	assert.Error(t, err)
	_, err = r.Register("", rowstore.DefaultModelConfig("x"))
	assert.Error(t, err)
	_, err = r.Register("broken", rowstore.ModelConfig{Table: "broken"})
	assert.Error(t, err)

	got, ok := r.Get("users")
	require.True(t, ok)
	assert.Same(t, users, got)
	_, ok = r.Get("orders")
	assert.False(t, ok)

	assert.Equal(t, []string{"members", "users"}, r.Names())
	assert.Equal(t, 2, r.Len())

	res, err := users.Insert(context.Background(), rowstore.Record{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.InsertID, "the memory table was given an auto increment column")
}

// ---------------------------------------------------------------------------
// Definitions
// ---------------------------------------------------------------------------

const definitionsDoc = `
models:
  users:
    table: users
    useTimestamps: true
    schema: users.schema.json
    unique:
      - [email]
    seed:
      - {id: 1, name: ada, email: ada@example.com}
      - {id: 2, name: grace, email: grace@example.com}
  members:
    table: members
    primaryKey: [org_id, user_id]
    autoIncrement: false
    altKeys:
      - [email]
    softDelete:
      enabled: true
    recordType: Member
    seed:
      - {org_id: 1, user_id: 1, email: a@x.io}
      - {org_id: 1, user_id: 2, email: b@x.io}
`

const usersSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {"name": {"type": "string", "minLength": 1}}
}`

func writeDefinitions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.yaml"), []byte(definitionsDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.schema.json"), []byte(usersSchema), 0o644))
	return filepath.Join(dir, "models.yaml")
}

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(definitionsDoc), "/etc/rowstore")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	users := defs["users"]
	assert.Equal(t, rowstore.Key{"id"}, users.PrimaryKey, "defaults are kept")
	assert.True(t, users.AutoIncrement)
	assert.True(t, users.UseTimestamps)
	assert.Equal(t, "created_at", users.CreatedField)
	assert.Equal(t, filepath.Join("/etc/rowstore", "users.schema.json"), users.Schema)
	assert.Equal(t, [][]string{{"email"}}, users.Unique)
	assert.Len(t, users.Seed, 2)

	members := defs["members"]
	assert.Equal(t, rowstore.Key{"org_id", "user_id"}, members.PrimaryKey)
	assert.False(t, members.AutoIncrement)
	assert.Equal(t, []rowstore.Key{{"email"}}, members.AltKeys)
	assert.True(t, members.SoftDelete.Enabled)
	assert.Equal(t, "deleted_at", members.SoftDelete.Field)
	assert.Equal(t, "Member", members.Name())
}

func TestParseDefinitions_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "models: ["},
		{"no models", "models: {}"},
		{"invalid model", "models:\n  users:\n    primaryKey: []\n"},
		{"duplicate key column", "models:\n  users:\n    primaryKey: [id, id]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinitions([]byte(tt.doc), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadDefinitions_Missing(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join(t.TempDir(), "models.yaml"))
	assert.Error(t, err)
}

func TestRegisterDefinitions_Memory(t *testing.T) {
	ctx := context.Background()
	defs, err := LoadDefinitions(writeDefinitions(t))
	require.NoError(t, err)

	engine := internal.NewMemoryEngine()
	r := NewRegistry(engine)
	require.NoError(t, RegisterDefinitions(r, defs))
	assert.Equal(t, []string{"members", "users"}, r.Names())

	users, _ := r.Get("users")
	res, err := users.Find(ctx, rowstore.ID(2))
	require.NoError(t, err)
	assert.Equal(t, "grace", res.First()["name"])

	wres, err := users.Insert(ctx, rowstore.Record{"name": ""})
	require.NoError(t, err)
	assert.False(t, wres.OK, "the schema validator is attached")
	assert.Contains(t, wres.Violations, "name")

	wres, err = users.Insert(ctx, rowstore.Record{"name": "linus", "email": "linus@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), wres.InsertID, "ids continue after the seeded rows")

	_, err = users.Insert(ctx, rowstore.Record{"name": "copy", "email": "ada@example.com"})
	assert.ErrorIs(t, err, rowstore.ErrUniqueViolation)

	members, _ := r.Get("members")
	res, err = members.FindAltBy(ctx, map[string]any{"email": "b@x.io"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.Rows[0]["user_id"])
}

func TestRegisterDefinitions_MissingSchema(t *testing.T) {
	defs, err := ParseDefinitions([]byte("models:\n  users:\n    schema: nowhere.json\n"), t.TempDir())
	require.NoError(t, err)

	err = RegisterDefinitions(NewRegistry(internal.NewMemoryEngine()), defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "users"`)
}

func TestOpenEngine_Breaker(t *testing.T) {
	cfg := rowstore.DatabaseConfig{
		Driver:   "sqlite3",
		Database: ":memory:",
		Breaker:  rowstore.BreakerConfig{Threshold: 2, Window: time.Minute, Cooldown: time.Second},
	}
	engine, err := OpenEngine(context.Background(), cfg, false)
	require.NoError(t, err)
	defer engine.Close()

	wrapped, ok := engine.QueryEngine.(*internal.BreakerEngine)
	require.True(t, ok)
	_, ok = wrapped.Unwrap().(*internal.SQLEngine)
	assert.True(t, ok)

	cfg.Driver = "memory"
	mem, err := OpenEngine(context.Background(), cfg, false)
	require.NoError(t, err)
	_, ok = mem.QueryEngine.(*internal.MemoryEngine)
	assert.True(t, ok, "the memory driver is never wrapped")
}
