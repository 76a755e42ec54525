//go:build integration

package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestHarness holds lightweight runners for the databases used by E2E tests.
type TestHarness struct {
	PGContainer    testcontainers.Container
	PGDSN          string
	PGDB           *sql.DB
	MySQLContainer testcontainers.Container
	MySQLDSN       string
	MySQLDB        *sql.DB
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (testcontainers.Container, string, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", err
	}
	host, err := container.Host(ctx)
	if err != nil {
		return container, "", "", err
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return container, "", "", err
	}
	return container, host, mapped.Port(), nil
}

// waitReady pings db until it answers or the deadline passes.
func waitReady(ctx context.Context, db *sql.DB, name string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s did not become ready: %w", name, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StartPostgres starts a postgres container and returns a DSN.
// It waits until Postgres is reachable. Caller is responsible for calling StopPostgres.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, host, port, err := startContainer(ctx, req, "5432")
	h.PGContainer = container
	if err != nil {
		return "", err
	}
	h.PGDSN = fmt.Sprintf("postgres://postgres:password@%s:%s/postgres?sslmode=disable", host, port)

	db, err := sql.Open("postgres", h.PGDSN)
	if err != nil {
		return "", err
	}
	if err := waitReady(ctx, db, "postgres"); err != nil {
		db.Close()
		return "", err
	}
	h.PGDB = db
	return h.PGDSN, nil
}

// StopPostgres stops the Postgres container and closes DB handle.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.PGDB != nil {
		h.PGDB.Close()
		h.PGDB = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// StartMySQL starts a MySQL container and returns a go-sql-driver DSN.
func (h *TestHarness) StartMySQL(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "password",
			"MYSQL_DATABASE":      "rowstore",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(90 * time.Second),
	}
	container, host, port, err := startContainer(ctx, req, "3306")
	h.MySQLContainer = container
	if err != nil {
		return "", err
	}
	h.MySQLDSN = fmt.Sprintf("root:password@tcp(%s:%s)/rowstore?parseTime=true", host, port)

	db, err := sql.Open("mysql", h.MySQLDSN)
	if err != nil {
		return "", err
	}
	if err := waitReady(ctx, db, "mysql"); err != nil {
		db.Close()
		return "", err
	}
	h.MySQLDB = db
	return h.MySQLDSN, nil
}

// StopMySQL stops the MySQL container and closes DB handle.
func (h *TestHarness) StopMySQL(ctx context.Context) error {
	if h.MySQLDB != nil {
		h.MySQLDB.Close()
		h.MySQLDB = nil
	}
	if h.MySQLContainer != nil {
		if err := h.MySQLContainer.Terminate(ctx); err != nil {
			return err
		}
		h.MySQLContainer = nil
	}
	return nil
}

// Exec runs each statement in order.
func Exec(ctx context.Context, db *sql.DB, stmts ...string) error {
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s, err)
		}
	}
	return nil
}
