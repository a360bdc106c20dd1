package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func mustStartPostgresContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "crashdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	// Create context with timeout to prevent hanging
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	database = dbName
	password = dbPwd
	username = dbUser

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	host = dbHost
	port = dbPort.Port()

	return dbContainer.Terminate, err
}

func TestMain(m *testing.M) {
	// Skip integration tests if SKIP_INTEGRATION env var is set
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	// Skip if Docker is not available
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		os.Exit(0)
	}

	teardown, err := mustStartPostgresContainer()
	if err != nil {
		// Don't fail, just skip tests if container can't start
		os.Exit(0)
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() (ok bool) {
	// testcontainers panics (rather than returning an error) when no Docker
	// host can be found; treat that as "not available" so the skip works.
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func TestNew(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}
	if srv.Pool() == nil {
		t.Fatal("Pool() returned nil")
	}
}

func TestHealth(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}

	stats := srv.Health()

	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}

	if _, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present")
	}

	if stats["message"] != "It's healthy" {
		t.Fatalf("expected message to be 'It's healthy', got %s", stats["message"])
	}
}

func TestMigrations(t *testing.T) {
	db, err := sql.Open("pgx", ConnectionURL())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	migrationsPath := "../../migrations"

	if err := RunMigrations(db, migrationsPath); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	version, dirty, err := GetMigrationVersion(db, migrationsPath)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if dirty {
		t.Error("schema is dirty after migrating up")
	}
	if version == 0 {
		t.Error("expected a non-zero schema version after migrating up")
	}

	// The schema should be in place.
	var exists bool
	err = db.QueryRow(`SELECT EXISTS (
		SELECT FROM information_schema.tables WHERE table_name = 'rounds'
	)`).Scan(&exists)
	if err != nil {
		t.Fatalf("check rounds table: %v", err)
	}
	if !exists {
		t.Error("rounds table missing after migrations")
	}

	// Re-running is a no-op.
	if err := RunMigrations(db, migrationsPath); err != nil {
		t.Fatalf("RunMigrations() rerun error = %v", err)
	}

	if err := RollbackMigration(db, migrationsPath); err != nil {
		t.Fatalf("RollbackMigration() error = %v", err)
	}
}

// Keep this last: closing the memoized pool tears it down for the whole package.
func TestClose(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}

	srv.Close()
	dbInstance = nil
}
