// Package dbtest starts a throwaway Postgres for store integration tests.
// Tests are skipped unless TEST_INTEGRATION is set.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"payrolladmin/internal/platform/config"
	"payrolladmin/internal/platform/db"
)

type Fixture struct {
	TenantID   string
	EmployerID string
	EmployeeID string
}

func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("payroll_test"),
		postgres.WithUsername("payroll"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	if err := db.Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := db.Connect(ctx, config.Config{DatabaseURL: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// Seed inserts one tenant with one employer and one employee.
func Seed(t *testing.T, pool *pgxpool.Pool) Fixture {
	t.Helper()
	ctx := context.Background()
	var f Fixture
	if err := pool.QueryRow(ctx, "INSERT INTO tenants (name) VALUES ($1) RETURNING id::text", "tenant-"+time.Now().Format("150405.000000")).Scan(&f.TenantID); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	if err := pool.QueryRow(ctx, "INSERT INTO employers (tenant_id, name, reviewer_email) VALUES ($1, 'Acme Trading', 'review@acme.test') RETURNING id::text", f.TenantID).Scan(&f.EmployerID); err != nil {
		t.Fatalf("insert employer: %v", err)
	}
	if err := pool.QueryRow(ctx, "INSERT INTO employees (tenant_id, employer_id, first_name, last_name, email) VALUES ($1, $2, 'Jane', 'Doe', 'jane@acme.test') RETURNING id::text", f.TenantID, f.EmployerID).Scan(&f.EmployeeID); err != nil {
		t.Fatalf("insert employee: %v", err)
	}
	return f
}
