package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDB wraps the throwaway Postgres container behind the workflow
// tests. The zero value means an external database was reused and
// there is nothing to tear down.
type TestDB struct {
	container *postgres.PostgresContainer
}

// StartPostgres brings up a disposable Postgres 16 instance and
// returns its DSN. A non-empty overrideDSN or DISPUTEFLOW_TEST_PG_DSN
// reuses an existing database instead.
func StartPostgres(ctx context.Context, overrideDSN string) (*TestDB, string, error) {
	if overrideDSN != "" {
		return &TestDB{}, overrideDSN, nil
	}
	if dsn := os.Getenv("DISPUTEFLOW_TEST_PG_DSN"); dsn != "" {
		return &TestDB{}, dsn, nil
	}

	c, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("disputeflow_test"),
		postgres.WithUsername("disputeflow"),
		postgres.WithPassword("disputeflow"),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}
	return &TestDB{container: c}, dsn, nil
}

// Terminate stops the container if one was started.
func (d *TestDB) Terminate(ctx context.Context) error {
	if d == nil || d.container == nil {
		return nil
	}
	return d.container.Terminate(ctx)
}
