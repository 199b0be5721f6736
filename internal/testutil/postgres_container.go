package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// GetPostgresDSN returns a DSN for a shared PostgreSQL container, starting it
// on first use. The test is skipped when no container runtime is available.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		// Give generous timeout in CI environments
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		endpoint, err := startContainerWithEnv(ctx, "postgres:16", "5432/tcp",
			map[string]string{
				"POSTGRES_USER":     "hubcheck",
				"POSTGRES_PASSWORD": "hubcheck",
				"POSTGRES_DB":       "hubcheck_test",
			},
			// Container is listening
			wait.ForListeningPort("5432/tcp"),
			// Postgres reports readiness in logs
			wait.ForLog("ready to accept connections"),
			// Actively verify SQL connectivity with a simple query
			wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://hubcheck:hubcheck@%s:%s/hubcheck_test?sslmode=disable", host, port.Port())
			}).WithQuery("SELECT 1"),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgDSN = fmt.Sprintf("postgres://hubcheck:hubcheck@%s/hubcheck_test?sslmode=disable", endpoint)
	})

	skipOnError(t, "postgres", pgErr)
	return pgDSN
}
