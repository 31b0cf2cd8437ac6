// Package dbtest starts a throwaway Postgres for integration tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Tomlord1122/family-todo/internal/config"
	"github.com/Tomlord1122/family-todo/internal/database"
	"github.com/Tomlord1122/family-todo/internal/domain"
)

const (
	image    = "postgres:16-alpine"
	dbName   = "family_todo"
	user     = "todo"
	password = "todo"
)

// New starts a Postgres container, connects a database.Service to it and runs
// migrations. The test is skipped when no container runtime is reachable.
func New(t *testing.T) database.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ctr.Terminate(context.Background())
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	svc, err := database.New(ctx, config.DBConfig{
		Host:     host,
		Port:     port.Port(),
		Database: dbName,
		Username: user,
		Password: password,
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Close()
	})

	require.NoError(t, svc.Migrate(domain.Models()...))
	return svc
}
