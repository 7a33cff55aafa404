// Package pgtest hands integration tests a migrated Postgres pool.
//
// TASKS_DATABASE_URL wins when set. Otherwise a postgres:16-alpine container
// is started once per test binary. Tests are skipped in -short mode and when
// neither a URL nor a Docker daemon is available (outside CI).
package pgtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"taskmanager/cmd/internal/migrations"
)

const envDSN = "TASKS_DATABASE_URL"

var (
	once   sync.Once
	dsn    string
	setErr error
)

// Pool returns a pool against a migrated database; it is closed on cleanup.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}

	once.Do(func() { dsn, setErr = provision() })
	if setErr != nil {
		if shouldSkip(setErr) {
			t.Skipf("postgres unavailable: %v", setErr)
		}
		t.Fatalf("provision postgres: %v", setErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if shouldSkip(err) {
			t.Skipf("postgres unreachable: %v", err)
		}
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func provision() (string, error) {
	url := strings.TrimSpace(os.Getenv(envDSN))
	if url == "" {
		var err error
		url, err = startContainer()
		if err != nil {
			return "", err
		}
	}
	if err := migrations.Run(url, "up"); err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}
	return url, nil
}

func startContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "tasks",
			"POSTGRES_PASSWORD": "tasks",
			"POSTGRES_DB":       "tasks_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errNoDocker, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	// The container is reaped by testcontainers when the test binary exits.
	return fmt.Sprintf("postgres://tasks:tasks@%s:%s/tasks_test?sslmode=disable", host, port.Port()), nil
}

var errNoDocker = errors.New("container runtime unavailable")

func shouldSkip(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	if errors.Is(err, errNoDocker) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout")
}
