package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/a2bot/relay/pkg/store"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("relay_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	s, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestPostgres_SaveAndLoad(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	key := fmt.Sprintf("100_%d", time.Now().UnixNano())
	doc := []byte(`[{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}]`)

	if err := s.Save(ctx, key, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// JSONB normalizes whitespace, so compare the parsed shape loosely.
	if !strings.Contains(string(got), `"assistant"`) {
		t.Errorf("Load = %s, want document containing assistant turn", got)
	}
}

func TestPostgres_LoadNotFound(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.Load(context.Background(), "never-saved")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_SaveOverwrites(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	key := fmt.Sprintf("users/%d", time.Now().UnixNano())
	s.Save(ctx, key, []byte(`{"model": "old"}`))

	if err := s.Save(ctx, key, []byte(`{"model": "new"}`)); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := s.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(string(got), `"new"`) {
		t.Errorf("Load = %s, want overwritten document", got)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	s := setupTestDB(t)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
