package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/a2bot/relay/pkg/store"
)

func TestSaveAndLoad(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	doc := []byte(`[{"role":"user","content":"hi"}]`)
	if err := s.Save(ctx, "100_200", doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load(ctx, "100_200")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != string(doc) {
		t.Errorf("Load = %s, want %s", got, doc)
	}
}

func TestSaveCreatesNamespace(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "data", "relay"))
	ctx := context.Background()

	if err := s.Save(ctx, "users/42", []byte(`{"model":"gpt-4o"}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := filepath.Join(dir, "data", "relay", "users", "42.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected document at %s: %v", path, err)
	}
}

func TestLoadMissing(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Load(context.Background(), "never-saved")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	s.Save(ctx, "k", []byte(`"old"`))
	if err := s.Save(ctx, "k", []byte(`"new"`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != `"new"` {
		t.Errorf("Load = %s, want %q", got, `"new"`)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "..", "../outside", "/etc/passwd"} {
		if err := s.Save(ctx, key, []byte("{}")); !errors.Is(err, store.ErrInvalidKey) {
			t.Errorf("Save(%q): expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := s.Load(ctx, key); !errors.Is(err, store.ErrInvalidKey) {
			t.Errorf("Load(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
}
