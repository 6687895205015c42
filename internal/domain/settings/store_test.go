package settings

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"chunks-server-go/internal/platform/storage"
)

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:settings-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })

	store, err := NewSQLite(db)
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}
	return store
}

func newTestRedisStore(t *testing.T) Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewRedis(&RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestStoreLifecycle(t *testing.T) {
	drivers := map[string]func(t *testing.T) Store{
		DriverMemory: func(*testing.T) Store { return NewMemory() },
		DriverSQLite: newTestSQLiteStore,
		DriverRedis:  newTestRedisStore,
	}

	for name, build := range drivers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			if _, err := store.Get(ctx, "c1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			in := Defaults()
			in.Gemini.APIKey = "sk-abcdef"
			in.Voice = "en-GB-RyanNeural"
			if err := store.Save(ctx, "c1", in); err != nil {
				t.Fatalf("Save error: %v", err)
			}

			got, err := store.Get(ctx, "c1")
			if err != nil {
				t.Fatalf("Get error: %v", err)
			}
			if got != in {
				t.Fatalf("round trip mismatch: got %+v want %+v", got, in)
			}

			in.Speed = 0.6
			if err := store.Save(ctx, "c1", in); err != nil {
				t.Fatalf("overwrite error: %v", err)
			}
			got, _ = store.Get(ctx, "c1")
			if got.Speed != 0.6 {
				t.Fatalf("overwrite not applied: %+v", got)
			}

			stats, err := store.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats error: %v", err)
			}
			if stats["type"] != name {
				t.Fatalf("stats type = %v", stats["type"])
			}
			if fmt.Sprint(stats["total"]) != "1" {
				t.Fatalf("stats total = %v", stats["total"])
			}

			if err := store.Delete(ctx, "c1"); err != nil {
				t.Fatalf("Delete error: %v", err)
			}
			if _, err := store.Get(ctx, "c1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}

			if err := store.Save(ctx, "", in); err == nil {
				t.Fatal("expected error for empty client id")
			}
		})
	}
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	store, err := New(Config{Driver: DriverMemory}, Dependencies{})
	if err != nil {
		t.Fatalf("New memory store: %v", err)
	}
	_ = store.Close(ctx)

	store, err = New(Config{
		Driver: DriverSQLite,
		SQLite: &SQLiteConfig{DSN: fmt.Sprintf("file:factory-%d?mode=memory&cache=shared", time.Now().UnixNano())},
	}, Dependencies{})
	if err != nil {
		t.Fatalf("New sqlite store: %v", err)
	}
	if err := store.Save(ctx, "factory-sqlite", Defaults()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	store, err = New(Config{Driver: " Redis ", Redis: &RedisConfig{Addr: mr.Addr(), Prefix: "t:"}}, Dependencies{})
	if err != nil {
		t.Fatalf("New redis store: %v", err)
	}
	if err := store.Save(ctx, "r", Defaults()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !mr.Exists("t:r") {
		t.Fatal("expected prefixed redis key")
	}
	_ = store.Close(ctx)

	if _, err := New(Config{Driver: "etcd"}, Dependencies{}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := New(Config{Driver: DriverSQLite}, Dependencies{}); err == nil {
		t.Fatal("expected error for sqlite without handle or dsn")
	}
	if _, err := New(Config{Driver: DriverRedis}, Dependencies{}); err == nil {
		t.Fatal("expected error for redis without config")
	}
}
