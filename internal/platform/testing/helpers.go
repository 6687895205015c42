package testing

import (
	"reflect"
	"testing"
	"time"

	"chunks-server-go/internal/platform/config"
	"chunks-server-go/internal/platform/logging"
)

// SetupTestConfig returns a config that needs no files or network.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Server: config.ServerConfig{
			IP:              "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: time.Second,
			CORSOrigins:     []string{"*"},
		},
		Log: config.LogConfig{
			Level: "DEBUG",
			Dir:   t.TempDir(),
			File:  "test.log",
		},
		Web: config.WebConfig{
			StaticDir:      t.TempDir(),
			MaxUploadBytes: 1 << 20,
			WebSocketPath:  "/ws",
		},
		LLM: config.LLMConfig{
			DialogueModel:  "gemini-2.0-flash-exp",
			ChunkModel:     "gemini-exp-1206",
			ConvertModel:   "gemini-2.0-flash-exp",
			RequestTimeout: 5 * time.Second,
		},
		Generation: config.GenerationConfig{ChunkDelay: 0},
		Settings:   config.SettingsConfig{Driver: "memory"},
	}
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %#v, got %#v", expected, actual)
	}
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
