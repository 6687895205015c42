package system

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	httptransport "chunks-server-go/internal/transport/http"
)

type fakeCounter struct{}

func (fakeCounter) Counts() (int, int) { return 2, 3 }

type fakeStats struct {
	err error
}

func (f fakeStats) Stats(context.Context) (map[string]any, error) {
	return map[string]any{"type": "memory", "total": 1}, f.err
}

func health(t *testing.T, store StoreStats) map[string]any {
	t.Helper()
	r, err := httptransport.Build(httptransport.Options{StaticDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	gin.SetMode(gin.TestMode)
	if err := NewService(fakeCounter{}, store, nil).Register(context.Background(), r.API); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec := httptest.NewRecorder()
	r.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

func TestHealth(t *testing.T) {
	data := health(t, fakeStats{})
	if data["status"] != "ok" {
		t.Fatalf("status = %v", data["status"])
	}
	ws, _ := data["websocket"].(map[string]any)
	if ws["clients"] != float64(2) || ws["sessions"] != float64(3) {
		t.Fatalf("websocket = %v", data["websocket"])
	}
	mem, _ := data["memory"].(map[string]any)
	if _, ok := mem["heap_alloc"]; !ok {
		t.Fatalf("memory = %v", data["memory"])
	}
}

func TestHealthDegradedOnStoreError(t *testing.T) {
	data := health(t, fakeStats{err: errors.New("redis down")})
	if data["status"] != "degraded" {
		t.Fatalf("status = %v", data["status"])
	}
}
