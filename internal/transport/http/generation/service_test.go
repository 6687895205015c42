package generation

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"chunks-server-go/internal/domain/scene"
	"chunks-server-go/internal/domain/session"
	"chunks-server-go/internal/domain/settings"
	httptransport "chunks-server-go/internal/transport/http"
)

type fakePipeline struct {
	startErr error
	started  []session.StartRequest
	expanded *bool
	resets   int
}

func (f *fakePipeline) Start(_ context.Context, clientID string, req session.StartRequest) (session.Snapshot, error) {
	f.started = append(f.started, req)
	snap := session.Snapshot{ClientID: clientID, Phase: session.PhaseGeneratingDialogue, SceneID: req.SceneID}
	if f.startErr != nil {
		snap.Phase = session.PhaseIdle
		snap.Error = f.startErr.Error()
	}
	return snap, f.startErr
}

func (f *fakePipeline) Snapshot(clientID string) session.Snapshot {
	return session.Snapshot{ClientID: clientID, Phase: session.PhaseIdle, Transcript: "A: hi"}
}

func (f *fakePipeline) Reset(clientID string) session.Snapshot {
	f.resets++
	return session.Snapshot{ClientID: clientID, Phase: session.PhaseIdle}
}

func (f *fakePipeline) ToggleDialogue(clientID string, expanded bool) session.Snapshot {
	f.expanded = &expanded
	return session.Snapshot{ClientID: clientID, DialogueExpanded: expanded}
}

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Code    int              `json:"code"`
	Data    session.Snapshot `json:"data"`
}

func newTestEngine(t *testing.T, p *fakePipeline) *gin.Engine {
	t.Helper()
	r, err := httptransport.Build(httptransport.Options{StaticDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	gin.SetMode(gin.TestMode)

	svc, err := NewService(p, defaultCatalog(t), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Register(context.Background(), r.API, r.Client); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r.Engine
}

func defaultCatalog(t *testing.T) *scene.Catalog {
	t.Helper()
	c, err := scene.Default()
	if err != nil {
		t.Fatalf("scene.Default: %v", err)
	}
	return c
}

func do(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(httptransport.ClientIDHeader, "c1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestScenesArePublic(t *testing.T) {
	engine := newTestEngine(t, &fakePipeline{})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var env struct {
		Data []scene.Scene `json:"data"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != len(defaultCatalog(t).List()) {
		t.Fatalf("got %d scenes", len(env.Data))
	}
}

func TestStartAccepted(t *testing.T) {
	p := &fakePipeline{}
	engine := newTestEngine(t, p)

	rec := do(engine, http.MethodPost, "/api/generations", `{"scene_id":"cafe"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var env envelope
	if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data.Phase != session.PhaseGeneratingDialogue || env.Data.ClientID != "c1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(p.started) != 1 || p.started[0].SceneID != "cafe" {
		t.Fatalf("pipeline saw %+v", p.started)
	}
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		body    string
		code    int
		message string
	}{
		{"empty request", nil, `{}`, http.StatusBadRequest, ""},
		{"bad json", nil, `{`, http.StatusBadRequest, "Invalid JSON format"},
		{"config missing", settings.ErrConfigMissing, `{"scene_id":"cafe"}`, http.StatusBadRequest, settings.ConfigMissingMessage},
		{"unknown scene", fmt.Errorf("%w: %q", session.ErrUnknownScene, "moon"), `{"scene_id":"moon"}`, http.StatusBadRequest, "未知场景"},
		{"store failure", fmt.Errorf("boom"), `{"scene_id":"cafe"}`, http.StatusInternalServerError, session.DialogueFailureMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, &fakePipeline{startErr: tt.err})
			rec := do(engine, http.MethodPost, "/api/generations", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			var env httptransport.APIResponse
			if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success || (tt.message != "" && env.Message != tt.message) {
				t.Fatalf("unexpected envelope: %+v", env)
			}
		})
	}
}

func TestCurrentResetAndToggle(t *testing.T) {
	p := &fakePipeline{}
	engine := newTestEngine(t, p)

	var env envelope
	rec := do(engine, http.MethodGet, "/api/generations/current", "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Data.Transcript != "A: hi" {
		t.Fatalf("current: %s", rec.Body.String())
	}

	if rec := do(engine, http.MethodDelete, "/api/generations/current", ""); rec.Code != http.StatusOK || p.resets != 1 {
		t.Fatalf("reset: status=%d resets=%d", rec.Code, p.resets)
	}

	rec = do(engine, http.MethodPatch, "/api/generations/current/dialogue", `{"expanded":true}`)
	if rec.Code != http.StatusOK || p.expanded == nil || !*p.expanded {
		t.Fatalf("toggle: status=%d expanded=%v", rec.Code, p.expanded)
	}

	if rec := do(engine, http.MethodPatch, "/api/generations/current/dialogue", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("toggle without flag: status=%d", rec.Code)
	}
}

func TestSessionRoutesRequireClientID(t *testing.T) {
	engine := newTestEngine(t, &fakePipeline{})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/generations/current", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
