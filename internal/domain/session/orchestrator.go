package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"chunks-server-go/internal/domain/chunks"
	"chunks-server-go/internal/domain/dialogue"
	"chunks-server-go/internal/domain/eventbus"
	"chunks-server-go/internal/domain/llm"
	"chunks-server-go/internal/domain/scene"
	"chunks-server-go/internal/domain/settings"
	"chunks-server-go/internal/platform/logging"
	"chunks-server-go/internal/platform/observability"
)

const (
	// ChunkFailureMessage keeps the dialogue visible after extraction fails.
	ChunkFailureMessage = "英语块生成失败，请稍后重试。您仍然可以查看生成的对话。"
	// DialogueFailureMessage is shown when the dialogue stream fails.
	DialogueFailureMessage = "生成对话时出错"

	dialogueProgressCap   = 50.0
	dialogueProgressChars = 500.0
	chunksStartProgress   = 60.0
	doneProgress          = 100.0

	// DefaultChunkDelay is the pause between dialogue and extraction.
	DefaultChunkDelay = 3 * time.Second
)

var (
	// ErrUnknownScene means the scene id is not in the catalog and no custom
	// prompt was given.
	ErrUnknownScene = errors.New("unknown scene")
	// ErrClientRequired means the caller did not identify itself.
	ErrClientRequired = errors.New("client id required")
)

type ConfigResolver interface {
	LLMConfig(ctx context.Context, clientID string) (llm.Config, error)
}

type DialogueGenerator interface {
	Generate(ctx context.Context, cfg llm.Config, scene string, onProgress func(raw string)) (string, error)
}

type ChunkExtractor interface {
	Extract(ctx context.Context, cfg llm.Config, dialogue string) ([]chunks.Chunk, error)
}

type SceneLookup interface {
	Get(id string) (scene.Scene, bool)
}

// Publisher coalesces per key: an undelivered snapshot of the same client
// is replaced by the newer one.
type Publisher interface {
	PublishLatest(topic, key string, args ...interface{})
}

// Dependencies groups the orchestrator's collaborators. Publisher may be nil.
type Dependencies struct {
	Config    ConfigResolver
	Dialogue  DialogueGenerator
	Chunks    ChunkExtractor
	Scenes    SceneLookup
	Publisher Publisher
	Logger    *logging.Logger
}

type Options struct {
	ChunkDelay time.Duration
}

// StartRequest selects a catalog scene or supplies a custom prompt.
type StartRequest struct {
	SceneID      string `json:"scene_id"`
	CustomPrompt string `json:"custom_prompt"`
}

type clientState struct {
	generation uint64
	snap       Snapshot
}

// Orchestrator runs at most one live generation per client. Starting again
// or resetting supersedes the running one: its later updates are dropped.
type Orchestrator struct {
	deps Dependencies
	opts Options

	baseCtx context.Context
	mu      sync.Mutex
	clients map[string]*clientState
	wg      sync.WaitGroup
	now     func() time.Time
}

// New creates an orchestrator whose runs live until baseCtx is cancelled.
func New(baseCtx context.Context, deps Dependencies, opts Options) *Orchestrator {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewDiscard()
	}
	if opts.ChunkDelay < 0 {
		opts.ChunkDelay = 0
	}
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		baseCtx: baseCtx,
		clients: make(map[string]*clientState),
		now:     time.Now,
	}
}

// Start begins a new run and returns its initial snapshot immediately.
//
// Selecting the custom scene without a prompt only records the selection.
// A missing endpoint configuration ends the run before any network call and
// is returned as settings.ErrConfigMissing alongside the error snapshot.
func (o *Orchestrator) Start(ctx context.Context, clientID string, req StartRequest) (Snapshot, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return Snapshot{}, ErrClientRequired
	}

	sceneID := strings.TrimSpace(req.SceneID)
	prompt := strings.TrimSpace(req.CustomPrompt)

	if prompt == "" && sceneID == scene.CustomID {
		return o.selectScene(clientID, sceneID), nil
	}

	title := prompt
	if prompt != "" {
		if sceneID == "" {
			sceneID = scene.CustomID
		}
	} else {
		sc, ok := o.deps.Scenes.Get(sceneID)
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownScene, sceneID)
		}
		title = sc.Title
	}

	snap, generation := o.begin(clientID, sceneID, prompt)
	o.deps.Logger.InfoTag("Session", "开始生成 client=%s run=%s scene=%s", clientID, snap.RunID, sceneID)

	cfg, err := o.deps.Config.LLMConfig(ctx, clientID)
	if err != nil {
		msg := err.Error()
		if !errors.Is(err, settings.ErrConfigMissing) {
			o.deps.Logger.ErrorTag("Session", "读取设置失败 client=%s: %v", clientID, err)
			msg = DialogueFailureMessage
		}
		final, _ := o.update(clientID, generation, func(s *Snapshot) {
			s.Phase = PhaseIdle
			s.Error = msg
			s.SceneID = ""
		})
		return final, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(clientID, generation, snap.RunID, cfg, title)
	}()
	return snap, nil
}

func (o *Orchestrator) run(clientID string, generation uint64, runID string, cfg llm.Config, title string) {
	ctx, end := observability.StartSpan(o.baseCtx, "session", "run")
	var runErr error
	defer func() { end(runErr) }()

	transcript, err := o.deps.Dialogue.Generate(ctx, cfg, title, func(raw string) {
		o.update(clientID, generation, func(s *Snapshot) {
			s.Transcript = raw
			s.Formatted = dialogue.Format(raw)
			s.Progress = dialogueProgress(raw)
		})
	})
	if err != nil {
		runErr = err
		o.deps.Logger.ErrorTag("Session", "对话阶段失败 client=%s run=%s: %v", clientID, runID, err)
		o.update(clientID, generation, func(s *Snapshot) {
			s.Phase = PhaseIdle
			s.Error = dialogueErrorMessage(err)
			s.SceneID = ""
		})
		return
	}

	if _, live := o.update(clientID, generation, func(s *Snapshot) {
		s.Transcript = transcript
		s.Formatted = dialogue.Format(transcript)
		s.Phase = PhaseGeneratingChunks
		s.Progress = chunksStartProgress
	}); !live {
		o.deps.Logger.DebugTag("Session", "运行已被替换 client=%s run=%s", clientID, runID)
		return
	}

	if !o.pause(ctx) {
		runErr = ctx.Err()
		return
	}
	if !o.live(clientID, generation) {
		o.deps.Logger.DebugTag("Session", "运行已被替换 client=%s run=%s", clientID, runID)
		return
	}

	extracted, err := o.deps.Chunks.Extract(ctx, cfg, transcript)
	if err != nil {
		runErr = err
		o.deps.Logger.ErrorTag("Session", "英语块阶段失败 client=%s run=%s: %v", clientID, runID, err)
		o.update(clientID, generation, func(s *Snapshot) {
			s.Phase = PhaseIdle
			s.Error = ChunkFailureMessage
			s.Chunks = []chunks.Chunk{}
		})
		return
	}

	o.update(clientID, generation, func(s *Snapshot) {
		s.Chunks = extracted
		s.Progress = doneProgress
		s.Phase = PhaseIdle
		s.DialogueExpanded = false
	})
	observability.RecordMetric(ctx, "session.chunks", float64(len(extracted)), nil)
	o.deps.Logger.InfoTag("Session", "生成完成 client=%s run=%s chunks=%d", clientID, runID, len(extracted))
}

// pause waits ChunkDelay; it returns false when the server is shutting down.
func (o *Orchestrator) pause(ctx context.Context) bool {
	if o.opts.ChunkDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(o.opts.ChunkDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Snapshot returns the client's current state; unknown clients are idle.
func (o *Orchestrator) Snapshot(clientID string) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.clients[clientID]; ok {
		return st.snap.clone()
	}
	return idleSnapshot(clientID, 0, o.now())
}

// Reset discards the client's session and supersedes any running run.
func (o *Orchestrator) Reset(clientID string) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(clientID)
	st.generation++
	st.snap = idleSnapshot(clientID, st.generation, o.now())
	return o.publish(st.snap)
}

// ToggleDialogue changes only the transcript expansion flag.
func (o *Orchestrator) ToggleDialogue(clientID string, expanded bool) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(clientID)
	st.snap.DialogueExpanded = expanded
	st.snap.UpdatedAt = o.now()
	return o.publish(st.snap)
}

// Wait blocks until every started run has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) selectScene(clientID, sceneID string) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(clientID)
	st.snap.SceneID = sceneID
	st.snap.UpdatedAt = o.now()
	return o.publish(st.snap)
}

func (o *Orchestrator) begin(clientID, sceneID, prompt string) (Snapshot, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state(clientID)
	st.generation++

	now := o.now()
	snap := idleSnapshot(clientID, st.generation, now)
	snap.RunID = uuid.NewString()
	snap.Phase = PhaseGeneratingDialogue
	snap.SceneID = sceneID
	snap.Prompt = prompt
	snap.DialogueExpanded = st.snap.DialogueExpanded
	snap.StartedAt = &now
	st.snap = snap

	return o.publish(snap), st.generation
}

// update applies fn when generation is still the client's live run. The
// check and the write share one critical section.
func (o *Orchestrator) update(clientID string, generation uint64, fn func(*Snapshot)) (Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.clients[clientID]
	if !ok || st.generation != generation {
		return Snapshot{}, false
	}
	fn(&st.snap)
	st.snap.UpdatedAt = o.now()
	return o.publish(st.snap), true
}

func (o *Orchestrator) live(clientID string, generation uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.clients[clientID]
	return ok && st.generation == generation
}

// state must be called with mu held.
func (o *Orchestrator) state(clientID string) *clientState {
	st, ok := o.clients[clientID]
	if !ok {
		st = &clientState{snap: idleSnapshot(clientID, 0, o.now())}
		o.clients[clientID] = st
	}
	return st
}

// publish must be called with mu held so subscribers see updates in order.
func (o *Orchestrator) publish(s Snapshot) Snapshot {
	out := s.clone()
	if o.deps.Publisher != nil {
		o.deps.Publisher.PublishLatest(eventbus.EventSessionUpdated, out.ClientID, out.clone())
	}
	return out
}

func dialogueProgress(raw string) float64 {
	p := float64(utf8.RuneCountInString(raw)) / dialogueProgressChars * dialogueProgressCap
	if p > dialogueProgressCap {
		return dialogueProgressCap
	}
	return p
}

func dialogueErrorMessage(err error) string {
	var te *llm.TransportError
	if errors.As(err, &te) && te.Status != "" {
		return fmt.Sprintf("%s (%s)", DialogueFailureMessage, te.Status)
	}
	return DialogueFailureMessage
}
