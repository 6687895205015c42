package session

import (
	"time"

	"chunks-server-go/internal/domain/chunks"
)

// Phase is the position of a generation run in its lifecycle.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseGeneratingDialogue Phase = "generating-dialogue"
	PhaseGeneratingChunks   Phase = "generating-chunks"
)

// Snapshot is the observable state of one client's generation session.
type Snapshot struct {
	ClientID         string         `json:"client_id"`
	Generation       uint64         `json:"generation"`
	RunID            string         `json:"run_id,omitempty"`
	Phase            Phase          `json:"phase"`
	Progress         float64        `json:"progress"`
	SceneID          string         `json:"scene_id"`
	Prompt           string         `json:"prompt"`
	Transcript       string         `json:"transcript"`
	Formatted        string         `json:"formatted"`
	Chunks           []chunks.Chunk `json:"chunks"`
	Error            string         `json:"error"`
	DialogueExpanded bool           `json:"dialogue_expanded"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func idleSnapshot(clientID string, generation uint64, now time.Time) Snapshot {
	return Snapshot{
		ClientID:   clientID,
		Generation: generation,
		Phase:      PhaseIdle,
		Chunks:     []chunks.Chunk{},
		UpdatedAt:  now,
	}
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Chunks = make([]chunks.Chunk, len(s.Chunks))
	copy(out.Chunks, s.Chunks)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	return out
}
