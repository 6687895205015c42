package settings

import (
	"context"
	"errors"
	"testing"

	"chunks-server-go/internal/domain/eventbus"
)

func TestServiceGetDefaults(t *testing.T) {
	svc := NewService(NewMemory(), nil)
	got, err := svc.View(context.Background(), "new-client")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestServiceUpdateMasksAndKeepsKey(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), nil)

	in := Defaults()
	in.Gemini.APIKey = "sk-secret-1234"
	view, err := svc.Update(ctx, "c", in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if view.Gemini.APIKey != "****1234" {
		t.Fatalf("update response must mask key, got %q", view.Gemini.APIKey)
	}

	// Sending the masked key back keeps the stored key.
	view.EnglishLevel = "postdoc"
	if _, err := svc.Update(ctx, "c", view); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	full, err := svc.Get(ctx, "c")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if full.Gemini.APIKey != "sk-secret-1234" || full.EnglishLevel != "postdoc" {
		t.Fatalf("unexpected stored settings: %+v", full)
	}
}

func TestServiceUpdateRejectsInvalid(t *testing.T) {
	svc := NewService(NewMemory(), nil)
	in := Defaults()
	in.Speed = 2
	_, err := svc.Update(context.Background(), "c", in)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := svc.store.Get(context.Background(), "c"); !errors.Is(err, ErrNotFound) {
		t.Fatal("invalid settings must not be saved")
	}
}

func TestServiceLLMConfig(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), nil)

	if _, err := svc.LLMConfig(ctx, "c"); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing for unknown client, got %v", err)
	}

	in := Defaults()
	in.Gemini.BaseURL = ""
	in.Gemini.APIKey = "k"
	if _, err := svc.Update(ctx, "c", in); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.LLMConfig(ctx, "c"); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing without base url, got %v", err)
	}

	in.Gemini.BaseURL = "https://proxy.test/"
	if _, err := svc.Update(ctx, "c", in); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cfg, err := svc.LLMConfig(ctx, "c")
	if err != nil {
		t.Fatalf("LLMConfig: %v", err)
	}
	if cfg.BaseURL != "https://proxy.test/" || cfg.APIKey != "k" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if ErrConfigMissing.Error() != "请先在设置中配置 API URL 和 API Key" {
		t.Fatalf("unexpected message %q", ErrConfigMissing.Error())
	}
}

func TestServiceReset(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), nil)
	in := Defaults()
	in.Gemini.APIKey = "k"
	_, _ = svc.Update(ctx, "c", in)
	if err := svc.Reset(ctx, "c"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, _ := svc.Get(ctx, "c")
	if got != Defaults() {
		t.Fatalf("expected defaults after reset, got %+v", got)
	}
}

type recordingPublisher struct {
	topics  []string
	clients []string
}

func (p *recordingPublisher) PublishLatest(topic, _ string, args ...interface{}) {
	p.topics = append(p.topics, topic)
	if len(args) == 1 {
		if id, ok := args[0].(string); ok {
			p.clients = append(p.clients, id)
		}
	}
}

func TestServicePublishesChanges(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemory(), nil)
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)

	in := Defaults()
	in.Speed = 2
	_, _ = svc.Update(ctx, "c", in)
	if len(pub.topics) != 0 {
		t.Fatalf("rejected update must not publish, got %v", pub.topics)
	}

	in = Defaults()
	in.Gemini.APIKey = "k"
	if _, err := svc.Update(ctx, "c", in); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Reset(ctx, "c"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if len(pub.topics) != 2 || pub.topics[0] != eventbus.EventSettingsChanged {
		t.Fatalf("unexpected topics %v", pub.topics)
	}
	if pub.clients[0] != "c" || pub.clients[1] != "c" {
		t.Fatalf("unexpected clients %v", pub.clients)
	}
}
