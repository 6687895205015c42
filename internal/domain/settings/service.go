package settings

import (
	"context"
	"errors"

	"chunks-server-go/internal/domain/eventbus"
	"chunks-server-go/internal/domain/llm"
	"chunks-server-go/internal/platform/logging"
)

// ConfigMissingMessage is shown when a client tries to generate before
// configuring the endpoint.
const ConfigMissingMessage = "请先在设置中配置 API URL 和 API Key"

// ErrConfigMissing means the client's endpoint or key is absent.
var ErrConfigMissing = errors.New(ConfigMissingMessage)

// Publisher receives eventbus.EventSettingsChanged after a save or reset,
// keyed by client id.
type Publisher interface {
	PublishLatest(topic, key string, args ...interface{})
}

// Service applies defaults, validation and masking on top of a Store.
type Service struct {
	store     Store
	logger    *logging.Logger
	publisher Publisher
}

func NewService(store Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Service{store: store, logger: logger}
}

// SetPublisher must be called before the service is shared.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Get returns the stored settings, or defaults when none were saved.
func (s *Service) Get(ctx context.Context, clientID string) (Settings, error) {
	v, err := s.store.Get(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return v.Normalize(), nil
}

// View is Get with the API key masked.
func (s *Service) View(ctx context.Context, clientID string) (Settings, error) {
	v, err := s.Get(ctx, clientID)
	if err != nil {
		return Settings{}, err
	}
	return v.Masked(), nil
}

// Update validates and saves in. A masked key sent back unchanged keeps
// the stored key. The masked result is returned.
func (s *Service) Update(ctx context.Context, clientID string, in Settings) (Settings, error) {
	in = in.Normalize()
	if IsMasked(in.Gemini.APIKey) {
		current, err := s.Get(ctx, clientID)
		if err != nil {
			return Settings{}, err
		}
		in.Gemini.APIKey = current.Gemini.APIKey
	}
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.store.Save(ctx, clientID, in); err != nil {
		s.logger.ErrorTag("Settings", "保存设置失败 client=%s: %v", clientID, err)
		return Settings{}, err
	}
	s.logger.InfoTag("Settings", "设置已保存 client=%s level=%s voice=%s", clientID, in.EnglishLevel, in.Voice)
	s.changed(clientID)
	return in.Masked(), nil
}

func (s *Service) Reset(ctx context.Context, clientID string) error {
	if err := s.store.Delete(ctx, clientID); err != nil {
		return err
	}
	s.changed(clientID)
	return nil
}

// LLMConfig resolves the endpoint configuration for clientID, failing with
// ErrConfigMissing before any network call when it is incomplete.
func (s *Service) LLMConfig(ctx context.Context, clientID string) (llm.Config, error) {
	v, err := s.store.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return llm.Config{}, ErrConfigMissing
		}
		return llm.Config{}, err
	}
	if !v.Configured() {
		return llm.Config{}, ErrConfigMissing
	}
	return llm.Config{BaseURL: v.Gemini.BaseURL, APIKey: v.Gemini.APIKey}, nil
}

func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	return s.store.Stats(ctx)
}

func (s *Service) changed(clientID string) {
	if s.publisher != nil {
		s.publisher.PublishLatest(eventbus.EventSettingsChanged, clientID, clientID)
	}
}
