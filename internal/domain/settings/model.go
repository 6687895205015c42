package settings

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultBaseURL      = "https://generativelanguage.googleapis.com"
	DefaultEnglishLevel = "elementary"
	DefaultVoice        = "en-US-JennyNeural"
	DefaultSpeed        = 1.0

	MinSpeed = 0.4
	MaxSpeed = 1.0

	maskPrefix = "****"
)

// EnglishLevels are the accepted learner levels, easiest first.
var EnglishLevels = []string{"kindergarten", "elementary", "junior", "university", "postdoc"}

// Voices are the accepted Edge TTS voice names.
var Voices = []string{
	"en-US-JennyNeural",
	"en-US-GuyNeural",
	"en-GB-SoniaNeural",
	"en-GB-RyanNeural",
	"en-AU-NatashaNeural",
	"en-AU-WilliamNeural",
	"en-CA-ClaraNeural",
	"en-CA-LiamNeural",
}

// Gemini holds the chat endpoint credentials.
type Gemini struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

// Settings is one client's preferences document.
type Settings struct {
	Gemini       Gemini  `json:"gemini"`
	EnglishLevel string  `json:"englishLevel"`
	Voice        string  `json:"voice"`
	Speed        float64 `json:"speed"`
}

// Defaults returns the settings of a client that never saved any.
func Defaults() Settings {
	return Settings{
		Gemini:       Gemini{BaseURL: DefaultBaseURL},
		EnglishLevel: DefaultEnglishLevel,
		Voice:        DefaultVoice,
		Speed:        DefaultSpeed,
	}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Normalize trims string fields and fills blanks with defaults. The API key
// is left blank when blank.
func (s Settings) Normalize() Settings {
	d := Defaults()
	s.Gemini.APIKey = strings.TrimSpace(s.Gemini.APIKey)
	s.Gemini.BaseURL = strings.TrimSpace(s.Gemini.BaseURL)
	s.EnglishLevel = strings.TrimSpace(s.EnglishLevel)
	s.Voice = strings.TrimSpace(s.Voice)

	if s.EnglishLevel == "" {
		s.EnglishLevel = d.EnglishLevel
	}
	if s.Voice == "" {
		s.Voice = d.Voice
	}
	if s.Speed == 0 {
		s.Speed = d.Speed
	}
	return s
}

// Validate checks enumerations, the speed range and the base URL shape. An
// empty base URL is allowed; it only blocks generation later.
func (s Settings) Validate() error {
	if s.Gemini.BaseURL != "" {
		u, err := url.Parse(s.Gemini.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "gemini.baseUrl", Message: "must be an absolute http(s) URL"}
		}
	}
	if !contains(EnglishLevels, s.EnglishLevel) {
		return &ValidationError{Field: "englishLevel", Message: fmt.Sprintf("must be one of %s", strings.Join(EnglishLevels, ", "))}
	}
	if !contains(Voices, s.Voice) {
		return &ValidationError{Field: "voice", Message: "unsupported voice " + s.Voice}
	}
	if s.Speed < MinSpeed || s.Speed > MaxSpeed {
		return &ValidationError{Field: "speed", Message: fmt.Sprintf("must be between %.1f and %.1f", MinSpeed, MaxSpeed)}
	}
	return nil
}

// Masked returns a copy safe to send to a client.
func (s Settings) Masked() Settings {
	s.Gemini.APIKey = MaskKey(s.Gemini.APIKey)
	return s
}

// Configured reports whether both endpoint and key are present.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.Gemini.APIKey) != "" && strings.TrimSpace(s.Gemini.BaseURL) != ""
}

// MaskKey keeps only the last four characters of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= 4 {
		return maskPrefix
	}
	return maskPrefix + string(r[len(r)-4:])
}

// IsMasked reports whether key looks like a value produced by MaskKey.
func IsMasked(key string) bool {
	return strings.HasPrefix(key, maskPrefix)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
