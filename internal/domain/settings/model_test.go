package settings

import (
	"errors"
	"testing"
)

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"abc":           "****",
		"abcd":          "****",
		"sk-1234567890": "****7890",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultsAreValid(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if d.Configured() {
		t.Fatal("defaults carry no key and must not be configured")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{name: "empty base url allowed", mutate: func(s *Settings) { s.Gemini.BaseURL = "" }},
		{name: "relative url", mutate: func(s *Settings) { s.Gemini.BaseURL = "/v1" }, field: "gemini.baseUrl"},
		{name: "ftp url", mutate: func(s *Settings) { s.Gemini.BaseURL = "ftp://x" }, field: "gemini.baseUrl"},
		{name: "unknown level", mutate: func(s *Settings) { s.EnglishLevel = "expert" }, field: "englishLevel"},
		{name: "unknown voice", mutate: func(s *Settings) { s.Voice = "zh-CN-XiaoxiaoNeural" }, field: "voice"},
		{name: "too slow", mutate: func(s *Settings) { s.Speed = 0.3 }, field: "speed"},
		{name: "too fast", mutate: func(s *Settings) { s.Speed = 1.5 }, field: "speed"},
		{name: "slowest", mutate: func(s *Settings) { s.Speed = 0.4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			err := s.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestNormalizeFillsBlanks(t *testing.T) {
	got := Settings{Gemini: Gemini{APIKey: "  k  ", BaseURL: " https://x.test "}}.Normalize()
	if got.Gemini.APIKey != "k" || got.Gemini.BaseURL != "https://x.test" {
		t.Fatalf("gemini not trimmed: %+v", got.Gemini)
	}
	if got.EnglishLevel != DefaultEnglishLevel || got.Voice != DefaultVoice || got.Speed != DefaultSpeed {
		t.Fatalf("defaults not applied: %+v", got)
	}
}
