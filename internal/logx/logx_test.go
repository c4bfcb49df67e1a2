package logx

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevelAcceptsAliases(t *testing.T) {
	cases := map[string]zerolog.Level{
		"error":    zerolog.ErrorLevel,
		"err":      zerolog.ErrorLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"":         zerolog.InfoLevel,
		"info":     zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		"trace":    zerolog.TraceLevel,
		"  Debug ": zerolog.DebugLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected an error for an unrecognized level")
	}
}

func TestNewWritesToProvidedWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(zerolog.InfoLevel, &buf)
	log.Info().Msg("hello")
	if buf.Len() == 0 {
		t.Error("expected New's logger to write to the provided writer")
	}
}

func TestNewDefaultsToStderrWhenWriterNil(t *testing.T) {
	log := New(zerolog.InfoLevel, nil)
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %v", log.GetLevel())
	}
	_ = os.Stderr
}

func TestFromEnvUsesEnvironmentLevel(t *testing.T) {
	t.Setenv(EnvVar, "debug")
	log := FromEnv()
	if log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level from %s=debug, got %v", EnvVar, log.GetLevel())
	}
}

func TestFromEnvFallsBackToInfoOnUnknownValue(t *testing.T) {
	t.Setenv(EnvVar, "bogus")
	log := FromEnv()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level fallback for an unrecognized value, got %v", log.GetLevel())
	}
}
