package logging

import (
	"log/slog"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{" Warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := levelFromString(tc.value); got != tc.want {
			t.Fatalf("levelFromString(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestComponentTagsLogger(t *testing.T) {
	t.Parallel()

	base := slog.New(slog.DiscardHandler)
	child := Component(base, "fetch")
	if child == base {
		t.Fatal("Component returned the base logger unchanged")
	}
}
