package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		log, err := New(tc.in, "tracker")
		if err != nil {
			t.Fatalf("New(%q): %v", tc.in, err)
		}
		if !log.Core().Enabled(tc.want) {
			t.Fatalf("New(%q): expected %s enabled", tc.in, tc.want)
		}
		if tc.want > zapcore.DebugLevel && log.Core().Enabled(tc.want-1) {
			t.Fatalf("New(%q): expected %s disabled", tc.in, tc.want-1)
		}
	}
}
