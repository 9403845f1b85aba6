// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSetLogOutput(t *testing.T) {
	defer SetLogOutput(os.Stderr, slog.LevelInfo)

	tests := []struct {
		name      string
		level     slog.Level
		wantDebug bool
	}{
		{"info drops debug", slog.LevelInfo, false},
		{"debug keeps debug", slog.LevelDebug, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetLogOutput(&buf, tt.level)

			Debug("scanned", "keys", 2)
			Logger.Info("reloaded", "dir", "/tmp/ks")

			out := buf.String()
			if got := strings.Contains(out, "msg=scanned keys=2"); got != tt.wantDebug {
				t.Errorf("debug line present = %v, want %v:\n%s", got, tt.wantDebug, out)
			}
			if !strings.Contains(out, "msg=reloaded dir=/tmp/ks") {
				t.Errorf("info line missing:\n%s", out)
			}
			if strings.Contains(out, "time=") || strings.Contains(out, "level=") {
				t.Errorf("time/level attributes not dropped:\n%s", out)
			}
		})
	}
}

func TestInitLoggerDebugEnv(t *testing.T) {
	defer SetLogOutput(os.Stderr, slog.LevelInfo)

	t.Setenv(DebugEnv, "1")
	InitLogger()
	if !Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("debug disabled with %s set", DebugEnv)
	}

	t.Setenv(DebugEnv, "")
	InitLogger()
	if Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("debug enabled with %s empty", DebugEnv)
	}
}
