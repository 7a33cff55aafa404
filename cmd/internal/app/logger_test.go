package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", in, got, want)
		}
	}
}

func TestNewHandler_Formats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	slog.New(newHandler(&jsonBuf, true, "info", "")).Info("auth.login.ok", "user_id", "u-1")

	var rec map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &rec); err != nil {
		t.Fatalf("default format should be JSON: %v (%q)", err, jsonBuf.String())
	}
	if rec["msg"] != "auth.login.ok" || rec["user_id"] != "u-1" {
		t.Fatalf("unexpected record %v", rec)
	}
	if _, ok := rec["source"]; !ok {
		t.Fatalf("expected source in %v", rec)
	}

	for _, format := range []string{"pretty", "TEXT", "console"} {
		var buf bytes.Buffer
		log := slog.New(newHandler(&buf, false, "warn", format))
		log.Info("dropped")
		log.Warn("auth.login.rate_limited", "user_id", "u-1")

		out := buf.String()
		if strings.Contains(out, "dropped") {
			t.Fatalf("%s: info should be filtered: %q", format, out)
		}
		if !strings.Contains(out, "lvl=[WARN]") || !strings.Contains(out, "user=u-1") {
			t.Fatalf("%s: unexpected line %q", format, out)
		}
	}
}

func TestColorEnabled_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if colorEnabled(nil) {
		t.Fatalf("NO_COLOR must disable color")
	}
}
