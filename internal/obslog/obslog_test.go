package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	logger, err := Build(Options{Level: zapcore.InfoLevel, Format: "json", File: path})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("lobby_create", zap.String("lobby_id", "LB-1"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, `"msg":"lobby_create"`) || !strings.Contains(out, `"lobby_id":"LB-1"`) {
		t.Fatalf("log = %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level")
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_TO_CONSOLE", "false")
	o := OptionsFromEnv()
	if o.Level != zapcore.DebugLevel || o.Format != "json" || o.File != "" || o.Console {
		t.Fatalf("options = %+v", o)
	}
	if parseLevel("warning") != zapcore.WarnLevel || parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("level parsing wrong")
	}
}
