package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_Levels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if _, err := NewLogger(lvl); err != nil {
			t.Errorf("NewLogger(%q): %v", lvl, err)
		}
	}
	if _, err := NewLogger("loud"); err == nil {
		t.Error("NewLogger(loud) should fail")
	}
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "node.log")

	logger, err := NewLoggerWithFile(path, "info")
	if err != nil {
		t.Fatal(err)
	}
	logger.Sugar().Infow("order_created", "id", 7)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"order_created"`) || !strings.Contains(string(data), `"id":7`) {
		t.Errorf("log file = %s", data)
	}
}
