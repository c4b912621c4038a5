package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/rexliu/motoshop/pkg/config"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shopd.log")
	logger, err := New("shopd", config.LoggingConfig{Level: "warn", FilePath: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("dropped below level")
	logger.Warn("stock low")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one line at warn level, got %d: %s", len(lines), data)
	}
	var entry map[string]any
	if err := sonic.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["msg"] != "stock low" || entry["level"] != "warn" || entry["service"] != "shopd" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"].(string); !ok {
		t.Fatalf("ts should be an RFC3339 string: %v", entry["ts"])
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("shopd", config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
