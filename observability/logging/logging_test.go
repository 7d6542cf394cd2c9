package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaskDSN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"postgres://indexer:hunter2@db:5432/market", "postgres://indexer:redacted@db:5432/market"},
		{"postgres://indexer@db/market", "postgres://indexer@db/market"},
		{"host=db user=indexer password=hunter2", "host=db user=indexer password=" + RedactedValue},
		{"file:market.db?mode=memory&cache=shared", "file:market.db?mode=memory&cache=shared"},
		{"/var/lib/marketd/index.db", "/var/lib/marketd/index.db"},
	}
	for _, tc := range cases {
		if got := MaskDSN(tc.in); got != tc.want {
			t.Fatalf("MaskDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHandlerRedactsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redact.log")
	logger, closer := SetupWithFile("marketd", "", FileOptions{Path: path, MaxSizeMB: 1})
	logger.Info("index", "dsn", "postgres://indexer:hunter2@db/market", "headers", "authorization=Bearer abc", "method", "market_getListing")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if strings.Contains(line, "hunter2") || strings.Contains(line, "Bearer") {
		t.Fatalf("secret leaked: %s", line)
	}
	for _, want := range []string{`"headers":"` + RedactedValue + `"`, `"method":"market_getListing"`, "indexer:redacted@db"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %s", line, want)
		}
	}
}

func TestSetupWithFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketd.log")
	logger, closer := SetupWithFile("marketd", "test", FileOptions{Path: path, MaxSizeMB: 1})
	logger.Info("hello", "height", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"message":"hello"`, `"severity":"INFO"`, `"service":"marketd"`, `"env":"test"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %s", line, want)
		}
	}
}
