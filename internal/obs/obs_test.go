package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupDefaultsToInfoLevel(t *testing.T) {
	logger, err := Setup(context.Background(), Config{File: "stderr"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Level: "not-a-level"}); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestSetupAddsCallerAtDebugLevel(t *testing.T) {
	logger, err := Setup(context.Background(), Config{Level: "debug", File: "stderr"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	var buf bytes.Buffer
	logger = logger.Output(&buf)
	logger.Debug().Msg("hi")

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if _, ok := decoded[zerolog.CallerFieldName]; !ok {
		t.Fatalf("expected a caller field at debug level, got %v", decoded)
	}
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.log")
	logger, err := Setup(context.Background(), Config{File: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	logger.Info().Msg("hello")
}
