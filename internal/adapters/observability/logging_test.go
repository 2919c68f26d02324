package observability_test

import (
	"testing"

	"github.com/rs/zerolog"

	"hbnb_api/internal/adapters/observability"
)

func TestNewLoggerLevel(t *testing.T) {
	if got := observability.NewLogger("prod", "debug").GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", got)
	}
	if got := observability.NewLogger("dev", "nonsense").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", got)
	}
}
