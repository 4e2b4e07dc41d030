package instance

import (
	"strings"
	"testing"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("CURIO_WORKER_ID", "cron-7")
	if got := GetID(); got != "cron-7" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDFallsBackToHost(t *testing.T) {
	t.Setenv("CURIO_WORKER_ID", "")
	if got := GetID(); got == "" || !strings.Contains(got, "-") {
		t.Fatalf("unexpected fallback id %q", got)
	}
}
