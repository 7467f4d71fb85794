package internal

import (
	"strings"
	"testing"
)

func TestApplyCmd_FlagValidation(t *testing.T) {
	path := initConfig(t, "memory")

	_, err := run(t, "apply", "--dry-run", "--force", "-s", "--config", path)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "already logged") {
		t.Errorf("expected sentinel error, got: %v", err)
	}
}

func TestApplyCmd_NothingPending(t *testing.T) {
	path := initConfig(t, "memory")

	if _, err := run(t, "apply", "-s", "--config", path); err != nil {
		t.Fatalf("apply without pending update: %v", err)
	}
}

func TestRollbackCmd_NoSnapshot(t *testing.T) {
	path := initConfig(t, "memory")

	if _, err := run(t, "rollback", "--yes", "-s", "--config", path); err != nil {
		t.Fatalf("rollback without snapshot: %v", err)
	}
}

func TestQueueList_Empty(t *testing.T) {
	path := initConfig(t, "memory")

	out, err := run(t, "queue", "list", "--json", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "null" && strings.TrimSpace(out) != "[]" {
		t.Errorf("unexpected queue listing %q", out)
	}
}
