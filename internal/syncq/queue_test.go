package syncq

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"coinfactory/internal/game"
)

func TestPushAndLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FCTL_HOME", dir)

	got, err := Load()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty queue, got %d", len(got))
	}

	queued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := Push(Command{Action: "purchase", Track: "Assembly", Upgrade: "Conveyor Belt", IdempotencyKey: "a", QueuedAt: queued}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := Push(Command{Action: "deposit", Amount: 25, IdempotencyKey: "b", QueuedAt: queued}); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].IdempotencyKey != "a" || got[1].Amount != 25 {
		t.Fatalf("unexpected queue %+v", got)
	}
	if !got[0].QueuedAt.Equal(queued) {
		t.Fatalf("queued_at=%s", got[0].QueuedAt)
	}

	info, err := os.Stat(filepath.Join(dir, "queue.json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("queue file mode=%o", info.Mode().Perm())
	}
}

func TestRetain(t *testing.T) {
	commands := []Command{
		{Action: "collect", IdempotencyKey: "ok"},
		{Action: "purchase", IdempotencyKey: "dup"},
		{Action: "withdraw", IdempotencyKey: "fail"},
		{Action: "refund", IdempotencyKey: "missing"},
	}
	results := []game.ReplayResult{
		{IdempotencyKey: "ok", Status: "ok"},
		{IdempotencyKey: "dup", Status: "duplicate"},
		{IdempotencyKey: "fail", Status: "failed", Error: "insufficient funds"},
	}
	left := Retain(commands, results)
	if len(left) != 2 || left[0].IdempotencyKey != "fail" || left[1].IdempotencyKey != "missing" {
		t.Fatalf("unexpected remaining %+v", left)
	}
}
