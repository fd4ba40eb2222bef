package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mitralabs/coco/internal/ledger"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecall(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	correlation := uuid.NewString()

	attempts := []ledger.Attempt{
		{CorrelationID: correlation, BootSession: 3, FilePath: "/rec/a.wav", Bytes: 10240, Outcome: ledger.OutcomeSuccess},
		{CorrelationID: correlation, BootSession: 3, FilePath: "/rec/b.wav", Bytes: 8192, Outcome: ledger.OutcomeFailure, Detail: "backend returned 500"},
	}
	for _, a := range attempts {
		if err := store.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}

	recent, err := store.RecentAttempts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(recent))
	}
	// Newest first.
	if recent[0].FilePath != "/rec/b.wav" || recent[0].Outcome != ledger.OutcomeFailure {
		t.Fatalf("unexpected newest attempt: %+v", recent[0])
	}
	if recent[0].Detail != "backend returned 500" {
		t.Fatalf("detail not preserved: %q", recent[0].Detail)
	}
	if recent[1].CorrelationID != correlation {
		t.Fatalf("correlation id not preserved: %q", recent[1].CorrelationID)
	}
	if recent[0].AttemptedAt.IsZero() {
		t.Fatal("attempted_at was not populated")
	}
}

func TestRecentAttemptsHonorsLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.RecordAttempt(ctx, ledger.Attempt{
			CorrelationID: uuid.NewString(),
			FilePath:      "/rec/x.wav",
			Outcome:       ledger.OutcomeSuccess,
			AttemptedAt:   time.Now(),
		})
		if err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}

	recent, err := store.RecentAttempts(ctx, 3)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(recent))
	}
}

func TestStatsCountsByOutcome(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	outcomes := []string{
		ledger.OutcomeSuccess, ledger.OutcomeSuccess, ledger.OutcomeFailure,
	}
	for _, outcome := range outcomes {
		err := store.RecordAttempt(ctx, ledger.Attempt{
			CorrelationID: uuid.NewString(),
			FilePath:      "/rec/x.wav",
			Outcome:       outcome,
		})
		if err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Successes != 2 || stats.Failures != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := store.RecordAttempt(context.Background(), ledger.Attempt{
		CorrelationID: uuid.NewString(),
		FilePath:      "/rec/a.wav",
		Outcome:       ledger.OutcomeSuccess,
	}); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	store.Close()

	reopened, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	stats, err := reopened.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected persisted attempt, got %+v", stats)
	}
}
