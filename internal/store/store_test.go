package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"zathurabot/internal/domain"
)

func testStoreLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openTestLog(t *testing.T) *SQLiteLog {
	t.Helper()
	log, err := NewSQLiteLog(filepath.Join(t.TempDir(), "deliveries.db"), testStoreLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestRecordAndRecent(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	recs := []domain.DeliveryRecord{
		{ChatID: 1, Action: "generate_text", Outcome: "delivered", LatencyMs: 120, CreatedAt: base},
		{ChatID: 2, Action: "generate_image", Outcome: "failed", LatencyMs: 800, CreatedAt: base.Add(time.Second)},
		{ChatID: 3, Action: "ignore", Outcome: "ignored", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range recs {
		if err := log.RecordDelivery(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := log.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	// Most recent first.
	if got[0].ChatID != 3 || got[2].ChatID != 1 {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[2].Action != "generate_text" || got[2].Outcome != "delivered" || got[2].LatencyMs != 120 {
		t.Errorf("record mangled: %+v", got[2])
	}
}

func TestRecentDeliveries_Limit(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := log.RecordDelivery(ctx, domain.DeliveryRecord{ChatID: int64(i), Action: "welcome", Outcome: "delivered"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := log.RecentDeliveries(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}

func TestRecordDelivery_DefaultTimestamp(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	if err := log.RecordDelivery(ctx, domain.DeliveryRecord{ChatID: 1, Action: "welcome", Outcome: "delivered"}); err != nil {
		t.Fatal(err)
	}
	got, err := log.RecentDeliveries(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].CreatedAt.IsZero() {
		t.Errorf("timestamp should be set: %+v", got)
	}
}
