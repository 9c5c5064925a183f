package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ShayCichocki/analyst/internal/pipeline"
)

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")
	db, err := Open(filepath.Join(nested, "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d failed: %v", i+1, err)
		}
		db.Close()
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/proc/nonexistent/history.db"); err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestRecordAndGet(t *testing.T) {
	db := setupTestDB(t)

	want := Run{
		ID:         "run-1",
		Question:   "Which product sold the most units?",
		Query:      "SELECT product_id FROM sales;",
		Outcome:    "failed",
		Failure:    "query execution failed: connection refused",
		RetryCount: 3,
		Steps:      6,
		Trace:      []string{"translating", "executing", "translating", "executing"},
		StartedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Duration:   1500 * time.Millisecond,
	}
	if err := db.Record(want); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := db.Get("run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestFind(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	for _, id := range []string{"3f2a9c10-aaaa", "3f2a9c10-bbbb", "7b1e0d44-cccc"} {
		if err := db.Record(Run{ID: id, Question: "q", Outcome: "succeeded", StartedAt: now}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr error
	}{
		{"exact", "3f2a9c10-aaaa", "3f2a9c10-aaaa", nil},
		{"unique prefix", "7b1e", "7b1e0d44-cccc", nil},
		{"ambiguous prefix", "3f2a9c10", "", ErrAmbiguousID},
		{"no match", "ffff", "", ErrNotFound},
		{"wildcard rejected", "%", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Find(tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Find(%q) error = %v, want %v", tt.id, err, tt.wantErr)
			}
			if tt.wantErr == nil && got.ID != tt.want {
				t.Errorf("Find(%q).ID = %q, want %q", tt.id, got.ID, tt.want)
			}
		})
	}
}

func TestRecent(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"succeeded", "failed", "succeeded"} {
		run := Run{
			ID:        string(rune('a' + i)),
			Question:  "q",
			Outcome:   outcome,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Record(run); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	all, err := db.Recent(10, false)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, ids); diff != "" {
		t.Errorf("Recent order mismatch (-want +got):\n%s", diff)
	}

	failed, err := db.Recent(10, true)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" {
		t.Errorf("failed runs = %+v, want only b", failed)
	}

	limited, err := db.Recent(2, false)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(Recent(2)) = %d, want 2", len(limited))
	}
}

func TestPurge(t *testing.T) {
	db := setupTestDB(t)

	old := Run{ID: "old", Question: "q", Outcome: "succeeded", StartedAt: time.Now().Add(-48 * time.Hour)}
	fresh := Run{ID: "fresh", Question: "q", Outcome: "succeeded", StartedAt: time.Now()}
	for _, r := range []Run{old, fresh} {
		if err := db.Record(r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	n, err := db.Purge(24 * time.Hour)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	if _, err := db.Get("fresh"); err != nil {
		t.Errorf("fresh run should survive purge: %v", err)
	}
}

func TestFromReport(t *testing.T) {
	cause := errors.New("query execution failed: connection refused")
	report := &pipeline.Report{
		ID: "run-9",
		State: pipeline.State{
			Question:       "total revenue",
			GeneratedQuery: "SELECT SUM(quantity * unit_price) FROM sales;",
			Failure:        cause,
			RetryCount:     3,
		},
		Trace:   []pipeline.Stage{pipeline.StageTranslating, pipeline.StageExecuting},
		Steps:   2,
		Outcome: pipeline.StageFailed,
	}
	err := &pipeline.TerminalFailure{Message: pipeline.RetriesExhaustedMessage, Cause: cause, StepLimitReached: true}

	run := FromReport(report, err)

	if run.Outcome != "failed" {
		t.Errorf("Outcome = %q, want failed", run.Outcome)
	}
	if run.Failure != cause.Error() {
		t.Errorf("Failure = %q, want %q", run.Failure, cause.Error())
	}
	if !run.StepLimit {
		t.Error("StepLimit should be set from the terminal failure")
	}
	if diff := cmp.Diff([]string{"translating", "executing"}, run.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if run.Succeeded() {
		t.Error("failed run should not report success")
	}
}

func TestGet_StartedAtRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name string
		at   time.Time
	}{
		{"whole second", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"trailing zeros", time.Date(2025, 3, 1, 10, 0, 53, 520078960, time.UTC)},
		{"full nanoseconds", time.Date(2025, 3, 1, 10, 0, 53, 123456789, time.UTC)},
		{"millisecond", time.Date(2025, 3, 1, 10, 0, 53, 500000000, time.UTC)},
		{"local zone", time.Date(2025, 3, 1, 10, 0, 0, 100, time.FixedZone("CET", 3600))},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := fmt.Sprintf("run-%d", i)
			if err := db.Record(Run{ID: id, Question: "q", Outcome: "succeeded", StartedAt: tt.at}); err != nil {
				t.Fatalf("Record failed: %v", err)
			}
			got, err := db.Get(id)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !got.StartedAt.Equal(tt.at) {
				t.Errorf("StartedAt = %v, want %v", got.StartedAt, tt.at)
			}
		})
	}

	runs, err := db.Recent(10, false)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != len(tests) {
		t.Errorf("Recent returned %d runs, want %d", len(runs), len(tests))
	}
}
