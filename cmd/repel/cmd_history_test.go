package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/repel/internal/record"
)

// seedHistoryDB writes one finished run into a fresh database.
func seedHistoryDB(t *testing.T, path string) string {
	t.Helper()
	ctx := context.Background()

	rec, err := record.Open(path)
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	defer rec.Close()

	runID, err := rec.BeginRun(ctx, record.RunInfo{
		Circles: 5, Iterations: 2, Backend: "threads(1)", Seed: 9,
	})
	if err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := rec.RecordIteration(ctx, runID, 1, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("record iteration 1: %v", err)
	}
	if err := rec.RecordIteration(ctx, runID, 2, 1, 12*time.Millisecond); err != nil {
		t.Fatalf("record iteration 2: %v", err)
	}
	if err := rec.FinishRun(ctx, runID, 4, 22*time.Millisecond); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	return runID
}

func TestHistory_Empty(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	stdout, _, err := execRoot(t, "history", "--db", db)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout, "No recorded runs yet") {
		t.Errorf("output = %q, want empty-history notice", stdout)
	}
}

func TestHistory_ListAndShow(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	runID := seedHistoryDB(t, db)

	stdout, _, err := execRoot(t, "history", "--db", db)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout, runID) {
		t.Errorf("listing missing run %s:\n%s", runID, stdout)
	}
	if !strings.Contains(stdout, "Circles:  5, iterations: 2, backend: threads(1), seed: 9") {
		t.Errorf("listing missing run settings:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Overlaps: 4 total in 0.022000 s") {
		t.Errorf("listing missing totals:\n%s", stdout)
	}

	stdout, _, err = execRoot(t, "history", "show", runID, "--db", db)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(stdout, "Iteration 1: 3 overlaps (0.010000 s)") {
		t.Errorf("show missing iteration 1:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Iteration 2: 1 overlaps (0.012000 s)") {
		t.Errorf("show missing iteration 2:\n%s", stdout)
	}
}

func TestHistory_ShowUnknownRun(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	seedHistoryDB(t, db)

	stdout, _, err := execRoot(t, "history", "show", "r-missing", "--db", db)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(stdout, "No iterations recorded") {
		t.Errorf("output = %q, want missing-run notice", stdout)
	}
}

func TestHistory_JSON(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	runID := seedHistoryDB(t, db)

	stdout, _, err := execRoot(t, "history", "--json", "--db", db)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}

	var runs []record.Run
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("decode JSON: %v\n%s", err, stdout)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].ID != runID {
		t.Errorf("run ID = %s, want %s", runs[0].ID, runID)
	}
	if !runs[0].Finished {
		t.Error("run should be finished")
	}
}

func TestRun_RecordsHistory(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	if _, _, err := execRoot(t, "--record", db, "20", "2"); err != nil {
		t.Fatalf("run: %v", err)
	}

	ctx := context.Background()
	rec, err := record.Open(db)
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	defer rec.Close()

	runs, err := rec.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d recorded runs, want 1", len(runs))
	}
	r := runs[0]
	if r.Circles != 20 || r.Iterations != 2 {
		t.Errorf("run = %d circles, %d iterations, want 20 and 2", r.Circles, r.Iterations)
	}
	if !r.Finished {
		t.Error("run not marked finished")
	}

	stats, err := rec.Iterations(ctx, r.ID)
	if err != nil {
		t.Fatalf("iterations: %v", err)
	}
	if len(stats) != 2 {
		t.Errorf("got %d iteration rows, want 2", len(stats))
	}
}
