package journal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"
)

// runConformance exercises the Store contract shared by every backend.
func runConformance(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("load unknown run", func(t *testing.T) {
		if _, err := store.LoadRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("LoadRun(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("append and load", func(t *testing.T) {
		records := []Record{
			{Seq: 1, At: time.Now().UTC(), Kind: KindTransition, State: "__start__", Detail: mustDetail(t, TransitionDetail{From: "__start__", To: "ask"})},
			{Seq: 2, At: time.Now().UTC(), Kind: KindInstruction, State: "ask", Op: "request_input", Detail: json.RawMessage(`{"instruction":"request_input","query":"name?"}`)},
			{Seq: 3, At: time.Now().UTC(), Kind: KindInstruction, State: "ask", Op: "notify", Detail: json.RawMessage(`{"instruction":"notify","message":"hi"}`)},
		}
		for _, rec := range records {
			if err := store.Append(ctx, "run-1", rec); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		got, err := store.LoadRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("LoadRun: %v", err)
		}
		if len(got) != len(records) {
			t.Fatalf("records = %d, want %d", len(got), len(records))
		}
		for i, rec := range got {
			if rec.Seq != records[i].Seq {
				t.Errorf("record[%d].Seq = %d, want %d", i, rec.Seq, records[i].Seq)
			}
			if rec.Kind != records[i].Kind {
				t.Errorf("record[%d].Kind = %q, want %q", i, rec.Kind, records[i].Kind)
			}
			if rec.Op != records[i].Op {
				t.Errorf("record[%d].Op = %q, want %q", i, rec.Op, records[i].Op)
			}
		}

		var detail TransitionDetail
		if err := json.Unmarshal(got[0].Detail, &detail); err != nil {
			t.Fatalf("transition detail: %v", err)
		}
		if detail.To != "ask" {
			t.Errorf("detail = %+v", detail)
		}
	})

	t.Run("runs are listed most recent first", func(t *testing.T) {
		if err := store.Append(ctx, "run-2", Record{Seq: 1, At: time.Now().UTC(), Kind: KindTransition, State: "__start__"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		runs, err := store.Runs(ctx)
		if err != nil {
			t.Fatalf("Runs: %v", err)
		}
		if len(runs) < 2 {
			t.Fatalf("runs = %v, want at least run-1 and run-2", runs)
		}
		if runs[0] != "run-2" {
			t.Errorf("runs[0] = %q, want %q (most recent first)", runs[0], "run-2")
		}
	})
}

func mustDetail(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal detail: %v", err)
	}
	return data
}

func TestMemJournal(t *testing.T) {
	runConformance(t, NewMemJournal())
}

func TestSQLiteJournal(t *testing.T) {
	store, err := NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	defer func() { _ = store.Close() }()
	runConformance(t, store)
}

func TestSQLiteJournal_File(t *testing.T) {
	path := t.TempDir() + "/journal.db"
	store, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	if err := store.Append(context.Background(), "run-f", Record{Seq: 1, At: time.Now().UTC(), Kind: KindTransition, State: "__start__"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The transcript survives reopening.
	reopened, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	records, err := reopened.LoadRun(context.Background(), "run-f")
	if err != nil {
		t.Fatalf("LoadRun after reopen: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestSQLiteJournal_AppendAfterClose(t *testing.T) {
	store, err := NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	_ = store.Close()
	if err := store.Append(context.Background(), "r", Record{Seq: 1, At: time.Now().UTC(), Kind: KindTransition}); err == nil {
		t.Error("Append after Close succeeded")
	}
}

// TestMySQLJournal runs against a real server only when
// WORKFLOW_MYSQL_TEST_DSN is set; it is skipped otherwise.
func TestMySQLJournal(t *testing.T) {
	dsn := os.Getenv("WORKFLOW_MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("WORKFLOW_MYSQL_TEST_DSN not set")
	}
	store, err := NewMySQLJournal(dsn)
	if err != nil {
		t.Fatalf("NewMySQLJournal: %v", err)
	}
	defer func() { _ = store.Close() }()
	runConformance(t, store)
}
