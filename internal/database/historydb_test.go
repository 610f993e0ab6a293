package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newResult builds a finished crawl result that ended at end.
func newResult(target string, end time.Time, urls ...string) *model.CrawlResult {
	result := model.NewCrawlResult(target, 2)
	result.AllCollectedURLs = append(result.AllCollectedURLs, urls...)
	result.Stats = model.Stats{
		StartTime:          end.Add(-time.Second),
		EndTime:            end,
		DurationMs:         1000,
		TotalURLsScanned:   len(urls) + 1,
		TotalURLsCollected: len(urls),
	}
	return result
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("unexpected error message: %v", err)
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		ctx := context.Background()
		meta, err := db1.SaveResult(ctx, newResult("https://example.com/", time.Now(), "https://example.com/a"))
		if err != nil {
			t.Fatalf("failed to save result: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		if _, err := db2.GetRun(ctx, meta.RunID); err != nil {
			t.Errorf("expected run to persist: %v", err)
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	end := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	result := newResult("https://example.com/", end,
		"https://example.com/",
		"https://example.com/about",
	)
	result.LinkRelationships = append(result.LinkRelationships, model.LinkRelationship{
		Source: "https://example.com/",
		Found:  "https://example.com/about",
	})
	result.Errors = append(result.Errors,
		model.ErrorEntry{URL: "https://example.com/x", ErrorType: model.ErrorTypeFetch, Message: "HTTP 404"},
		model.ErrorEntry{URL: "https://example.com/y", ErrorType: model.ErrorTypeFetch, Message: "HTTP 500"},
	)

	meta, err := db.SaveResult(ctx, result)
	if err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if meta.RunID == "" {
		t.Fatal("expected a run ID")
	}
	if meta.Collected != 2 || meta.Scanned != 3 {
		t.Errorf("unexpected counts: %+v", meta)
	}
	if !meta.ArchivedAt.Equal(end.Truncate(time.Millisecond)) {
		t.Errorf("ArchivedAt = %v, want %v", meta.ArchivedAt, end.Truncate(time.Millisecond))
	}

	run, err := db.GetRun(ctx, meta.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Target != "https://example.com/" {
		t.Errorf("Target = %q", run.Target)
	}
	if !run.ArchivedAt.Equal(meta.ArchivedAt) {
		t.Errorf("ArchivedAt = %v, want %v", run.ArchivedAt, meta.ArchivedAt)
	}
	if run.ErrorSummary[model.ErrorTypeFetch] != 2 {
		t.Errorf("ErrorSummary = %v", run.ErrorSummary)
	}
	if len(run.Result.AllCollectedURLs) != 2 || run.Result.AllCollectedURLs[1] != "https://example.com/about" {
		t.Errorf("collected urls not restored: %v", run.Result.AllCollectedURLs)
	}
	if len(run.Result.LinkRelationships) != 1 || len(run.Result.Errors) != 2 {
		t.Errorf("result not restored: %+v", run.Result)
	}
}

func TestSaveResultNil(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	if _, err := db.SaveResult(context.Background(), nil); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestSaveResultWithoutEndTime(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	fixed := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	db.now = func() time.Time { return fixed }

	meta, err := db.SaveResult(context.Background(), model.NewCrawlResult("https://example.com/", 0))
	if err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if !meta.ArchivedAt.Equal(fixed) {
		t.Errorf("ArchivedAt = %v, want %v", meta.ArchivedAt, fixed)
	}
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns empty list for unknown target", func(t *testing.T) {
		history, err := db.History(ctx, "https://unknown.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected empty history, got %d runs", len(history))
		}
	})

	var ids []string
	for i := range 3 {
		meta, err := db.SaveResult(ctx, newResult("https://a.example/", base.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatalf("failed to save run %d: %v", i, err)
		}
		ids = append(ids, meta.RunID)
	}
	if _, err := db.SaveResult(ctx, newResult("https://b.example/", base)); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	t.Run("newest first for one target", func(t *testing.T) {
		history, err := db.History(ctx, "https://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(history))
		}
		for i, want := range []string{ids[2], ids[1], ids[0]} {
			if history[i].RunID != want {
				t.Errorf("history[%d] = %s, want %s", i, history[i].RunID, want)
			}
		}
	})

	t.Run("empty target lists all runs", func(t *testing.T) {
		history, err := db.History(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 4 {
			t.Errorf("expected 4 runs, got %d", len(history))
		}
	})

	t.Run("latest runs are limited", func(t *testing.T) {
		latest, err := db.LatestRuns(ctx, "https://a.example/", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(latest) != 2 || latest[0].RunID != ids[2] {
			t.Errorf("unexpected latest runs: %+v", latest)
		}

		none, err := db.LatestRuns(ctx, "https://a.example/", 0)
		if err != nil || len(none) != 0 {
			t.Errorf("LatestRuns(0) = %v, %v", none, err)
		}
	})

	t.Run("list targets", func(t *testing.T) {
		targets, err := db.ListTargets(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 2 || targets[0] != "https://a.example/" || targets[1] != "https://b.example/" {
			t.Errorf("ListTargets() = %v", targets)
		}
	})
}

func TestCompare(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	target := "https://example.com/"
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	older, err := db.SaveResult(ctx, newResult(target, base,
		"https://example.com/",
		"https://example.com/old",
		"https://example.com/kept",
	))
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	newer, err := db.SaveResult(ctx, newResult(target, base.Add(time.Hour),
		"https://example.com/",
		"https://example.com/kept",
		"https://example.com/new-b",
		"https://example.com/new-a",
	))
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	t.Run("diff of explicit runs", func(t *testing.T) {
		cmp, err := db.Compare(ctx, older.RunID, newer.RunID)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if !cmp.HasChanges() {
			t.Error("expected changes")
		}
		if len(cmp.Added) != 2 || cmp.Added[0] != "https://example.com/new-b" || cmp.Added[1] != "https://example.com/new-a" {
			t.Errorf("Added = %v", cmp.Added)
		}
		if len(cmp.Removed) != 1 || cmp.Removed[0] != "https://example.com/old" {
			t.Errorf("Removed = %v", cmp.Removed)
		}
		if cmp.Unchanged != 2 {
			t.Errorf("Unchanged = %d, want 2", cmp.Unchanged)
		}
	})

	t.Run("latest two runs", func(t *testing.T) {
		cmp, err := db.CompareLatest(ctx, target)
		if err != nil {
			t.Fatalf("CompareLatest() error = %v", err)
		}
		if cmp.Base.RunID != older.RunID || cmp.Head.RunID != newer.RunID {
			t.Errorf("compared %s..%s", cmp.Base.RunID, cmp.Head.RunID)
		}
	})

	t.Run("run against latest", func(t *testing.T) {
		cmp, err := db.CompareWithLatest(ctx, older.RunID)
		if err != nil {
			t.Fatalf("CompareWithLatest() error = %v", err)
		}
		if cmp.Head.RunID != newer.RunID {
			t.Errorf("Head = %s, want %s", cmp.Head.RunID, newer.RunID)
		}

		_, err = db.CompareWithLatest(ctx, newer.RunID)
		if !errors.Is(err, ErrNotEnoughRuns) {
			t.Errorf("expected ErrNotEnoughRuns, got %v", err)
		}
	})

	t.Run("identical runs have no changes", func(t *testing.T) {
		cmp, err := db.Compare(ctx, newer.RunID, newer.RunID)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if cmp.HasChanges() || cmp.Unchanged != 4 {
			t.Errorf("unexpected comparison: %+v", cmp)
		}
	})

	t.Run("not enough runs", func(t *testing.T) {
		if _, err := db.SaveResult(ctx, newResult("https://single.example/", base)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		_, err := db.CompareLatest(ctx, "https://single.example/")
		if !errors.Is(err, ErrNotEnoughRuns) {
			t.Errorf("expected ErrNotEnoughRuns, got %v", err)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := db.Compare(ctx, "missing", newer.RunID)
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}
