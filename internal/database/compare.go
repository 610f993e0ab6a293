package database

import (
	"context"
	"fmt"
)

// Comparison is the difference between the collected URL sets of two runs.
type Comparison struct {
	// Base is the older run, Head the newer one.
	Base RunMetadata `json:"base"`
	Head RunMetadata `json:"head"`

	// Added lists URLs collected by Head but not by Base.
	Added []string `json:"added"`

	// Removed lists URLs collected by Base but not by Head.
	Removed []string `json:"removed"`

	// Unchanged is the number of URLs collected by both runs.
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether the URL sets differ.
func (c *Comparison) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0
}

// Compare diffs the collected URL sets of two archived runs.
// Added and Removed keep the order in which each run collected the URLs.
func (hdb *HistoryDB) Compare(ctx context.Context, baseRunID, headRunID string) (*Comparison, error) {
	base, err := hdb.metadata(ctx, baseRunID)
	if err != nil {
		return nil, err
	}
	head, err := hdb.metadata(ctx, headRunID)
	if err != nil {
		return nil, err
	}

	added, err := hdb.urlsOnlyIn(ctx, headRunID, baseRunID)
	if err != nil {
		return nil, err
	}
	removed, err := hdb.urlsOnlyIn(ctx, baseRunID, headRunID)
	if err != nil {
		return nil, err
	}

	var unchanged int
	err = hdb.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM run_urls a
	JOIN run_urls b ON a.url = b.url
	WHERE a.run_id = ? AND b.run_id = ?
	`, baseRunID, headRunID).Scan(&unchanged)
	if err != nil {
		return nil, fmt.Errorf("failed to count unchanged urls: %w", err)
	}

	return &Comparison{
		Base:      *base,
		Head:      *head,
		Added:     added,
		Removed:   removed,
		Unchanged: unchanged,
	}, nil
}

// CompareLatest diffs the two most recent archived runs of target.
// It returns ErrNotEnoughRuns when fewer than two runs exist.
func (hdb *HistoryDB) CompareLatest(ctx context.Context, target string) (*Comparison, error) {
	runs, err := hdb.LatestRuns(ctx, target, 2)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrNotEnoughRuns, target, len(runs))
	}
	return hdb.Compare(ctx, runs[1].RunID, runs[0].RunID)
}

// CompareWithLatest diffs the given run against the most recent archived
// run of the same target.
func (hdb *HistoryDB) CompareWithLatest(ctx context.Context, runID string) (*Comparison, error) {
	base, err := hdb.metadata(ctx, runID)
	if err != nil {
		return nil, err
	}
	latest, err := hdb.LatestRuns(ctx, base.Target, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 || latest[0].RunID == runID {
		return nil, fmt.Errorf("%w: %s is the latest run of %s", ErrNotEnoughRuns, runID, base.Target)
	}
	return hdb.Compare(ctx, runID, latest[0].RunID)
}

func (hdb *HistoryDB) metadata(ctx context.Context, runID string) (*RunMetadata, error) {
	run, err := hdb.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &run.RunMetadata, nil
}

// urlsOnlyIn returns the URLs of run a that run b did not collect.
func (hdb *HistoryDB) urlsOnlyIn(ctx context.Context, a, b string) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT url FROM run_urls
	WHERE run_id = ? AND url NOT IN (SELECT url FROM run_urls WHERE run_id = ?)
	ORDER BY position
	`, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to diff runs: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
