// Package sqlite keeps an audit ledger of triage runs and per-review
// outcomes. The pipeline never reads it back.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"reviewbot/internal/domain"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS triage_runs (
		id                TEXT PRIMARY KEY,
		source            TEXT NOT NULL,
		parameter         TEXT DEFAULT '',
		requested_count   INTEGER NOT NULL DEFAULT 0,
		fetched           INTEGER NOT NULL DEFAULT 0,
		spam              INTEGER NOT NULL DEFAULT 0,
		nsfw              INTEGER NOT NULL DEFAULT 0,
		ai_generated      INTEGER NOT NULL DEFAULT 0,
		duplicates        INTEGER NOT NULL DEFAULT 0,
		unclassified      INTEGER NOT NULL DEFAULT 0,
		bugs              INTEGER NOT NULL DEFAULT 0,
		feature_requests  INTEGER NOT NULL DEFAULT 0,
		questions         INTEGER NOT NULL DEFAULT 0,
		feedback          INTEGER NOT NULL DEFAULT 0,
		tickets_created   INTEGER NOT NULL DEFAULT 0,
		average_sentiment REAL NOT NULL DEFAULT 0,
		sentiment_samples INTEGER NOT NULL DEFAULT 0,
		cancelled         INTEGER NOT NULL DEFAULT 0,
		started_at        DATETIME NOT NULL,
		finished_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_triage_runs_started_at ON triage_runs(started_at);

	CREATE TABLE IF NOT EXISTS review_outcomes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		review_id   TEXT NOT NULL,
		review_url  TEXT DEFAULT '',
		source      TEXT NOT NULL,
		category    TEXT DEFAULT '',
		outcome     TEXT NOT NULL,
		ticket_id   TEXT DEFAULT '',
		severity    TEXT DEFAULT '',
		sentiment   REAL NOT NULL DEFAULT 0,
		summary     TEXT DEFAULT '',
		recorded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_review_outcomes_run ON review_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_review_outcomes_recorded_at ON review_outcomes(recorded_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

// Ledger records finished runs.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordRun writes the run row and its outcomes in one transaction.
func (l *Ledger) RecordRun(ctx context.Context, run domain.RunRecord, outcomes []domain.OutcomeRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO triage_runs (id, source, parameter, requested_count, fetched, spam, nsfw, ai_generated,
		   duplicates, unclassified, bugs, feature_requests, questions, feedback, tickets_created,
		   average_sentiment, sentiment_samples, cancelled, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Parameter, run.RequestedCount, run.Fetched, run.Spam, run.NSFW, run.AIGenerated,
		run.Duplicates, run.Unclassified, run.Bugs, run.FeatureRequests, run.Questions, run.Feedback, run.TicketsCreated,
		run.AverageSentiment, run.SentimentSamples, run.Cancelled, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	if _, err := insertOutcomes(ctx, tx, outcomes); err != nil {
		return err
	}
	return tx.Commit()
}

func insertOutcomes(ctx context.Context, tx *sql.Tx, outcomes []domain.OutcomeRecord) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO review_outcomes (run_id, review_id, review_url, source, category, outcome, ticket_id, severity, sentiment, summary, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, o := range outcomes {
		_, err := stmt.ExecContext(ctx,
			o.RunID, o.ReviewID, o.ReviewURL, o.Source, o.Category, o.Outcome,
			o.TicketID, o.Severity, o.Sentiment, o.Summary, o.RecordedAt.UTC(),
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting outcome for review %s: %w", o.ReviewID, err)
		}
		inserted++
	}
	return inserted, nil
}

func GetRecentRuns(db *sql.DB, limit int) ([]domain.RunRecord, error) {
	rows, err := db.Query(
		`SELECT id, source, parameter, requested_count, fetched, spam, nsfw, ai_generated,
		        duplicates, unclassified, bugs, feature_requests, questions, feedback, tickets_created,
		        average_sentiment, sentiment_samples, cancelled, started_at, finished_at
		 FROM triage_runs
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var r domain.RunRecord
		var source string
		if err := rows.Scan(&r.ID, &source, &r.Parameter, &r.RequestedCount, &r.Fetched, &r.Spam, &r.NSFW, &r.AIGenerated,
			&r.Duplicates, &r.Unclassified, &r.Bugs, &r.FeatureRequests, &r.Questions, &r.Feedback, &r.TicketsCreated,
			&r.AverageSentiment, &r.SentimentSamples, &r.Cancelled, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Source = domain.Source(source)
		out = append(out, r)
	}
	return out, rows.Err()
}

func GetRunOutcomes(db *sql.DB, runID string) ([]domain.OutcomeRecord, error) {
	rows, err := db.Query(
		`SELECT run_id, review_id, review_url, source, category, outcome, ticket_id, severity, sentiment, summary, recorded_at
		 FROM review_outcomes WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutcomeRecord
	for rows.Next() {
		var o domain.OutcomeRecord
		var source, category, outcome, severity string
		if err := rows.Scan(&o.RunID, &o.ReviewID, &o.ReviewURL, &source, &category, &outcome,
			&o.TicketID, &severity, &o.Sentiment, &o.Summary, &o.RecordedAt); err != nil {
			return nil, err
		}
		o.Source = domain.Source(source)
		o.Category = domain.Category(category)
		o.Outcome = domain.Outcome(outcome)
		o.Severity = domain.Severity(severity)
		out = append(out, o)
	}
	return out, rows.Err()
}

// OutcomeStats totals runs and outcomes since a point in time.
type OutcomeStats struct {
	Runs     int
	Reviews  int
	Tickets  int
	Outcomes map[domain.Outcome]int
}

func GetOutcomeStats(db *sql.DB, since time.Time) (OutcomeStats, error) {
	s := OutcomeStats{Outcomes: make(map[domain.Outcome]int)}
	since = since.UTC()
	err := db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(fetched), 0), COALESCE(SUM(tickets_created), 0)
		 FROM triage_runs WHERE started_at >= ?`,
		since,
	).Scan(&s.Runs, &s.Reviews, &s.Tickets)
	if err != nil {
		return s, err
	}

	rows, err := db.Query(
		`SELECT outcome, COUNT(*) FROM review_outcomes WHERE recorded_at >= ? GROUP BY outcome`,
		since,
	)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return s, err
		}
		s.Outcomes[domain.Outcome(outcome)] = n
	}
	return s, rows.Err()
}
