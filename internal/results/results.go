// Package results archives the outcome of finished matches. Only the
// summary row is kept; live match state never leaves the match store.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Outcome struct {
	Code        string
	Difficulty  string
	Mode        string
	WinnerID    string
	WinnerName  string
	WinnerWords int
	LoserID     string
	LoserName   string
	LoserWords  int
	Duration    time.Duration
	FinishedAt  time.Time
}

type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Nop discards outcomes. Used when no archive is configured.
type Nop struct{}

func (Nop) Record(context.Context, Outcome) error { return nil }

type MySQLRecorder struct {
	db *sql.DB
}

func NewMySQLRecorder(db *sql.DB) *MySQLRecorder {
	return &MySQLRecorder{db: db}
}

func (r *MySQLRecorder) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS match_results (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		code CHAR(4) NOT NULL,
		difficulty VARCHAR(16) NOT NULL,
		mode VARCHAR(16) NOT NULL,
		winner_id VARCHAR(64),
		winner_name VARCHAR(255),
		winner_words INT NOT NULL DEFAULT 0,
		loser_id VARCHAR(64) NOT NULL,
		loser_name VARCHAR(255) NOT NULL,
		loser_words INT NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		INDEX idx_finished_at (finished_at)
	) ENGINE=InnoDB`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create match_results: %w", err)
	}
	return nil
}

func (r *MySQLRecorder) Record(ctx context.Context, o Outcome) error {
	query := `INSERT INTO match_results
		(code, difficulty, mode, winner_id, winner_name, winner_words, loser_id, loser_name, loser_words, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		o.Code, o.Difficulty, o.Mode,
		nullable(o.WinnerID), nullable(o.WinnerName), o.WinnerWords,
		o.LoserID, o.LoserName, o.LoserWords,
		o.Duration.Milliseconds(), o.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result for %s: %w", o.Code, err)
	}
	return nil
}

func (r *MySQLRecorder) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// nullable maps "" to NULL; practice matches have no winner.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
