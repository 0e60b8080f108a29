// Package journal provides support for recording training runs and their
// per epoch statistics in a SQLite database. It stores statistics only and
// is not a model checkpoint.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed sql/schema.sql
var schemaSQL string

// RunInfo describes the corpus and hyperparameters of one training run.
type RunInfo struct {
	CorpusPath     string  `db:"corpus_path"`
	NumWords       int     `db:"num_words"`
	StreamLength   int     `db:"stream_length"`
	DistinctGrams  int     `db:"distinct_grams"`
	EmbDim         int     `db:"emb_dim"`
	HiddenDim      int     `db:"hidden_dim"`
	SeqLength      int     `db:"seq_length"`
	EpochIter      int     `db:"epoch_iter"`
	TrainIter      int     `db:"train_iter"`
	CurriculumRate float64 `db:"curriculum_rate"`
	DSteps         int     `db:"d_steps"`
	Seed           int64   `db:"seed"`
}

// EpochRecord holds the statistics of one finished epoch.
type EpochRecord struct {
	RunID                uuid.UUID `db:"run_id"`
	Epoch                int       `db:"epoch"`
	FinishedAt           float64   `db:"finished_at"`
	ProportionSupervised float64   `db:"proportion_supervised"`
	DLoss                float64   `db:"d_loss"`
	SupervisedGLoss      float64   `db:"supervised_g_loss"`
	UnsupervisedGLoss    float64   `db:"unsupervised_g_loss"`
	SupervisedCorrect    float64   `db:"supervised_correct"`
	UnsupervisedCorrect  float64   `db:"unsupervised_correct"`
	SupervisedSample     string    `db:"supervised_sample"`
	UnsupervisedSample   string    `db:"unsupervised_sample"`
	ExpectedReward       float64   `db:"expected_reward"`
}

// =============================================================================

// Journal records runs in a SQLite database.
type Journal struct {
	db *sqlx.DB
}

// Open opens or creates the database at path and makes sure the schema
// exists. Use ":memory:" for a database that lives as long as the journal.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err := execute(ctx, db, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun records a new run and returns its id.
func (j *Journal) StartRun(ctx context.Context, info RunInfo) (uuid.UUID, error) {
	id := uuid.New()

	const q = `
	INSERT INTO runs
		(run_id, started_at, corpus_path, num_words, stream_length, distinct_grams,
		 emb_dim, hidden_dim, seq_length, epoch_iter, train_iter, curriculum_rate, d_steps, seed)
	VALUES
		(:run_id, :started_at, :corpus_path, :num_words, :stream_length, :distinct_grams,
		 :emb_dim, :hidden_dim, :seq_length, :epoch_iter, :train_iter, :curriculum_rate, :d_steps, :seed)`

	row := struct {
		RunID     uuid.UUID `db:"run_id"`
		StartedAt float64   `db:"started_at"`
		RunInfo
	}{
		RunID:     id,
		StartedAt: unixSeconds(time.Now()),
		RunInfo:   info,
	}

	if _, err := j.db.NamedExecContext(ctx, q, row); err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	return id, nil
}

// RecordEpoch stores the statistics of one epoch. FinishedAt is set to the
// current time when left at zero.
func (j *Journal) RecordEpoch(ctx context.Context, rec EpochRecord) error {
	if rec.FinishedAt == 0 {
		rec.FinishedAt = unixSeconds(time.Now())
	}

	const q = `
	INSERT INTO epochs
		(run_id, epoch, finished_at, proportion_supervised, d_loss, supervised_g_loss,
		 unsupervised_g_loss, supervised_correct, unsupervised_correct,
		 supervised_sample, unsupervised_sample, expected_reward)
	VALUES
		(:run_id, :epoch, :finished_at, :proportion_supervised, :d_loss, :supervised_g_loss,
		 :unsupervised_g_loss, :supervised_correct, :unsupervised_correct,
		 :supervised_sample, :unsupervised_sample, :expected_reward)`

	if _, err := j.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("insert epoch: %w", err)
	}

	return nil
}

// Epochs returns the recorded epochs of a run in epoch order.
func (j *Journal) Epochs(ctx context.Context, runID uuid.UUID) ([]EpochRecord, error) {
	const q = `
	SELECT
		run_id, epoch, finished_at, proportion_supervised, d_loss, supervised_g_loss,
		unsupervised_g_loss, supervised_correct, unsupervised_correct,
		supervised_sample, unsupervised_sample, expected_reward
	FROM
		epochs
	WHERE
		run_id = ?
	ORDER BY
		epoch`

	var recs []EpochRecord
	if err := j.db.SelectContext(ctx, &recs, q, runID); err != nil {
		return nil, fmt.Errorf("select epochs: %w", err)
	}

	return recs, nil
}

// =============================================================================

func execute(ctx context.Context, db *sqlx.DB, query string) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if errTx := tx.Rollback(); errTx != nil {
			if errors.Is(errTx, sql.ErrTxDone) {
				return
			}

			err = fmt.Errorf("rollback: %w", errTx)
		}
	}()

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}
