// ABOUTME: Run persistence: create, finish and query runs with their transcripts
// ABOUTME: A finished run's messages replace whatever was stored before
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harper/ace-pipeline/internal/models"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps ListRuns when no limit is given
const DefaultListLimit = 20

// CreateRun records a new running run for task, seeded with the task message
func (s *Store) CreateRun(ctx context.Context, task string, seed []models.Message) (*models.Run, error) {
	run := &models.Run{
		RunID:     "run_" + uuid.New().String(),
		Task:      task,
		Status:    models.RunStatusRunning,
		Messages:  seed,
		CreatedAt: time.Now().UTC(),
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, task, status, created_at) VALUES (?, ?, ?, ?)
		`, run.RunID, run.Task, string(run.Status), run.CreatedAt); err != nil {
			return err
		}
		return insertMessages(ctx, tx, run.RunID, seed)
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run completed and stores its final transcript
func (s *Store) CompleteRun(ctx context.Context, runID string, steps []string, messages []models.Message) error {
	return s.finish(ctx, runID, models.RunStatusCompleted, steps, messages, "")
}

// FailRun marks a run failed with cause and stores the partial transcript
func (s *Store) FailRun(ctx context.Context, runID string, steps []string, messages []models.Message, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return s.finish(ctx, runID, models.RunStatusFailed, steps, messages, reason)
}

func (s *Store) finish(ctx context.Context, runID string, status models.RunStatus, steps []string, messages []models.Message, reason string) error {
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET status = ?, steps = ?, error = ?, finished_at = ? WHERE id = ?
		`, string(status), string(stepsJSON), reason, time.Now().UTC(), runID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrRunNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE run_id = ?`, runID); err != nil {
			return err
		}
		return insertMessages(ctx, tx, runID, messages)
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// GetRun loads a run and its transcript
func (s *Store) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, task, status, steps, error, created_at, finished_at
		FROM runs WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, author, content, created_at
		FROM messages WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			msg    models.Message
			author sql.NullString
		)
		if err := rows.Scan(&msg.ID, &author, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Author = author.String
		run.Messages = append(run.Messages, msg)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs without their transcripts
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, task, status, steps, error, created_at, finished_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.Run, error) {
	var (
		run       models.Run
		status    string
		stepsJSON sql.NullString
		reason    sql.NullString
		finished  sql.NullTime
	)
	if err := sc.Scan(&run.RunID, &run.Task, &status, &stepsJSON, &reason, &run.CreatedAt, &finished); err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	run.Error = reason.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if stepsJSON.Valid && stepsJSON.String != "" {
		if err := json.Unmarshal([]byte(stepsJSON.String), &run.Steps); err != nil {
			run.Steps = nil
		}
	}
	return &run, nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, runID string, messages []models.Message) error {
	for i, m := range messages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, run_id, seq, author, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.ID, runID, i, m.Author, m.Content, m.CreatedAt.UTC()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
