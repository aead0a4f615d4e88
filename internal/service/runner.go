// ABOUTME: Runner executes one pipeline run per task and persists the outcome
// ABOUTME: Shared by the CLI, HTTP and MCP transports
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/supervisor"
)

// ErrEmptyTask is returned when a run is requested with no message
var ErrEmptyTask = errors.New("task message is required")

// Pipeline runs a seeded state to termination
type Pipeline interface {
	Run(ctx context.Context, state *supervisor.State) (*supervisor.Result, error)
}

// RunStore persists run records
type RunStore interface {
	CreateRun(ctx context.Context, task string, seed []models.Message) (*models.Run, error)
	CompleteRun(ctx context.Context, runID string, steps []string, messages []models.Message) error
	FailRun(ctx context.Context, runID string, steps []string, messages []models.Message, cause error) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
}

// Outcome is the result of one run as seen by callers
type Outcome struct {
	Run       *models.Run
	Completed bool
	Rerouted  int
}

// Runner holds no per-run state; concurrent Run calls are independent
type Runner struct {
	pipeline Pipeline
	store    RunStore
}

// NewRunner creates a runner. store may be nil, in which case runs are not persisted.
func NewRunner(pipeline Pipeline, store RunStore) *Runner {
	return &Runner{pipeline: pipeline, store: store}
}

// Run seeds a fresh conversation with task, runs the pipeline and records
// the transcript. A failed run is still recorded and its error returned.
func (r *Runner) Run(ctx context.Context, task string) (*Outcome, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	seed := models.NewUserMessage(task)
	run := &models.Run{Task: task, Status: models.RunStatusRunning, Messages: []models.Message{seed}, CreatedAt: seed.CreatedAt}
	if r.store != nil {
		created, err := r.store.CreateRun(ctx, task, run.Messages)
		if err != nil {
			return nil, err
		}
		run = created
	}

	log := logger.FromContext(ctx).With("run_id", run.RunID)
	ctx = logger.ContextWithLogger(ctx, log)
	log.Info("run started")

	state := supervisor.NewState(seed)
	res, err := r.pipeline.Run(ctx, state)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		run.Messages = state.Messages()
		run.Steps = workerSteps(run.Messages)
		log.Error("run failed", "err", err)
		if r.store != nil {
			// the caller's context may already be cancelled
			if ferr := r.store.FailRun(context.WithoutCancel(ctx), run.RunID, run.Steps, run.Messages, err); ferr != nil {
				log.Error("failed to record run failure", "err", ferr)
			}
		}
		return &Outcome{Run: run}, err
	}

	steps := make([]string, len(res.Steps))
	for i, s := range res.Steps {
		steps[i] = string(s)
	}
	run.Status = models.RunStatusCompleted
	run.Steps = steps
	run.Messages = res.State.Messages()

	if r.store != nil {
		// the run finished; record it even if the caller has gone away
		if err := r.store.CompleteRun(context.WithoutCancel(ctx), run.RunID, steps, run.Messages); err != nil {
			return &Outcome{Run: run, Completed: res.Completed, Rerouted: res.Rerouted}, fmt.Errorf("record run: %w", err)
		}
	}

	log.Info("run finished", "steps", len(steps), "completed", res.Completed, "rerouted", res.Rerouted)
	return &Outcome{Run: run, Completed: res.Completed, Rerouted: res.Rerouted}, nil
}

// Get returns a stored run
func (r *Runner) Get(ctx context.Context, runID string) (*models.Run, error) {
	if r.store == nil {
		return nil, errors.New("run store not configured")
	}
	return r.store.GetRun(ctx, runID)
}

// List returns recent stored runs
func (r *Runner) List(ctx context.Context, limit int) ([]models.Run, error) {
	if r.store == nil {
		return nil, errors.New("run store not configured")
	}
	return r.store.ListRuns(ctx, limit)
}

// workerSteps lists the authors of worker replies in a transcript
func workerSteps(messages []models.Message) []string {
	var steps []string
	for _, m := range messages {
		if m.Author != "" && m.Author != models.AuthorUser {
			steps = append(steps, m.Author)
		}
	}
	return steps
}
