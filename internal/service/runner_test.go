// ABOUTME: Tests for the run service
// ABOUTME: Runs a real graph against an in-memory store
package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/store"
	"github.com/harper/ace-pipeline/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// sequencePipeline routes through the workers in order and then finishes,
// deciding from the number of worker replies already in history
func sequencePipeline(t *testing.T, failOn supervisor.WorkerName) *supervisor.Coordinator {
	t.Helper()
	order := supervisor.DefaultOrder()
	decide := supervisor.DecisionFunc(func(_ context.Context, _ string, history []models.Message, _ []string) (string, error) {
		done := len(history) - 1
		if done >= len(order) {
			return supervisor.FinishOption, nil
		}
		return string(order[done]), nil
	})

	router, err := supervisor.NewRouter(decide, order)
	require.NoError(t, err)

	g := supervisor.NewGraph(router).SetEntry(supervisor.SupervisorNode)
	for _, name := range order {
		name := name
		g.AddWorker(name, supervisor.GeneratorFunc(func(context.Context, []models.Message) (string, error) {
			if name == failOn {
				return "", errors.New("model unavailable")
			}
			return "reply from " + string(name), nil
		}))
	}
	coord, err := g.Compile()
	require.NoError(t, err)
	return coord
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunPersistsCompletedRun(t *testing.T) {
	st := newStore(t)
	r := NewRunner(sequencePipeline(t, ""), st)

	out, err := r.Run(context.Background(), "  Compare sales for 2023 and 2024 ")
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, models.RunStatusCompleted, out.Run.Status)
	assert.Equal(t, "Compare sales for 2023 and 2024", out.Run.Task)
	assert.Equal(t, []string{"generator", "reflector", "curator"}, out.Run.Steps)

	stored, err := r.Get(context.Background(), out.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	require.Len(t, stored.Messages, 4)
	assert.Equal(t, "reply from curator", stored.Messages[3].Content)
}

func TestRunRecordsFailure(t *testing.T) {
	st := newStore(t)
	r := NewRunner(sequencePipeline(t, supervisor.WorkerReflector), st)

	out, err := r.Run(context.Background(), "task")
	require.Error(t, err)
	assert.ErrorIs(t, err, supervisor.ErrWorkerFailed)
	require.NotNil(t, out)
	assert.Equal(t, models.RunStatusFailed, out.Run.Status)

	stored, err := r.Get(context.Background(), out.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "model unavailable")
	assert.Equal(t, []string{"generator"}, stored.Steps)
	assert.Len(t, stored.Messages, 2)
}

func TestRunRejectsEmptyTask(t *testing.T) {
	r := NewRunner(sequencePipeline(t, ""), nil)
	_, err := r.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyTask)
}

func TestRunWithoutStore(t *testing.T) {
	r := NewRunner(sequencePipeline(t, ""), nil)
	out, err := r.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Len(t, out.Run.Messages, 4)

	_, err = r.Get(context.Background(), "x")
	assert.Error(t, err)
	_, err = r.List(context.Background(), 5)
	assert.Error(t, err)
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	st := newStore(t)
	r := NewRunner(sequencePipeline(t, ""), st)

	var wg sync.WaitGroup
	outs := make([]*Outcome, 4)
	errs := make([]error, 4)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = r.Run(context.Background(), "task")
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range outs {
		require.NoError(t, errs[i])
		assert.Len(t, outs[i].Run.Messages, 4)
		seen[outs[i].Run.RunID] = true
	}
	assert.Len(t, seen, 4)

	runs, err := r.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 4)
}

// cancelAfterRun cancels the caller's context once the pipeline has finished
type cancelAfterRun struct {
	Pipeline
	cancel context.CancelFunc
}

func (c cancelAfterRun) Run(ctx context.Context, state *supervisor.State) (*supervisor.Result, error) {
	res, err := c.Pipeline.Run(ctx, state)
	c.cancel()
	return res, err
}

func TestRunRecordsCompletionAfterCallerCancels(t *testing.T) {
	st := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRunner(cancelAfterRun{Pipeline: sequencePipeline(t, ""), cancel: cancel}, st)

	out, err := r.Run(ctx, "Compare sales for 2023 and 2024")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, models.RunStatusCompleted, out.Run.Status)

	stored, err := st.GetRun(context.Background(), out.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, []string{"generator", "reflector", "curator"}, stored.Steps)
	assert.Len(t, stored.Messages, 4)
	assert.NotNil(t, stored.FinishedAt)
}
