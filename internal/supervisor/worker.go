// ABOUTME: Worker nodes and the Generator contract they wrap
// ABOUTME: Invoke runs one worker and attributes its reply
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/models"
)

// Generator produces one reply from the full conversation history
type Generator interface {
	Generate(ctx context.Context, history []models.Message) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, history []models.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, history []models.Message) (string, error) {
	return f(ctx, history)
}

// Worker is a named node backed by a generation service
type Worker struct {
	Name      WorkerName
	Generator Generator
}

// Invoke runs w over the current history and returns its reply attributed to
// w.Name. The state is not modified; the Coordinator appends the message.
// Failures are not retried here.
func Invoke(ctx context.Context, w Worker, state *State) (models.Message, error) {
	log := logger.FromContext(ctx).With("worker", string(w.Name))

	start := time.Now()
	reply, err := w.Generator.Generate(ctx, state.Messages())
	elapsed := time.Since(start)
	if err != nil {
		log.Error("worker failed", "elapsed", elapsed, "err", err)
		return models.Message{}, fmt.Errorf("%w: %s: %w", ErrWorkerFailed, w.Name, err)
	}

	log.Debug("worker finished", "elapsed", elapsed, "chars", len(reply))
	if reply == "" {
		log.Warn("worker returned an empty reply")
	}
	return models.NewMessage(string(w.Name), reply), nil
}
