// ABOUTME: CLI command to run the pipeline on a single task
// ABOUTME: Prints the transcript as it was recorded
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/service"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <message>",
		Short: "Run the pipeline on a task",
		Long: `Run the generator, reflector and curator on a task.

The supervisor decides which worker speaks next; every worker sees the
full conversation so far. The transcript is stored in the run database.

Examples:
  ace run "Sales were 120k last year and 150k this year. What changed?"
  ace run --format json "Summarize our churn strategy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.openRunner(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, runErr := a.runner.Run(a.context(ctx), strings.Join(args, " "))
	if out != nil {
		if err := printOutcome(cmd, out); err != nil {
			return err
		}
	}
	return runErr
}

func printOutcome(cmd *cobra.Command, out *service.Outcome) error {
	if useJSON() {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"run":       out.Run,
			"completed": out.Completed,
			"rerouted":  out.Rerouted,
		})
	}

	printTranscript(cmd, out.Run)
	if !quiet && out.Run.Status == models.RunStatusCompleted && !out.Completed {
		fmt.Fprintln(cmd.OutOrStdout(), "\nNote: the supervisor finished before every worker ran.")
	}
	return nil
}

func printTranscript(cmd *cobra.Command, run *models.Run) {
	w := cmd.OutOrStdout()
	if !quiet {
		fmt.Fprintf(w, "Run %s (%s)\n", run.RunID, run.Status)
	}
	for _, m := range run.Messages {
		author := m.Author
		if author == "" {
			author = models.AuthorUser
		}
		fmt.Fprintf(w, "\n== %s ==\n%s\n", author, m.Content)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", run.Error)
	}
}

// background is used by commands that have no cobra context (tests)
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
