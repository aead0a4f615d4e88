// ABOUTME: Commands to inspect stored runs
// ABOUTME: runs list shows recent runs; runs show prints one transcript
package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harper/ace-pipeline/internal/store"
	"github.com/spf13/cobra"
)

var runsLimit int

// NewRunsCmd creates the runs command group
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored runs",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(runsLimit, "limit"); err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := a.openStore(); err != nil {
				return err
			}

			runs, err := a.store.ListRuns(background(cmd), runsLimit)
			if err != nil {
				return err
			}

			if useJSON() {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs yet")
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "RUN ID\tSTATUS\tSTEPS\tCREATED\tTASK\n")
			fmt.Fprintf(w, "------\t------\t-----\t-------\t----\n")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.RunID, r.Status, strings.Join(r.Steps, ","), formatTime(r.CreatedAt), truncate(r.Task, 50))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&runsLimit, "limit", store.DefaultListLimit, "Maximum runs to list")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := a.openStore(); err != nil {
				return err
			}

			run, err := a.store.GetRun(background(cmd), args[0])
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			if useJSON() {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printTranscript(cmd, run)
			return nil
		},
	}
}
