// ABOUTME: Root command and global flags for the ace CLI
// ABOUTME: Wires every subcommand and validates flag combinations
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
 █████╗  ██████╗███████╗
██╔══██╗██╔════╝██╔════╝
███████║██║     █████╗
██╔══██║██║     ██╔══╝
██║  ██║╚██████╗███████╗
╚═╝  ╚═╝ ╚═════╝╚══════╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ace",
		Short: "Supervised generator, reflector and curator pipeline",
		Long: banner + `

ace routes a task through three LLM workers under a supervisor:
the generator drafts an answer using the playbook, the reflector
critiques it, and the curator proposes playbook updates.

Runs are stored locally and can be served over HTTP or MCP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			switch outputFormat {
			case "auto", "json", "table":
			default:
				return fmt.Errorf("--format must be auto, json or table, got %q", outputFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors and suppress hints")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, json or table")

	cmd.AddCommand(
		NewRunCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewPlaybookCmd(),
		NewRunsCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
