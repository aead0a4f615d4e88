// ABOUTME: Playbook commands: ingest, search and list bullets; index status and sync
// ABOUTME: list reads the playbook file directly and needs no credentials
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/harper/ace-pipeline/internal/charm"
	"github.com/harper/ace-pipeline/internal/playbook"
	"github.com/spf13/cobra"
)

var (
	playbookFile     string
	playbookLimit    int
	playbookTextOnly bool
)

// NewPlaybookCmd creates the playbook command group
func NewPlaybookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: "Manage the playbook knowledge base",
		Long: `Manage the playbook knowledge base.

The playbook is a JSON file of bullets:
  {"bullets": {"<key>": {"id": "...", "section": "...", "content": "..."}}}

Bullets are embedded and stored in Charm KV under the configured
collection so the generator can retrieve them by similarity.`,
	}
	cmd.PersistentFlags().StringVar(&playbookFile, "file", "", "Playbook file (default from PLAYBOOK_PATH)")

	cmd.AddCommand(
		newPlaybookIngestCmd(),
		newPlaybookSearchCmd(),
		newPlaybookListCmd(),
		newPlaybookStatusCmd(),
		newPlaybookSyncCmd(),
	)
	return cmd
}

func newPlaybookIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Embed and store every playbook bullet",
		Long: `Embed every bullet in the playbook file and upsert it into the index.
Bullets no longer in the file are removed. Re-running is safe.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			pb, err := playbook.Load(resolvePlaybookFile(a.cfg.PlaybookPath))
			if err != nil {
				return err
			}
			if err := a.openIndex(); err != nil {
				return err
			}

			stats, err := a.index.Ingest(a.context(background(cmd)), pb)
			if err != nil {
				return fmt.Errorf("ingesting playbook: %w", err)
			}
			if useJSON() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"collection": a.index.Collection(),
					"ingested":   stats.Ingested,
					"removed":    stats.Removed,
				})
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d bullet(s) into %s, removed %d\n",
					stats.Ingested, a.index.Collection(), stats.Removed)
			}
			return nil
		},
	}
}

func newPlaybookSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the playbook by similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(playbookLimit, "limit"); err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.openIndex(); err != nil {
				return err
			}

			query := args[0]
			hits, err := a.index.Search(a.context(background(cmd)), query, playbookLimit)
			if err != nil {
				return fmt.Errorf("searching playbook: %w", err)
			}

			if useJSON() {
				return writeJSON(cmd.OutOrStdout(), hits)
			}
			if len(hits) == 0 {
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "No bullets found for query: %s\n", query)
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "SCORE\tID\tSECTION\tCONTENT\n")
			fmt.Fprintf(w, "-----\t--\t-------\t-------\n")
			for _, h := range hits {
				fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", h.SimilarityScore, truncate(h.ID, 20), truncate(h.Section, 20), truncate(h.Text, 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&playbookLimit, "limit", playbook.DefaultSearchLimit, "Maximum results to return")
	return cmd
}

func newPlaybookListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the bullets in the playbook file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			pb, err := playbook.Load(resolvePlaybookFile(cfg.PlaybookPath))
			if err != nil {
				return err
			}

			if playbookTextOnly {
				contents := pb.Contents()
				if useJSON() {
					return writeJSON(cmd.OutOrStdout(), contents)
				}
				for _, c := range contents {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
				return nil
			}

			bullets := pb.Ordered()
			if useJSON() {
				return writeJSON(cmd.OutOrStdout(), bullets)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tSECTION\tCONTENT\n")
			fmt.Fprintf(w, "--\t-------\t-------\n")
			for _, b := range bullets {
				fmt.Fprintf(w, "%s\t%s\t%s\n", truncate(b.ID, 20), truncate(b.Section, 20), truncate(b.Content, 70))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d bullet(s)\n", len(bullets))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&playbookTextOnly, "text", false, "Print only bullet contents, one per line")
	return cmd
}

func newPlaybookStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Charm connection and index size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.openKV(); err != nil {
				return fmt.Errorf("failed to connect to Charm: %w", err)
			}
			keys, err := a.kv.ListKeys(charm.CollectionPrefix(a.cfg.PlaybookCollection))
			if err != nil {
				return err
			}

			id, idErr := a.kv.ID()
			status := map[string]any{
				"connected":  idErr == nil,
				"host":       a.cfg.CharmHost,
				"collection": a.cfg.PlaybookCollection,
				"bullets":    len(keys),
			}
			if idErr == nil {
				status["user_id"] = id
			}
			if useJSON() {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			out := cmd.OutOrStdout()
			if idErr != nil {
				fmt.Fprintln(out, "Status: Not connected")
				a.log.Debug("charm id lookup failed", "err", idErr)
			} else {
				fmt.Fprintln(out, "Status: Connected")
				fmt.Fprintf(out, "User ID: %s\n", id)
			}
			fmt.Fprintf(out, "Host: %s\n", a.cfg.CharmHost)
			fmt.Fprintf(out, "Collection: %s (%d bullet(s))\n", a.cfg.PlaybookCollection, len(keys))
			return nil
		},
	}
}

func newPlaybookSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Force an immediate sync of the index with Charm cloud",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.openKV(); err != nil {
				return fmt.Errorf("failed to connect to Charm: %w", err)
			}
			if err := a.kv.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "Sync complete")
			}
			return nil
		},
	}
}

func resolvePlaybookFile(fromConfig string) string {
	if playbookFile != "" {
		return playbookFile
	}
	return fromConfig
}
