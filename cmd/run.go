package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full triage pipeline",
	Long: `Run the full triage pipeline:

  1. Fetch feedback from every registered provider
  2. Classify and group unprocessed feedback into issues
  3. Re-age severity for all open issues

Provider fetch failures are isolated; the run proceeds with whatever
succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineRun(cmd)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <provider-id>",
	Short: "Ingest feedback from a single provider",
	Long:  "Fetch and store feedback from one provider without running classification.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
}

func runPipelineRun(cmd *cobra.Command) error {
	if dryRun {
		ui.DryRunMsg("Would run the full pipeline (ingest, classify, re-age)")
		return nil
	}

	orch, err := getOrchestrator()
	if err != nil {
		return err
	}

	ui.Info("Running triage pipeline...")
	res, err := orch.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	for id, ferr := range res.ProviderErrors {
		ui.Warning("provider %s: %v", id, ferr)
	}

	ui.Success("Ingested %d new items (%d duplicates skipped)", res.Ingested, res.Duplicates)
	ui.Success("Processed %d items (%d via fallback, %d failed)", res.Processed, res.Fallbacks, res.Failed)
	ui.Success("Created %d new issues, re-aged %d open issues", res.IssuesCreated, res.Recalculated)
	return nil
}

func syncRun(cmd *cobra.Command, providerID string) error {
	if dryRun {
		ui.DryRunMsg("Would ingest feedback from provider %s", providerID)
		return nil
	}

	orch, err := getOrchestrator()
	if err != nil {
		return err
	}

	n, err := orch.IngestFromProvider(cmd.Context(), providerID)
	if err != nil {
		return err
	}

	ui.Success("Ingested %d new items from %s", n, providerID)
	return nil
}
