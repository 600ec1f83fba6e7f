package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/provider"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Inspect registered feedback providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return providerListRun(cmd.Context())
	},
}

var providerListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered providers with sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return providerListRun(cmd.Context())
	},
}

var providerTestCmd = &cobra.Command{
	Use:   "test [provider-id]",
	Short: "Test provider connections",
	Long:  "Attempt a bounded fetch against each provider (or one) and report health.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id string
		if len(args) > 0 {
			id = args[0]
		}
		return providerTestRun(cmd.Context(), id)
	},
}

func init() {
	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerTestCmd)
	rootCmd.AddCommand(providerCmd)
}

func providerListRun(ctx context.Context) error {
	r, err := getRegistry()
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "Name", "Type", "Status", "Last Sync"})
	for _, src := range r.All() {
		status := "unregistered"
		lastSync := "-"
		if p, err := s.GetProvider(ctx, src.ID()); err == nil {
			status = string(p.Status)
			if p.LastSyncAt != nil {
				lastSync = p.LastSyncAt.Format("2006-01-02 15:04")
			}
		}
		table.Append([]string{
			src.ID(),
			src.Name(),
			string(src.Type()),
			status,
			lastSync,
		})
	}
	return table.Render()
}

func providerTestRun(ctx context.Context, id string) error {
	r, err := getRegistry()
	if err != nil {
		return err
	}

	sources := r.All()
	if id != "" {
		src, err := r.Get(id)
		if err != nil {
			return err
		}
		sources = []provider.Source{src}
	}

	for _, src := range sources {
		if src.TestConnection(ctx) {
			ui.Success("%s (%s): %s", src.ID(), src.Type(), output.Green("ok"))
		} else {
			ui.Error("%s (%s): %s", src.ID(), src.Type(), output.Red("unreachable"))
		}
	}
	return nil
}
