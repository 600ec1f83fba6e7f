package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client query triage natively for issues, feedback,
and provider state, and trigger pipeline runs. Configure with:

  {
    "mcpServers": {
      "triage": { "command": "triage", "args": ["mcp"] }
    }
  }

Available tools: triage_list_issues, triage_issue_detail,
triage_update_issue, triage_list_feedback, triage_run_pipeline,
triage_provider_status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		r, err := getRegistry()
		if err != nil {
			return err
		}
		orch, err := getOrchestrator()
		if err != nil {
			return err
		}

		srv := mcp.NewServer(s, orch, r)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
