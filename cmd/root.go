package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/triage/internal/analyze"
	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/pipeline"
	"github.com/joescharf/triage/internal/provider"
	"github.com/joescharf/triage/internal/store"
	"github.com/joescharf/triage/internal/vectorindex"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	registry  *provider.Registry

	verbose bool
	dryRun  bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Feedback triage - ingest, classify, and prioritize user feedback",
	Long: `triage ingests user feedback from multiple sources, classifies it
with AI, groups semantically related items into issues, and maintains
a severity score per issue that grows the longer it stays unresolved.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/triage/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "triage %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "triage")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRIAGE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "triage")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "triage.db"))
	viper.SetDefault("vector_path", filepath.Join(defaultConfigDir, "vectors"))
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("pipeline.batch_size", 100)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and vector index are initialized lazily — only when commands
	// actually need them. This lets config/version run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getRegistry returns the shared provider registry, built on first call.
func getRegistry() (*provider.Registry, error) {
	if registry != nil {
		return registry, nil
	}
	r, err := provider.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	registry = r
	return registry, nil
}

// getAnalyzer picks the LLM classifier when an API key is configured and
// the deterministic heuristic otherwise.
func getAnalyzer() analyze.Analyzer {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		ui.VerboseLog("no Anthropic API key configured, using heuristic classifier")
		return analyze.FallbackAnalyzer{}
	}
	return analyze.NewClient(apiKey, viper.GetString("anthropic.model"))
}

// getEmbedder picks the OpenAI embedding function when a key is configured
// and the deterministic hash embedder otherwise.
func getEmbedder() analyze.EmbedFunc {
	apiKey := viper.GetString("openai.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		ui.VerboseLog("no OpenAI API key configured, using hash embedder")
		return analyze.NewHashEmbedder()
	}
	return analyze.NewOpenAIEmbedder(apiKey)
}

// getOrchestrator wires a pipeline orchestrator from configured deps.
func getOrchestrator() (*pipeline.Orchestrator, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	r, err := getRegistry()
	if err != nil {
		return nil, err
	}
	index, err := vectorindex.NewChromemIndex(viper.GetString("vector_path"))
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	return pipeline.New(pipeline.Config{
		Store:     s,
		Registry:  r,
		Analyzer:  getAnalyzer(),
		Embed:     getEmbedder(),
		Index:     index,
		BatchSize: viper.GetInt("pipeline.batch_size"),
	}), nil
}
