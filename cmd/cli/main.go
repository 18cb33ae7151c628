package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-compatibility/internal/cache"
	"github.com/kurihiro0119/github-compatibility/internal/collector"
	"github.com/kurihiro0119/github-compatibility/internal/config"
	"github.com/kurihiro0119/github-compatibility/internal/matcher"
	"github.com/kurihiro0119/github-compatibility/internal/narrative"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
	"github.com/kurihiro0119/github-compatibility/internal/storage/memory"
	"github.com/kurihiro0119/github-compatibility/internal/storage/postgres"
	"github.com/kurihiro0119/github-compatibility/internal/storage/sqlite"
	"github.com/kurihiro0119/github-compatibility/pkg/client"
)

var (
	cfgFile    string
	outputJSON bool
	remote     bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "github-compat",
	Short: "GitHub compatibility tool",
	Long: `A CLI tool for scoring how well two GitHub users would collaborate.

It compares languages, activity, followers, topics and stars of both users,
asks a language model for a collaboration report, and caches the result
for the pair.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := godotenv.Load(cfgFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", cfgFile, err)
			}
		}
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare [user1] [user2]",
	Short: "Analyze the compatibility of two users",
	Long: `Run the full analysis (scores and narrative) for two GitHub users.

By default the pipeline runs locally against the configured storage. With
--remote the request is sent to the API server at API_ENDPOINT.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

var scoreCmd = &cobra.Command{
	Use:   "score [user1] [user2]",
	Short: "Show compatibility scores only",
	Long:  `Fetch both users and print the metrics without generating a narrative or touching the cache.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runScore,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the compatibility cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [user1] [user2]",
	Short: "Show the cached result for a pair",
	Args:  cobra.ExactArgs(2),
	RunE:  runCacheShow,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the API server at API_ENDPOINT",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout for the command")
	compareCmd.Flags().BoolVar(&remote, "remote", false, "run the analysis through the API server")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case config.StoragePostgres:
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	case config.StorageMemory:
		return memory.NewMemoryStorage(), nil
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

func loadConfig(requireToken bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	validate := cfg.Validate
	if requireToken {
		validate = cfg.ValidateCLI
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newService wires the same pipeline the API server runs
func newService(cfg *config.Config, store storage.Storage) (*matcher.Service, error) {
	coll, err := collector.NewGitHubCollector(cfg.GitHubAPIURL, cfg.GitHubTimeout)
	if err != nil {
		return nil, err
	}
	generator := narrative.NewXAIGenerator(cfg.XAIAPIKey, cfg.NarrativeModel, cfg.NarrativeBaseURL, cfg.NarrativeTimeout)
	return matcher.NewService(coll, generator, store, cfg.CacheTTL), nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if remote {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.GitHubToken == "" {
			return fmt.Errorf("invalid config: %w", &config.ConfigError{Field: "GITHUB_TOKEN", Message: "GitHub token is required"})
		}
		result, err := client.NewClient(cfg.APIEndpoint).Analyze(ctx, cfg.GitHubToken, args[0], args[1])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), args[0], args[1], result, outputJSON)
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	service, err := newService(cfg, store)
	if err != nil {
		return err
	}
	result, err := service.Analyze(ctx, cfg.GitHubToken, args[0], args[1])
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), args[0], args[1], result, outputJSON)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	// Scoring never reads or writes the cache.
	service, err := newService(cfg, memory.NewMemoryStorage())
	if err != nil {
		return err
	}
	m, err := service.Score(ctx, cfg.GitHubToken, args[0], args[1])
	if err != nil {
		return err
	}
	return printMetrics(cmd.OutOrStdout(), args[0], args[1], m, outputJSON)
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	c := cache.NewCache(store, cfg.CacheTTL)
	entry, fresh, err := c.Lookup(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("no cached result for %s", cache.PairKey(args[0], args[1]))
	}
	return printCacheEntry(cmd.OutOrStdout(), entry, fresh, c.TTL(), outputJSON)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", cfg.StorageType)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := client.NewClient(cfg.APIEndpoint).HealthCheck(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy\n", cfg.APIEndpoint)
	return nil
}
