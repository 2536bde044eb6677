package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"profile_spider/internal/app"
	"profile_spider/internal/config"
	"profile_spider/internal/logger"
	"profile_spider/internal/models"
	"profile_spider/internal/output"
	"profile_spider/internal/server"
	"profile_spider/internal/targets"
)

const summaryRows = 5

var (
	configPath string
	verbose    bool
	cfg        *config.SpiderConfig

	targetsPath  string
	recrawlHours int
	recrawlLimit int
	serveAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "profile_spider",
	Short: "Rate-limited profile page extraction into CSV, XLSX and JSON",
	Long: `profile_spider renders public profile pages one at a time, classifies
whether each page is readable, extracts a flat record of profile fields and
exports the batch.

Examples:
  profile_spider scrape                       # scrape input.targets_file
  profile_spider scrape --targets urls.txt    # scrape another list
  profile_spider serve --addr :8080           # start the control server`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile := config.LoadDotEnv(); envFile != "" {
			fmt.Fprintf(os.Stderr, "loaded environment from %s\n", envFile)
		}

		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		return logger.Initialize(cfg.Log.JSON, level)
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the targets file once and write exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if targetsPath != "" {
			cfg.Input.TargetsFile = targetsPath
		}

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		batch, err := loadTargets(ctx, a)
		if err != nil {
			return err
		}

		out, err := a.Scrape(ctx, batch)
		output.Summary(cmd.OutOrStdout(), out.Result, summaryRows)
		for kind, path := range out.Exports.Kinds() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, path)
		}
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return server.New(ctx, a, cfg.Input.TargetsFile).ListenAndServe(ctx, cfg.Server.Addr)
	},
}

// loadTargets reads the targets file and appends stored profiles due for a
// recrawl.
func loadTargets(ctx context.Context, a *app.App) ([]models.Target, error) {
	var batch []models.Target
	if recrawlHours <= 0 || fileExists(cfg.Input.TargetsFile) {
		loaded, err := targets.Load(cfg.Input.TargetsFile)
		if err != nil {
			return nil, err
		}
		batch = loaded
	}

	if recrawlHours > 0 {
		stale, err := a.StaleTargets(ctx, recrawlHours, recrawlLimit)
		if err != nil {
			return nil, err
		}
		logger.Logger.Infow("stale profiles queued", logger.FieldCount, len(stale))
		for _, t := range stale {
			t.Index = len(batch) + 1
			batch = append(batch, t)
		}
	}
	return batch, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	scrapeCmd.Flags().StringVarP(&targetsPath, "targets", "t", "", "Targets file (overrides input.targets_file)")
	scrapeCmd.Flags().IntVar(&recrawlHours, "recrawl-hours", 0, "Also scrape stored profiles older than this many hours")
	scrapeCmd.Flags().IntVar(&recrawlLimit, "recrawl-limit", 100, "Maximum stored profiles to recrawl")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
