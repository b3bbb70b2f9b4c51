package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"product-crawler/internal/config"
	"product-crawler/internal/crawler"
	"product-crawler/internal/logging"
	"product-crawler/internal/models"
	"product-crawler/internal/output/sqlite"
)

type crawlRunner interface {
	CrawlDomains(ctx context.Context, domains []string, limits models.Limits) []models.CrawlResult
}

// runnerFactory builds the crawl stack once config and logger are known.
type runnerFactory func(cfg config.Config, logger *zap.Logger) (crawlRunner, error)

func newHTTPRunner(cfg config.Config, logger *zap.Logger) (crawlRunner, error) {
	return crawler.NewHTTPCoordinator(cfg.FetchOptions(), logger, nil)
}

type crawlFlags struct {
	targets  string
	database string
	cfgFile  string
	maxPages int
	maxDepth int
}

func newRootCmd(newRunner runnerFactory) *cobra.Command {
	var flags crawlFlags
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "product-crawler [domains...]",
		Short: "Breadth-first crawler that collects product page URLs per domain",
		Long: "Crawls each domain breadth-first within its page and depth budget and prints the\n" +
			"product URLs found as a JSON array. Domains come from the arguments, the --targets\n" +
			"file, or stdin (one per line).",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, v, flags, args, newRunner)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.Flags().StringVarP(&flags.targets, "targets", "t", "", "A file containing the domains to crawl. If empty and no domains are given, stdin is used.")
	cmd.Flags().StringVar(&flags.database, "db", "", "Archive the results to this SQLite database.")
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", models.DefaultMaxPages, "Maximum pages visited per domain.")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", models.DefaultMaxDepth, "Maximum link depth from the root page.")

	cobra.CheckErr(v.BindPFlag("config_file", cmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(v.BindPFlag("max_pages", cmd.Flags().Lookup("max-pages")))
	cobra.CheckErr(v.BindPFlag("max_depth", cmd.Flags().Lookup("max-depth")))
	return cmd
}

func runCrawl(cmd *cobra.Command, v *viper.Viper, flags crawlFlags, args []string, newRunner runnerFactory) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	domains, err := readTargets(args, flags.targets, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		return models.ErrNoDomains
	}

	runner, err := newRunner(cfg, logger)
	if err != nil {
		return fmt.Errorf("crawler setup: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	results := runner.CrawlDomains(ctx, domains, cfg.Limits)
	logger.Info("all crawling done",
		zap.Int("domains", len(domains)),
		zap.Int("completed", len(results)),
		zap.Duration("elapsed", time.Since(start)))

	if flags.database != "" {
		archive, err := sqlite.Open(flags.database)
		if err != nil {
			return err
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Warn("failed to close archive", zap.Error(err))
			}
		}()
		if err := archive.WriteResults(ctx, results, time.Now().UTC()); err != nil {
			return fmt.Errorf("archive results: %w", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// readTargets returns the domains named in args, else those in the targets
// file, else those on stdin. Blank lines and # comments are skipped.
func readTargets(args []string, path string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	src := stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open targets: %w", err)
		}
		defer f.Close()
		src = f
	}

	var domains []string
	sc := bufio.NewScanner(src)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return domains, nil
}
