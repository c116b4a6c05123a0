package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/config"
	"github.com/igwatch/igbot/internal/document"
	"github.com/igwatch/igbot/internal/fetch"
	"github.com/igwatch/igbot/internal/llm"
	"github.com/igwatch/igbot/internal/pipeline"
	"github.com/igwatch/igbot/internal/poster"
	"github.com/igwatch/igbot/internal/scrape"
	"github.com/igwatch/igbot/internal/store"
)

// newRunCmd creates the 'run' subcommand, the daily pipeline entry point.
func newRunCmd() *cobra.Command {
	var (
		dryRun      bool
		daysBack    int
		skipScrape  bool
		skipFilter  bool
		skipSummary bool
		skipPost    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the daily pipeline: scrape, filter, summarize, post",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if daysBack <= 0 {
				daysBack = cfg.Scraper.DaysBack
			}

			st, err := store.New(ctx, cfg.DB, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()
			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}

			opts := pipeline.Options{
				DryRun:       dryRun,
				DaysBack:     daysBack,
				SkipScrape:   skipScrape,
				SkipFilter:   skipFilter,
				SkipSummary:  skipSummary,
				SkipPost:     skipPost,
				FilterLimit:  cfg.Pipeline.FilterLimit,
				SummaryLimit: cfg.Pipeline.SummaryLimit,
				PostLimit:    cfg.Pipeline.PostLimit,
			}
			if cfg.Bluesky.Handle == "" || cfg.Bluesky.AppPassword == "" {
				logger.Info("bluesky credentials not configured, posting disabled")
				opts.SkipPost = true
			}

			model := llm.NewClient(cfg.LLM, logger)
			p := pipeline.New(st,
				buildScraper(cfg, logger),
				model, model,
				poster.New(cfg.Bluesky, logger),
				opts, logger)

			sum, err := p.Run(ctx)
			if err != nil {
				return err
			}

			if !dryRun {
				stats, err := st.Stats(context.WithoutCancel(ctx))
				if err != nil {
					logger.Warn("could not read stats", zap.Error(err))
				} else {
					logger.Info("database stats",
						zap.Int64("total_reports", stats.TotalReports),
						zap.Int64("passed_keyword_filter", stats.PassedKeywordFilter),
						zap.Int64("passed_llm_filter", stats.PassedLLMFilter),
						zap.Int64("posted", stats.Posted),
						zap.Int64("pending_posts", stats.PendingPosts))
				}
			}
			logger.Info("run finished", zap.String("run_id", sum.RunID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run without writing to the database or posting")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "how many days back to scrape (default from config)")
	cmd.Flags().BoolVar(&skipScrape, "skip-scrape", false, "skip the scraping phase")
	cmd.Flags().BoolVar(&skipFilter, "skip-filter", false, "skip the LLM filtering phase")
	cmd.Flags().BoolVar(&skipSummary, "skip-summary", false, "skip the summary generation phase")
	cmd.Flags().BoolVar(&skipPost, "skip-post", false, "skip the posting phase")
	return cmd
}

func buildScraper(cfg config.Config, logger *zap.Logger) *scrape.Scraper {
	fetcher := fetch.New(fetch.Config{
		RateInterval:   cfg.Scraper.RateInterval(),
		Timeout:        cfg.HTTP.Timeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.HTTP.BackoffInitial(),
		ThrottleWait:   cfg.HTTP.ThrottleWait(),
		UserAgents:     cfg.Scraper.UserAgents,
	}, logger)

	parser, err := scrape.NewListingParser(cfg.Scraper.BaseURL, logger)
	if err != nil {
		// The base URL was validated at config load.
		panic(err)
	}

	resolver := document.NewResolver(fetcher, fetcher.Client(), document.Limits{
		MaxFileSize: int64(cfg.Document.MaxFileSizeMB) << 20,
		MaxPages:    cfg.Document.MaxPages,
		MaxChars:    cfg.Document.MaxChars,
	}, logger)

	return scrape.New(fetcher, parser, resolver, scrape.Config{
		BaseURL:     cfg.Scraper.BaseURL,
		ListingPath: cfg.Scraper.ListingPath,
		MaxPages:    cfg.Scraper.MaxPages,
	}, logger)
}
