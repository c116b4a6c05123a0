// Package pipeline runs the daily report flow: scrape, LLM filter, summary
// generation, and posting. Each phase is fault isolated so one bad report or
// a failing external service never sinks the rest of the run.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/llm"
	"github.com/igwatch/igbot/internal/report"
)

// Store is the persistence surface the pipeline advances reports through.
type Store interface {
	UpsertReport(ctx context.Context, rec *report.Report) (int64, bool, error)
	Unfiltered(ctx context.Context, limit int) ([]report.Report, error)
	NeedsSummary(ctx context.Context, limit int) ([]report.Report, error)
	Unposted(ctx context.Context, limit int) ([]report.Report, error)
	MarkFiltered(ctx context.Context, id int64, res report.FilterResult) error
	SaveSummary(ctx context.Context, id int64, summary string) error
	MarkPosted(ctx context.Context, id int64, postText, postURI string) error
	Stats(ctx context.Context) (report.Stats, error)
}

// Scraper produces recent reports no older than the cutoff.
type Scraper interface {
	RecentReports(ctx context.Context, cutoff time.Time) ([]report.Report, error)
}

// Filterer judges a report's newsworthiness.
type Filterer interface {
	FilterReport(ctx context.Context, rec *report.Report) (*report.FilterResult, error)
}

// Summarizer drafts the post text for a newsworthy report.
type Summarizer interface {
	GeneratePost(ctx context.Context, rec *report.Report) (string, error)
}

// Poster publishes a post and returns its URI.
type Poster interface {
	Post(ctx context.Context, text string) (string, error)
}

// Options control which phases run and how much work each may do.
type Options struct {
	DryRun   bool
	DaysBack int

	SkipScrape  bool
	SkipFilter  bool
	SkipSummary bool
	SkipPost    bool

	FilterLimit  int
	SummaryLimit int
	PostLimit    int
}

// Summary tallies what a run did.
type Summary struct {
	RunID      string
	Scraped    int
	Saved      int
	Filtered   int
	Newsworthy int
	Summarized int
	Posted     int
}

// Pipeline wires the phases together.
type Pipeline struct {
	store      Store
	scraper    Scraper
	filter     Filterer
	summarizer Summarizer
	poster     Poster
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// New assembles a pipeline. In dry-run mode store mutations are suppressed
// and nothing is published.
func New(store Store, scraper Scraper, filter Filterer, summarizer Summarizer, poster Poster, opts Options, logger *zap.Logger) *Pipeline {
	if opts.DaysBack <= 0 {
		opts.DaysBack = 1
	}
	if opts.FilterLimit <= 0 {
		opts.FilterLimit = 100
	}
	if opts.SummaryLimit <= 0 {
		opts.SummaryLimit = 20
	}
	if opts.PostLimit <= 0 {
		opts.PostLimit = 5
	}
	if opts.DryRun {
		store = NewDryRunStore(store, logger)
	}
	return &Pipeline{
		store:      store,
		scraper:    scraper,
		filter:     filter,
		summarizer: summarizer,
		poster:     poster,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes the enabled phases in order. Phase failures are logged and the
// run continues; only context cancellation aborts it.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	logger := p.logger.With(zap.String("run_id", sum.RunID))
	logger.Info("pipeline starting",
		zap.Bool("dry_run", p.opts.DryRun),
		zap.Int("days_back", p.opts.DaysBack))

	phases := []struct {
		name string
		skip bool
		run  func(context.Context, *zap.Logger, *Summary) error
	}{
		{"scrape", p.opts.SkipScrape, p.runScrape},
		{"filter", p.opts.SkipFilter, p.runFilter},
		{"summary", p.opts.SkipSummary, p.runSummary},
		{"post", p.opts.SkipPost, p.runPost},
	}
	for _, phase := range phases {
		if phase.skip {
			logger.Info("skipping phase", zap.String("phase", phase.name))
			continue
		}
		if err := phase.run(ctx, logger.With(zap.String("phase", phase.name)), sum); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sum, err
			}
			logger.Error("phase failed", zap.String("phase", phase.name), zap.Error(err))
		}
	}

	logger.Info("pipeline complete",
		zap.Int("scraped", sum.Scraped),
		zap.Int("saved", sum.Saved),
		zap.Int("filtered", sum.Filtered),
		zap.Int("newsworthy", sum.Newsworthy),
		zap.Int("summarized", sum.Summarized),
		zap.Int("posted", sum.Posted))
	return sum, nil
}

func (p *Pipeline) runScrape(ctx context.Context, logger *zap.Logger, sum *Summary) error {
	cutoff := p.now().AddDate(0, 0, -p.opts.DaysBack)
	reports, err := p.scraper.RecentReports(ctx, cutoff)
	if err != nil {
		return err
	}
	sum.Scraped = len(reports)
	if len(reports) == 0 {
		logger.Warn("no reports found")
		return nil
	}

	kept := 0
	for i := range reports {
		if reports[i].PassedKeywordFilter {
			kept++
		}
	}
	logger.Info("scraped listing",
		zap.Int("reports", len(reports)),
		zap.Int("passed_keyword_filter", kept))

	for i := range reports {
		if _, _, err := p.store.UpsertReport(ctx, &reports[i]); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error("failed to save report",
				zap.String("report_id", reports[i].ReportID), zap.Error(err))
			continue
		}
		sum.Saved++
	}
	logger.Info("saved reports", zap.Int("saved", sum.Saved), zap.Int("total", len(reports)))
	return nil
}

func (p *Pipeline) runFilter(ctx context.Context, logger *zap.Logger, sum *Summary) error {
	reports, err := p.store.Unfiltered(ctx, p.opts.FilterLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		logger.Info("no reports need filtering")
		return nil
	}

	for i := range reports {
		rec := &reports[i]
		res, err := p.filter.FilterReport(ctx, rec)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Warn("filter failed",
				zap.String("report_id", rec.ReportID), zap.Error(err))
			continue
		}
		if res.Newsworthy {
			sum.Newsworthy++
		}
		if err := p.store.MarkFiltered(ctx, rec.ID, *res); err != nil {
			logger.Error("failed to save filter result",
				zap.String("report_id", rec.ReportID), zap.Error(err))
			continue
		}
		sum.Filtered++
	}
	logger.Info("filtered reports",
		zap.Int("filtered", sum.Filtered),
		zap.Int("newsworthy", sum.Newsworthy))
	return nil
}

func (p *Pipeline) runSummary(ctx context.Context, logger *zap.Logger, sum *Summary) error {
	reports, err := p.store.NeedsSummary(ctx, p.opts.SummaryLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		logger.Info("no reports need summaries")
		return nil
	}

	for i := range reports {
		rec := &reports[i]
		post, err := p.summarizer.GeneratePost(ctx, rec)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Warn("summary generation failed, using fallback",
				zap.String("report_id", rec.ReportID), zap.Error(err))
			post = llm.FallbackPost(rec)
		}
		if err := p.store.SaveSummary(ctx, rec.ID, post); err != nil {
			logger.Error("failed to save summary",
				zap.String("report_id", rec.ReportID), zap.Error(err))
			continue
		}
		sum.Summarized++
	}
	logger.Info("generated summaries", zap.Int("summarized", sum.Summarized))
	return nil
}

func (p *Pipeline) runPost(ctx context.Context, logger *zap.Logger, sum *Summary) error {
	reports, err := p.store.Unposted(ctx, p.opts.PostLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		logger.Info("no reports awaiting posts")
		return nil
	}

	for i := range reports {
		rec := &reports[i]
		text := rec.PostText
		if text == "" {
			text = rec.Summary
		}
		if text == "" {
			logger.Debug("report has no summary yet, skipping",
				zap.String("report_id", rec.ReportID))
			continue
		}
		if p.opts.DryRun {
			logger.Info("dry run, would post",
				zap.String("report_id", rec.ReportID),
				zap.String("text", text))
			continue
		}
		uri, err := p.poster.Post(ctx, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Warn("post failed",
				zap.String("report_id", rec.ReportID), zap.Error(err))
			continue
		}
		if err := p.store.MarkPosted(ctx, rec.ID, text, uri); err != nil {
			logger.Error("post published but not recorded",
				zap.String("report_id", rec.ReportID),
				zap.String("uri", uri), zap.Error(err))
			continue
		}
		sum.Posted++
	}
	logger.Info("published posts", zap.Int("posted", sum.Posted))
	return nil
}
