package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/report"
)

// DryRunStore reads through to the wrapped store but swallows every
// mutation, so a dry run sees real pending work without changing any of it.
type DryRunStore struct {
	inner  Store
	logger *zap.Logger
}

// NewDryRunStore wraps a store for dry-run mode.
func NewDryRunStore(inner Store, logger *zap.Logger) *DryRunStore {
	return &DryRunStore{inner: inner, logger: logger.With(zap.Bool("dry_run", true))}
}

func (d *DryRunStore) UpsertReport(_ context.Context, rec *report.Report) (int64, bool, error) {
	d.logger.Info("would save report", zap.String("report_id", rec.ReportID))
	return 0, false, nil
}

func (d *DryRunStore) MarkFiltered(_ context.Context, id int64, res report.FilterResult) error {
	d.logger.Info("would save filter result",
		zap.Int64("id", id),
		zap.Bool("newsworthy", res.Newsworthy),
		zap.Int("score", res.Score))
	return nil
}

func (d *DryRunStore) SaveSummary(_ context.Context, id int64, summary string) error {
	d.logger.Info("would save summary", zap.Int64("id", id), zap.String("summary", summary))
	return nil
}

func (d *DryRunStore) MarkPosted(_ context.Context, id int64, _, postURI string) error {
	d.logger.Info("would mark posted", zap.Int64("id", id), zap.String("uri", postURI))
	return nil
}

func (d *DryRunStore) Unfiltered(ctx context.Context, limit int) ([]report.Report, error) {
	return d.inner.Unfiltered(ctx, limit)
}

func (d *DryRunStore) NeedsSummary(ctx context.Context, limit int) ([]report.Report, error) {
	return d.inner.NeedsSummary(ctx, limit)
}

func (d *DryRunStore) Unposted(ctx context.Context, limit int) ([]report.Report, error) {
	return d.inner.Unposted(ctx, limit)
}

func (d *DryRunStore) Stats(ctx context.Context) (report.Stats, error) {
	return d.inner.Stats(ctx)
}
