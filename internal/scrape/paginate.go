package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/document"
	"github.com/igwatch/igbot/internal/fetch"
	"github.com/igwatch/igbot/internal/report"
)

// PageFetcher retrieves one page of markup.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DocumentResolver augments a report with its attached document, if any.
type DocumentResolver interface {
	Resolve(ctx context.Context, landingURL string) (*document.Ref, error)
}

// Config controls the pagination walk.
type Config struct {
	BaseURL     string
	ListingPath string
	MaxPages    int
}

// Scraper drives the listing parser across pages until a date cutoff or a
// page ceiling stops it.
type Scraper struct {
	fetcher  PageFetcher
	parser   *ListingParser
	resolver DocumentResolver
	cfg      Config
	logger   *zap.Logger
}

// New wires the scraper. resolver may be nil to skip document extraction.
func New(fetcher PageFetcher, parser *ListingParser, resolver DocumentResolver, cfg Config, logger *zap.Logger) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Scraper{
		fetcher:  fetcher,
		parser:   parser,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// RecentReports walks listing pages from page 1 and returns every record
// published on or after cutoff.
//
// The walk stops when a page yields no records, a fetch fails, the page
// ceiling is hit, or the oldest date on the current page precedes cutoff.
// The stop decision is page-level; inclusion stays per-record, so an old
// record mixed into a page that is otherwise fresh is dropped without
// ending the walk.
func (s *Scraper) RecentReports(ctx context.Context, cutoff time.Time) ([]report.Report, error) {
	var collected []report.Report

	for page := 1; page <= s.cfg.MaxPages; page++ {
		pageURL := s.pageURL(page)
		s.logger.Info("fetching listing page", zap.Int("page", page), zap.String("url", pageURL))

		markup, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return collected, err
			}
			s.logger.Warn("listing page unavailable, stopping pagination",
				zap.Int("page", page), zap.Error(err))
			break
		}

		records, err := s.parser.Parse(markup)
		if err != nil {
			s.logger.Warn("listing page unparseable, stopping pagination",
				zap.Int("page", page), zap.Error(err))
			break
		}
		if len(records) == 0 {
			s.logger.Info("no records on page, stopping pagination", zap.Int("page", page))
			break
		}

		var oldest time.Time
		for _, rec := range records {
			if oldest.IsZero() || rec.PublishedDate.Before(oldest) {
				oldest = rec.PublishedDate
			}
			if rec.PublishedDate.Before(cutoff) {
				continue
			}
			s.attachDocument(ctx, &rec)
			collected = append(collected, rec)
		}

		if oldest.Before(cutoff) {
			s.logger.Info("page reaches past cutoff, stopping pagination",
				zap.Int("page", page),
				zap.Time("oldest", oldest),
				zap.Time("cutoff", cutoff))
			break
		}
	}

	s.logger.Info("scrape complete", zap.Int("reports", len(collected)))
	return collected, nil
}

func (s *Scraper) pageURL(page int) string {
	base := s.cfg.BaseURL + s.cfg.ListingPath
	if page == 1 {
		return base
	}
	return fmt.Sprintf("%s?page=%d", base, page)
}

// attachDocument best-effort resolves the report's attached document. Any
// failure leaves the report with listing data only.
func (s *Scraper) attachDocument(ctx context.Context, rec *report.Report) {
	if s.resolver == nil {
		return
	}
	ref, err := s.resolver.Resolve(ctx, rec.URL)
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			s.logger.Debug("report landing page gone", zap.String("url", rec.URL))
		} else {
			s.logger.Warn("document resolution failed", zap.String("url", rec.URL), zap.Error(err))
		}
		return
	}
	if ref == nil {
		return
	}
	rec.DocumentURL = ref.URL
	rec.DocumentText = ref.Text
	rec.DocumentPageCount = ref.TotalPages
}
