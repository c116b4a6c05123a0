// Package store persists oversight reports in Postgres and exposes the
// staged queries the pipeline advances them through.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/config"
	"github.com/igwatch/igbot/internal/metrics"
	"github.com/igwatch/igbot/internal/report"
)

// ErrReportMissing is returned by stage transitions that target a row
// which no longer exists.
var ErrReportMissing = errors.New("report not found")

// DB is the subset of pgxpool.Pool the store needs. pgxmock's pool
// interface satisfies it, which keeps the tests away from a live server.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const reportColumns = `id, report_id, url, agency_id, agency_name, title, report_type,
	published_date, abstract, document_url, document_text, document_page_count,
	passed_keyword_filter, passed_llm_filter, newsworthy_score, llm_filter_reason,
	dollar_amount, criminal, topics, summary, post_text, posted, posted_at,
	created_at, updated_at`

// Store wraps a Postgres pool.
type Store struct {
	db     DB
	logger *zap.Logger
}

// New connects a pool using the configured DSN and pings it.
func New(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{db: pool, logger: logger}, nil
}

// NewWithDB wraps an existing connection, typically a mock in tests.
func NewWithDB(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close releases the underlying pool.
func (s *Store) Close() { s.db.Close() }

// InitSchema creates the report tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// EnsureSchema fails fast when the report table has not been created yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	var name *string
	err := s.db.QueryRow(ctx, `SELECT to_regclass('ig_reports')::text`).Scan(&name)
	if err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}
	if name == nil {
		return errors.New("ig_reports table missing, run init-db first")
	}
	return nil
}

// UpsertReport inserts a report keyed by its natural report_id, or refreshes
// the scrape-supplied fields of the existing row. Stage fields set by later
// pipeline phases are never touched here, so re-scraping a processed report
// cannot reset it. Returns the row id and whether a new row was created.
func (s *Store) UpsertReport(ctx context.Context, rec *report.Report) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`SELECT id FROM ig_reports WHERE report_id = $1`, rec.ReportID).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id, err = s.insertReport(ctx, rec)
		if err != nil {
			return 0, false, err
		}
		metrics.ReportsUpserted.WithLabelValues("insert").Inc()
		return id, true, nil
	case err != nil:
		return 0, false, fmt.Errorf("looking up report %s: %w", rec.ReportID, err)
	}
	if err := s.updateReport(ctx, id, rec); err != nil {
		return 0, false, err
	}
	metrics.ReportsUpserted.WithLabelValues("update").Inc()
	return id, false, nil
}

func (s *Store) insertReport(ctx context.Context, rec *report.Report) (int64, error) {
	builder := psql.Insert("ig_reports").
		Columns("report_id", "url", "agency_id", "agency_name", "title",
			"report_type", "published_date", "abstract", "passed_keyword_filter").
		Values(rec.ReportID, rec.URL, rec.AgencyID, rec.AgencyName, rec.Title,
			rec.ReportType, rec.PublishedDate, rec.Abstract, rec.PassedKeywordFilter).
		Suffix("RETURNING id")
	if rec.DocumentURL != "" {
		builder = psql.Insert("ig_reports").
			Columns("report_id", "url", "agency_id", "agency_name", "title",
				"report_type", "published_date", "abstract", "passed_keyword_filter",
				"document_url", "document_text", "document_page_count").
			Values(rec.ReportID, rec.URL, rec.AgencyID, rec.AgencyName, rec.Title,
				rec.ReportType, rec.PublishedDate, rec.Abstract, rec.PassedKeywordFilter,
				rec.DocumentURL, rec.DocumentText, rec.DocumentPageCount).
			Suffix("RETURNING id")
	}
	q, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert: %w", err)
	}
	var id int64
	if err := s.db.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting report %s: %w", rec.ReportID, err)
	}
	return id, nil
}

func (s *Store) updateReport(ctx context.Context, id int64, rec *report.Report) error {
	builder := psql.Update("ig_reports").
		Set("url", rec.URL).
		Set("agency_id", rec.AgencyID).
		Set("agency_name", rec.AgencyName).
		Set("title", rec.Title).
		Set("report_type", rec.ReportType).
		Set("published_date", rec.PublishedDate).
		Set("abstract", rec.Abstract).
		Set("passed_keyword_filter", rec.PassedKeywordFilter).
		Set("updated_at", time.Now().UTC())
	if rec.DocumentURL != "" {
		builder = builder.
			Set("document_url", rec.DocumentURL).
			Set("document_text", rec.DocumentText).
			Set("document_page_count", rec.DocumentPageCount)
	}
	q, args, err := builder.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	if _, err := s.db.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("updating report %s: %w", rec.ReportID, err)
	}
	return nil
}

// Unfiltered returns reports that passed the keyword filter but have not been
// judged by the LLM yet, newest first.
func (s *Store) Unfiltered(ctx context.Context, limit int) ([]report.Report, error) {
	q, args, err := psql.Select(reportColumns).From("ig_reports").
		Where("passed_keyword_filter").
		Where("passed_llm_filter IS NULL").
		OrderBy("published_date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building unfiltered query: %w", err)
	}
	return s.queryReports(ctx, q, args...)
}

// NeedsSummary returns newsworthy reports still missing a summary.
func (s *Store) NeedsSummary(ctx context.Context, limit int) ([]report.Report, error) {
	q, args, err := psql.Select(reportColumns).From("ig_reports").
		Where("passed_llm_filter").
		Where("(summary IS NULL OR summary = '')").
		Where("NOT posted").
		OrderBy("published_date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building summary query: %w", err)
	}
	return s.queryReports(ctx, q, args...)
}

// Unposted returns newsworthy reports awaiting a post, most newsworthy first
// with recency as the tiebreak.
func (s *Store) Unposted(ctx context.Context, limit int) ([]report.Report, error) {
	q, args, err := psql.Select(reportColumns).From("ig_reports").
		Where("passed_llm_filter").
		Where("NOT posted").
		OrderBy("newsworthy_score DESC", "published_date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building unposted query: %w", err)
	}
	return s.queryReports(ctx, q, args...)
}

// MarkFiltered records the LLM verdict for a report inside a transaction.
func (s *Store) MarkFiltered(ctx context.Context, id int64, res report.FilterResult) error {
	topics, err := report.EncodeTopics(res.Topics)
	if err != nil {
		return fmt.Errorf("encoding topics: %w", err)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning filter tx: %w", err)
	}
	q, args, err := psql.Update("ig_reports").
		Set("passed_llm_filter", res.Newsworthy).
		Set("newsworthy_score", res.Score).
		Set("llm_filter_reason", res.Reason).
		Set("dollar_amount", res.DollarAmount).
		Set("criminal", res.Criminal).
		Set("topics", topics).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("building filter update: %w", err)
	}
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("marking report %d filtered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("marking report %d filtered: %w", id, ErrReportMissing)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing filter tx: %w", err)
	}
	return nil
}

// SaveSummary stores the generated summary for a report.
func (s *Store) SaveSummary(ctx context.Context, id int64, summary string) error {
	q, args, err := psql.Update("ig_reports").
		Set("summary", summary).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building summary update: %w", err)
	}
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("saving summary for report %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("saving summary for report %d: %w", id, ErrReportMissing)
	}
	return nil
}

// MarkPosted flips the posted flag and records the post in bot_posts inside a
// single transaction, so a failure leaves the report eligible for retry.
func (s *Store) MarkPosted(ctx context.Context, id int64, postText, postURI string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning post tx: %w", err)
	}
	now := time.Now().UTC()
	q, args, err := psql.Update("ig_reports").
		Set("posted", true).
		Set("post_text", postText).
		Set("posted_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("building post update: %w", err)
	}
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("marking report %d posted: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("marking report %d posted: %w", id, ErrReportMissing)
	}
	if postURI != "" {
		insert, insertArgs, err := psql.Insert("bot_posts").
			Columns("report_id", "post_uri", "posted_at").
			Values(id, postURI, now).
			ToSql()
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("building post insert: %w", err)
		}
		if _, err := tx.Exec(ctx, insert, insertArgs...); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("recording post for report %d: %w", id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing post tx: %w", err)
	}
	return nil
}

// Stats aggregates stage counts across the whole table.
func (s *Store) Stats(ctx context.Context) (report.Stats, error) {
	var st report.Stats
	err := s.db.QueryRow(ctx, `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE passed_keyword_filter),
		COUNT(*) FILTER (WHERE passed_llm_filter),
		COUNT(*) FILTER (WHERE posted),
		COUNT(*) FILTER (WHERE passed_llm_filter AND NOT posted)
		FROM ig_reports`).
		Scan(&st.TotalReports, &st.PassedKeywordFilter, &st.PassedLLMFilter,
			&st.Posted, &st.PendingPosts)
	if err != nil {
		return report.Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}

func (s *Store) queryReports(ctx context.Context, q string, args ...any) ([]report.Report, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var out []report.Report
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return out, nil
}

func scanReport(row pgx.Row) (report.Report, error) {
	var (
		rec      report.Report
		docURL   *string
		docText  *string
		pages    *int
		reason   *string
		topics   *string
		summary  *string
		postText *string
	)
	err := row.Scan(&rec.ID, &rec.ReportID, &rec.URL, &rec.AgencyID, &rec.AgencyName,
		&rec.Title, &rec.ReportType, &rec.PublishedDate, &rec.Abstract,
		&docURL, &docText, &pages,
		&rec.PassedKeywordFilter, &rec.PassedLLMFilter, &rec.NewsworthyScore, &reason,
		&rec.DollarAmount, &rec.Criminal, &topics, &summary, &postText,
		&rec.Posted, &rec.PostedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return report.Report{}, err
	}
	if docURL != nil {
		rec.DocumentURL = *docURL
	}
	if docText != nil {
		rec.DocumentText = *docText
	}
	if pages != nil {
		rec.DocumentPageCount = *pages
	}
	if reason != nil {
		rec.LLMFilterReason = *reason
	}
	if topics != nil {
		rec.Topics = report.DecodeTopics(*topics)
	}
	if summary != nil {
		rec.Summary = *summary
	}
	if postText != nil {
		rec.PostText = *postText
	}
	return rec, nil
}
