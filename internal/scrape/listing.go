// Package scrape extracts report records from the source site's paginated
// listing markup.
package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/report"
)

// fieldStrategy is one named way to pull a field out of a listing row.
// Strategies are tried in order until one yields a value, so source-markup
// drift is handled by editing the lists below, not the parse loop.
type fieldStrategy struct {
	name    string
	extract func(row *goquery.Selection) (string, bool)
}

func selectionText(sel *goquery.Selection) (string, bool) {
	text := strings.TrimSpace(sel.First().Text())
	return text, text != ""
}

func cellText(selector string) func(*goquery.Selection) (string, bool) {
	return func(row *goquery.Selection) (string, bool) {
		return selectionText(row.Find(selector))
	}
}

func anchorHref(selector string) func(*goquery.Selection) (string, bool) {
	return func(row *goquery.Selection) (string, bool) {
		href, ok := row.Find(selector).First().Attr("href")
		href = strings.TrimSpace(href)
		return href, ok && href != ""
	}
}

var titleStrategies = []fieldStrategy{
	{name: "title-cell-anchor", extract: cellText("td.views-field-title a")},
	{name: "title-cell", extract: cellText("td.views-field-title")},
	{name: "heading-anchor", extract: cellText("h2 a, h3 a")},
}

var urlStrategies = []fieldStrategy{
	{name: "title-cell-anchor", extract: anchorHref("td.views-field-title a")},
	{name: "action-cell-anchor", extract: anchorHref("td.action-cell a")},
	{name: "heading-anchor", extract: anchorHref("h2 a, h3 a")},
}

var agencyStrategies = []fieldStrategy{
	{name: "agency-cell", extract: cellText("td.views-field-field-report-agency-reviewed")},
	{name: "agency-field", extract: cellText(".field--name-field-agency, .agency")},
}

var typeStrategies = []fieldStrategy{
	{name: "type-cell", extract: cellText("td.views-field-field-report-type")},
	{name: "type-field", extract: cellText(".field--name-field-report-type, .report-type")},
}

var abstractStrategies = []fieldStrategy{
	{name: "body-cell", extract: cellText("td.views-field-body")},
	{name: "summary-field", extract: cellText(".field--name-body, .report-summary, .summary")},
}

var dateAttrStrategies = []fieldStrategy{
	{name: "date-cell-time-attr", extract: func(row *goquery.Selection) (string, bool) {
		attr, ok := row.Find("td.views-field-field-report-date-issued time").First().Attr("datetime")
		return strings.TrimSpace(attr), ok && strings.TrimSpace(attr) != ""
	}},
	{name: "any-time-attr", extract: func(row *goquery.Selection) (string, bool) {
		attr, ok := row.Find("time").First().Attr("datetime")
		return strings.TrimSpace(attr), ok && strings.TrimSpace(attr) != ""
	}},
}

var dateTextStrategies = []fieldStrategy{
	{name: "date-cell-text", extract: cellText("td.views-field-field-report-date-issued")},
	{name: "date-field-text", extract: cellText(".field--name-field-publish-date, .date, .report-date")},
}

func firstMatch(row *goquery.Selection, strategies []fieldStrategy) (value, strategy string, ok bool) {
	for _, s := range strategies {
		if v, found := s.extract(row); found {
			return v, s.name, true
		}
	}
	return "", "", false
}

// Machine-readable datetime attributes, most specific first.
var attrDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02",
}

// Human-readable date texts seen on the listing over time.
var textDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"2006-01-02",
	"02-01-2006",
}

// ListingParser extracts partial report records from one listing page.
type ListingParser struct {
	base   *url.URL
	logger *zap.Logger
	now    func() time.Time
}

// NewListingParser wires a parser resolving relative links against baseURL.
func NewListingParser(baseURL string, logger *zap.Logger) (*ListingParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	return &ListingParser{base: base, logger: logger, now: time.Now}, nil
}

// Parse extracts report records from a listing page's markup. A row yields
// a record only if title, URL, and agency are all present; other rows are
// skipped silently. Missing dates degrade to "now" rather than failing.
func (p *ListingParser) Parse(markup string) ([]report.Report, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing markup: %w", err)
	}

	rows := doc.Find("tr.listing-table__row")
	if rows.Length() == 0 {
		rows = doc.Find("table tbody tr")
	}

	reports := make([]report.Report, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		if rec, ok := p.parseRow(row); ok {
			reports = append(reports, rec)
		}
	})
	return reports, nil
}

func (p *ListingParser) parseRow(row *goquery.Selection) (report.Report, bool) {
	title, _, ok := firstMatch(row, titleStrategies)
	if !ok {
		return report.Report{}, false
	}
	rawURL, _, ok := firstMatch(row, urlStrategies)
	if !ok {
		p.logger.Debug("row has title but no link, skipping", zap.String("title", title))
		return report.Report{}, false
	}
	agencyName, _, ok := firstMatch(row, agencyStrategies)
	if !ok {
		p.logger.Debug("row has no agency, skipping", zap.String("title", title))
		return report.Report{}, false
	}

	absolute := p.resolveURL(rawURL)

	rec := report.Report{
		Title:         title,
		URL:           absolute,
		AgencyName:    agencyName,
		AgencyID:      NormalizeAgencyID(agencyName),
		ReportID:      DeriveReportID(absolute, title),
		ReportType:    "Report",
		PublishedDate: p.parseDate(row, title),
	}

	if reportType, _, ok := firstMatch(row, typeStrategies); ok {
		rec.ReportType = reportType
	}
	if abstract, _, ok := firstMatch(row, abstractStrategies); ok {
		rec.Abstract = abstract
	} else {
		rec.Abstract = title
	}
	rec.PassedKeywordFilter = PassesKeywordFilter(rec.Title, rec.Abstract)

	return rec, true
}

func (p *ListingParser) resolveURL(raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return p.base.ResolveReference(ref).String()
}

// parseDate prefers a machine-readable timestamp attribute, falls back to
// known human-readable formats, and degrades to "now" on total failure.
func (p *ListingParser) parseDate(row *goquery.Selection, title string) time.Time {
	if attr, _, ok := firstMatch(row, dateAttrStrategies); ok {
		for _, layout := range attrDateLayouts {
			if parsed, err := time.Parse(layout, attr); err == nil {
				return parsed
			}
		}
	}
	if text, _, ok := firstMatch(row, dateTextStrategies); ok {
		text = strings.TrimSpace(text)
		for _, layout := range textDateLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				return parsed
			}
		}
		p.logger.Warn("could not parse report date, using current time",
			zap.String("date_text", text), zap.String("title", title))
	} else {
		p.logger.Warn("report row has no date, using current time", zap.String("title", title))
	}
	return p.now()
}

var (
	nodeIDExpr   = regexp.MustCompile(`/node/(\d+)`)
	slugExpr     = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// DeriveReportID produces the stable natural key for a report: a numeric
// node id embedded in the URL when present, else the URL's final slug
// segment, else a slugified prefix of the title.
func DeriveReportID(rawURL, title string) string {
	if m := nodeIDExpr.FindStringSubmatch(rawURL); m != nil {
		return "oversight-" + m[1]
	}

	if u, err := url.Parse(rawURL); err == nil && strings.Contains(u.Path, "/report") {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := segments[len(segments)-1]; slugExpr.MatchString(last) {
			return last
		}
	}

	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 50 {
		slug = strings.Trim(slug[:50], "-")
	}
	return "report-" + slug
}
