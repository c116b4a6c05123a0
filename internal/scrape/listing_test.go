package scrape

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser(t *testing.T) *ListingParser {
	t.Helper()
	p, err := NewListingParser("https://www.oversight.gov", zap.NewNop())
	require.NoError(t, err)
	p.now = func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func listingRow(title, href, agency, reportType, date string) string {
	var b strings.Builder
	b.WriteString(`<tr class="listing-table__row">`)
	if title != "" {
		fmt.Fprintf(&b, `<td class="views-field-title"><a href="%s">%s</a></td>`, href, title)
	}
	if agency != "" {
		fmt.Fprintf(&b, `<td class="views-field-field-report-agency-reviewed">%s</td>`, agency)
	}
	if reportType != "" {
		fmt.Fprintf(&b, `<td class="views-field-field-report-type">%s</td>`, reportType)
	}
	if date != "" {
		fmt.Fprintf(&b, `<td class="views-field-field-report-date-issued"><time datetime="%s">%s</time></td>`, date, date)
	}
	b.WriteString(`<td class="action-cell"><a href="` + href + `">View</a></td></tr>`)
	return b.String()
}

func listingPage(rows ...string) string {
	return `<html><body><table><tbody>` + strings.Join(rows, "") + `</tbody></table></body></html>`
}

func TestParseExtractsCompleteRows(t *testing.T) {
	t.Parallel()

	markup := listingPage(listingRow(
		"Audit of Contract Fraud Controls", "/node/98765",
		"Department of Defense", "Audit", "2026-08-20"))

	reports, err := newTestParser(t).Parse(markup)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rec := reports[0]
	require.Equal(t, "Audit of Contract Fraud Controls", rec.Title)
	require.Equal(t, "https://www.oversight.gov/node/98765", rec.URL)
	require.Equal(t, "oversight-98765", rec.ReportID)
	require.Equal(t, "Department of Defense", rec.AgencyName)
	require.Equal(t, "DOD", rec.AgencyID)
	require.Equal(t, "Audit", rec.ReportType)
	require.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), rec.PublishedDate)
	require.True(t, rec.PassedKeywordFilter)
	// Listings carry no body text, so the title stands in for the abstract.
	require.Equal(t, rec.Title, rec.Abstract)
}

func TestParseSkipsRowsMissingRequiredFields(t *testing.T) {
	t.Parallel()

	markup := listingPage(
		listingRow("Complete Row", "/node/1", "Department of Justice", "Audit", "2026-08-20"),
		listingRow("", "/node/2", "Department of Justice", "Audit", "2026-08-20"),
		listingRow("No Agency Row", "/node/3", "", "Audit", "2026-08-20"),
	)

	reports, err := newTestParser(t).Parse(markup)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "Complete Row", reports[0].Title)
}

func TestParseFallsBackToTextDates(t *testing.T) {
	t.Parallel()

	row := `<tr class="listing-table__row">
		<td class="views-field-title"><a href="/node/5">Improper Payments Review</a></td>
		<td class="views-field-field-report-agency-reviewed">Department of Labor</td>
		<td class="views-field-field-report-date-issued">August 15, 2026</td>
	</tr>`

	reports, err := newTestParser(t).Parse(listingPage(row))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), reports[0].PublishedDate)
}

func TestParseUsesNowWhenDateIsMissing(t *testing.T) {
	t.Parallel()

	row := `<tr class="listing-table__row">
		<td class="views-field-title"><a href="/node/6">Undated Investigation</a></td>
		<td class="views-field-field-report-agency-reviewed">Department of Energy</td>
	</tr>`

	reports, err := newTestParser(t).Parse(listingPage(row))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC), reports[0].PublishedDate)
}

func TestParseDefaultsReportType(t *testing.T) {
	t.Parallel()

	markup := listingPage(listingRow(
		"Untyped Report on Waste", "/node/7", "Department of Commerce", "", "2026-08-20"))

	reports, err := newTestParser(t).Parse(markup)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "Report", reports[0].ReportType)
}

func TestDeriveReportID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		url   string
		title string
		want  string
	}{
		{
			name: "node id",
			url:  "https://www.oversight.gov/node/12345",
			want: "oversight-12345",
		},
		{
			name: "report path slug",
			url:  "https://www.oversight.gov/report/dod/audit-of-contract-oversight",
			want: "audit-of-contract-oversight",
		},
		{
			name:  "title fallback",
			url:   "https://www.oversight.gov/some/page?id=9",
			title: "Audit of Grant Management!",
			want:  "report-audit-of-grant-management",
		},
		{
			name:  "title fallback is capped",
			url:   "https://example.gov/misc",
			title: strings.Repeat("very long title ", 10),
			want:  "report-" + strings.Trim(strings.Repeat("very-long-title-", 10)[:50], "-"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DeriveReportID(tc.url, tc.title))
		})
	}
}

func TestNormalizeAgencyID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		agency string
		want   string
	}{
		{"Department of Defense", "DOD"},
		{"Department of Health and Human Services", "HHS"},
		{"U.S. Department of State", "DOS"},
		{"Department of the Treasury", "TREAS"},
		{"Tennessee Valley Authority (TVA)", "TVA"},
		{"National Science Foundation", "NSF"},
		// Initials come from runes, not bytes, so accented names stay
		// valid UTF-8.
		{"École Polytechnique Fédérale", "ÉPF"},
	}
	for _, tc := range cases {
		got := NormalizeAgencyID(tc.agency)
		require.Equal(t, tc.want, got, tc.agency)
		require.True(t, utf8.ValidString(got), tc.agency)
	}
}

func TestPassesKeywordFilter(t *testing.T) {
	t.Parallel()

	require.True(t, PassesKeywordFilter("Major Fraud Uncovered", ""))
	require.True(t, PassesKeywordFilter("Annual Review", "substantiated allegations of misconduct"))
	require.True(t, PassesKeywordFilter("WHISTLEBLOWER Complaint", ""))
	require.False(t, PassesKeywordFilter("Quarterly Financial Statement", "clean opinion issued"))
}
