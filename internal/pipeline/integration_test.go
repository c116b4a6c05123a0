package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/fetch"
	"github.com/igwatch/igbot/internal/scrape"
)

func fixtureRow(title, href, agency, date string) string {
	agencyCell := ""
	if agency != "" {
		agencyCell = fmt.Sprintf(
			`<td class="views-field-field-report-agency-reviewed">%s</td>`, agency)
	}
	return fmt.Sprintf(`<tr class="listing-table__row">
		<td class="views-field-title"><a href="%s">%s</a></td>
		%s
		<td class="views-field-field-report-type">Audit</td>
		<td class="views-field-field-report-date-issued"><time datetime="%s">%s</time></td>
	</tr>`, href, title, agencyCell, date, date)
}

func fixturePage(rows ...string) string {
	page := `<html><body><table><tbody>`
	for _, row := range rows {
		page += row
	}
	return page + `</tbody></table></body></html>`
}

// Walks the real fetcher and listing scraper through the orchestrator
// against a two-page fixture: five rows on page one with one missing its
// agency, and a second page whose oldest date falls past the cutoff.
func TestPipelinePersistsListingFixtureEndToEnd(t *testing.T) {
	t.Parallel()

	pageOne := fixturePage(
		fixtureRow("Fraud at the Motor Pool", "/node/101", "Department of Defense", "2026-08-31"),
		fixtureRow("Improper Grant Payments", "/node/102", "Department of Education", "2026-08-31"),
		fixtureRow("Orphaned Row", "/node/103", "", "2026-08-30"),
		fixtureRow("Theft of Relief Funds", "/node/104", "Department of Health and Human Services", "2026-08-30"),
		fixtureRow("Whistleblower Retaliation", "/node/105", "Department of Veterans Affairs", "2026-08-29"),
	)
	pageTwo := fixturePage(
		fixtureRow("Stale Audit One", "/node/90", "Department of Labor", "2026-08-25"),
		fixtureRow("Stale Audit Two", "/node/91", "Department of Energy", "2026-08-22"),
		fixtureRow("Stale Audit Three", "/node/92", "Department of Justice", "2026-08-01"),
	)

	var pagesServed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed.Add(1)
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprint(w, pageOne)
		case "2":
			fmt.Fprint(w, pageTwo)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := fetch.New(fetch.Config{MaxRetries: 1}, zap.NewNop())
	parser, err := scrape.NewListingParser(srv.URL, zap.NewNop())
	require.NoError(t, err)
	scraper := scrape.New(fetcher, parser, nil, scrape.Config{
		BaseURL:     srv.URL,
		ListingPath: "/reports/federal",
		MaxPages:    10,
	}, zap.NewNop())

	store := newFakeStore()
	poster := &fakePoster{}
	filter := &fakeFilter{}
	p := New(store, scraper, filter, &fakeSummarizer{}, poster,
		Options{DaysBack: 3}, zap.NewNop())
	// Midnight keeps the cutoff at 2026-08-29 exactly, so the oldest kept
	// row sits right on the boundary and still counts as recent.
	p.now = func() time.Time {
		return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	}

	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	// Four of page one's five rows survive (the agency-less row is
	// skipped); page two is all past the cutoff, so nothing from it lands
	// and page three is never requested.
	require.Equal(t, 4, sum.Scraped)
	require.Equal(t, 4, sum.Saved)
	require.Len(t, store.byKey, 4)
	require.EqualValues(t, 2, pagesServed.Load())
	for _, key := range []string{"oversight-101", "oversight-102", "oversight-104", "oversight-105"} {
		require.Contains(t, store.byKey, key)
	}
	require.NotContains(t, store.byKey, "oversight-90")

	// Every surviving row carries an interesting keyword, so all four reach
	// the filter; only the fraud row is judged newsworthy and posted.
	require.Equal(t, 4, filter.calls)
	require.Equal(t, 4, sum.Filtered)
	require.Equal(t, 1, sum.Newsworthy)
	require.Equal(t, 1, sum.Posted)

	// A re-run upserts the same rows and creates nothing new.
	idsAfterFirst := store.nextID
	sum, err = p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, sum.Saved)
	require.Len(t, store.byKey, 4)
	require.Equal(t, idsAfterFirst, store.nextID)
	require.Equal(t, 0, sum.Posted)
}
