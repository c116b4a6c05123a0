package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct {
	markup string
	err    error
}

func (s *stubFetcher) Fetch(context.Context, string) (string, error) {
	return s.markup, s.err
}

func TestResolveReturnsNilWhenPageHasNoDocumentLink(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{markup: `<html><body>
		<a href="/about">About</a>
		<a href="/reports/all">More reports</a>
	</body></html>`}
	r := NewResolver(fetcher, http.DefaultClient, Limits{}, zap.NewNop())

	ref, err := r.Resolve(context.Background(), "https://www.oversight.gov/node/1")
	require.NoError(t, err)
	require.Nil(t, ref)
}

func TestResolveSkipsExtractionForOversizedDocuments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", strconv.Itoa(25<<20))
	}))
	defer srv.Close()

	fetcher := &stubFetcher{markup: `<a href="` + srv.URL + `/files/report.pdf">Download</a>`}
	r := NewResolver(fetcher, srv.Client(), Limits{}, zap.NewNop())

	ref, err := r.Resolve(context.Background(), "https://www.oversight.gov/node/1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, srv.URL+"/files/report.pdf", ref.URL)
	require.Empty(t, ref.Text)
	require.False(t, ref.Truncated)
}

func TestResolveKeepsURLWhenDownloadFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "1024")
			return
		}
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher := &stubFetcher{markup: `<a href="` + srv.URL + `/files/report.pdf">Download</a>`}
	r := NewResolver(fetcher, srv.Client(), Limits{}, zap.NewNop())

	ref, err := r.Resolve(context.Background(), "https://www.oversight.gov/node/1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, srv.URL+"/files/report.pdf", ref.URL)
	require.Empty(t, ref.Text)
}

func TestFindPDFLinkResolvesRelativeHrefs(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
		<a href="/about">About</a>
		<a href="/sites/default/files/2026-08/audit.PDF">Audit report</a>
		<a href="/sites/default/files/other.pdf">Other</a>
	</body></html>`

	link, found := findPDFLink(markup, "https://www.oversight.gov/report/dod/audit")
	require.True(t, found)
	require.Equal(t, "https://www.oversight.gov/sites/default/files/2026-08/audit.PDF", link)
}

func TestFindPDFLinkIgnoresQueryOnlyMatches(t *testing.T) {
	t.Parallel()

	markup := `<a href="/download?file=report.pdf">Download</a>`
	_, found := findPDFLink(markup, "https://www.oversight.gov/node/1")
	require.False(t, found)
}
