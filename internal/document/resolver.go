// Package document locates a report's attached PDF and extracts a bounded
// text excerpt from it.
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Ref describes a resolved document. Text is empty when the file was too
// large to extract or extraction failed; the URL is still reported so the
// record keeps a pointer to the source document.
type Ref struct {
	URL        string
	Text       string
	PagesRead  int
	TotalPages int
	Truncated  bool
}

// Limits bounds download size and extraction volume.
type Limits struct {
	MaxFileSize int64 // bytes; files larger than this are not downloaded
	MaxPages    int
	MaxChars    int
}

// PageFetcher retrieves the landing page markup.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Resolver finds the first PDF link on a report's landing page and
// extracts text from it within the configured limits.
type Resolver struct {
	fetcher PageFetcher
	client  *http.Client
	limits  Limits
	logger  *zap.Logger
}

// NewResolver wires a resolver. client is used for the HEAD size probe and
// the PDF download; it should share the fetcher's timeout.
func NewResolver(fetcher PageFetcher, client *http.Client, limits Limits, logger *zap.Logger) *Resolver {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = 10 << 20
	}
	if limits.MaxPages <= 0 {
		limits.MaxPages = 20
	}
	if limits.MaxChars <= 0 {
		limits.MaxChars = 50000
	}
	return &Resolver{fetcher: fetcher, client: client, limits: limits, logger: logger}
}

// Resolve fetches the landing page and extracts text from its first PDF
// attachment. It returns (nil, nil) when the page has no PDF link, and a
// Ref without text when the file is oversized or unextractable; ingestion
// continues on listing data alone in those cases.
func (r *Resolver) Resolve(ctx context.Context, landingURL string) (*Ref, error) {
	markup, err := r.fetcher.Fetch(ctx, landingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}

	pdfURL, found := findPDFLink(markup, landingURL)
	if !found {
		r.logger.Debug("no document link on landing page", zap.String("url", landingURL))
		return nil, nil
	}

	size, err := r.probeSize(ctx, pdfURL)
	if err != nil {
		r.logger.Warn("document size probe failed", zap.String("url", pdfURL), zap.Error(err))
	} else if size > r.limits.MaxFileSize {
		r.logger.Info("document too large, skipping extraction",
			zap.String("url", pdfURL), zap.Int64("bytes", size))
		return &Ref{URL: pdfURL}, nil
	}

	data, err := r.download(ctx, pdfURL)
	if err != nil {
		r.logger.Warn("document download failed", zap.String("url", pdfURL), zap.Error(err))
		return &Ref{URL: pdfURL}, nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		r.logger.Warn("document unparseable", zap.String("url", pdfURL), zap.Error(err))
		return &Ref{URL: pdfURL}, nil
	}

	ref := extract(&pdfSource{reader: reader}, r.limits, r.logger)
	ref.URL = pdfURL
	r.logger.Info("document extracted",
		zap.String("url", pdfURL),
		zap.Int("pages_read", ref.PagesRead),
		zap.Int("total_pages", ref.TotalPages),
		zap.Int("chars", len(ref.Text)),
		zap.Bool("truncated", ref.Truncated))
	return &ref, nil
}

// findPDFLink returns the first anchor whose target path ends in .pdf,
// resolved against the landing page URL.
func findPDFLink(markup, landingURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", false
	}
	base, err := url.Parse(landingURL)
	if err != nil {
		return "", false
	}

	var result string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if strings.HasSuffix(strings.ToLower(resolved.Path), ".pdf") {
			result = resolved.String()
			return false
		}
		return true
	})
	return result, result != ""
}

// probeSize issues a metadata-only request for the document's size.
func (r *Resolver) probeSize(ctx context.Context, pdfURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pdfURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build head request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("no content length")
	}
	return resp.ContentLength, nil
}

func (r *Resolver) download(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.limits.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > r.limits.MaxFileSize {
		return nil, fmt.Errorf("document exceeds %d bytes", r.limits.MaxFileSize)
	}
	return data, nil
}
