package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// pageSource yields per-page plain text. Pages are 1-based, matching the
// underlying PDF reader.
type pageSource interface {
	NumPages() int
	PageText(n int) (string, error)
}

type pdfSource struct {
	reader *pdf.Reader
}

func (s *pdfSource) NumPages() int {
	return s.reader.NumPage()
}

func (s *pdfSource) PageText(n int) (string, error) {
	page := s.reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is missing", n)
	}
	return page.GetPlainText(nil)
}

// extract reads pages from src up to the page ceiling, accumulating
// normalized text up to the character ceiling. Extraction stops the
// instant the character budget would be exceeded, truncating the final
// page's contribution to exactly fill what remains. A failed page is
// logged and skipped; it never aborts the document.
func extract(src pageSource, limits Limits, logger *zap.Logger) Ref {
	total := src.NumPages()
	toRead := total
	if toRead > limits.MaxPages {
		toRead = limits.MaxPages
	}

	ref := Ref{
		TotalPages: total,
		Truncated:  total > limits.MaxPages,
	}

	var buf strings.Builder
	written := 0
	for n := 1; n <= toRead; n++ {
		raw, err := src.PageText(n)
		if err != nil {
			logger.Warn("page extraction failed, skipping page",
				zap.Int("page", n), zap.Error(err))
			continue
		}

		contribution := normalize(raw)
		if contribution == "" {
			ref.PagesRead++
			continue
		}
		if buf.Len() > 0 {
			contribution = "\n" + contribution
		}

		// The ceiling counts characters, not bytes; cutting on a byte
		// offset could split a rune and leave invalid UTF-8 behind.
		length := utf8.RuneCountInString(contribution)
		remaining := limits.MaxChars - written
		if length >= remaining {
			buf.WriteString(string([]rune(contribution)[:remaining]))
			ref.PagesRead++
			if length > remaining {
				ref.Truncated = true
				break
			}
			if n < toRead {
				ref.Truncated = true
			}
			break
		}

		buf.WriteString(contribution)
		written += length
		ref.PagesRead++
	}

	ref.Text = buf.String()
	return ref
}

// normalize trims each line and drops blank ones.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
