package document

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource serves fixed page texts; pages listed in broken fail.
type fakeSource struct {
	pages  []string
	broken map[int]bool
}

func (f *fakeSource) NumPages() int { return len(f.pages) }

func (f *fakeSource) PageText(n int) (string, error) {
	if f.broken[n] {
		return "", fmt.Errorf("damaged page %d", n)
	}
	return f.pages[n-1], nil
}

func testLimits() Limits {
	return Limits{MaxFileSize: 10 << 20, MaxPages: 20, MaxChars: 50000}
}

func pagesOf(n int, text string) []string {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = text
	}
	return pages
}

func TestExtractShortDocumentIsNotTruncated(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: []string{"first page", "second page"}}
	ref := extract(src, testLimits(), zap.NewNop())

	require.Equal(t, "first page\nsecond page", ref.Text)
	require.Equal(t, 2, ref.PagesRead)
	require.Equal(t, 2, ref.TotalPages)
	require.False(t, ref.Truncated)
}

func TestExtractStopsAtPageCeiling(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: pagesOf(25, "page text")}
	ref := extract(src, testLimits(), zap.NewNop())

	require.Equal(t, 20, ref.PagesRead)
	require.Equal(t, 25, ref.TotalPages)
	require.True(t, ref.Truncated)
	require.Equal(t, 20, strings.Count(ref.Text, "page text"))
}

func TestExtractTruncatesAtExactCharacterBudget(t *testing.T) {
	t.Parallel()

	// Three pages of 20k characters each overflow the 50k budget mid-page.
	src := &fakeSource{pages: pagesOf(3, strings.Repeat("a", 20000))}
	ref := extract(src, testLimits(), zap.NewNop())

	require.Len(t, ref.Text, 50000)
	require.True(t, ref.Truncated)
	require.Equal(t, 3, ref.PagesRead)
}

func TestExtractTruncatesMultibyteTextOnRuneBoundaries(t *testing.T) {
	t.Parallel()

	// Three pages of 20k three-byte runes overflow the budget mid-page; the
	// cut must land between runes so the stored text stays valid UTF-8.
	src := &fakeSource{pages: pagesOf(3, strings.Repeat("€", 20000))}
	ref := extract(src, testLimits(), zap.NewNop())

	require.True(t, utf8.ValidString(ref.Text))
	require.Equal(t, 50000, utf8.RuneCountInString(ref.Text))
	require.True(t, ref.Truncated)
	require.Equal(t, 3, ref.PagesRead)
}

func TestExtractExactBudgetFitWithPagesLeftIsTruncated(t *testing.T) {
	t.Parallel()

	// Two pages fill the budget exactly; the unread third page still counts
	// as truncation.
	limits := testLimits()
	limits.MaxChars = 21
	src := &fakeSource{pages: []string{strings.Repeat("a", 10), strings.Repeat("b", 10), "more"}}
	ref := extract(src, limits, zap.NewNop())

	require.Len(t, ref.Text, 21)
	require.True(t, ref.Truncated)
}

func TestExtractSkipsFailedPages(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		pages:  []string{"one", "two", "three"},
		broken: map[int]bool{2: true},
	}
	ref := extract(src, testLimits(), zap.NewNop())

	require.Equal(t, "one\nthree", ref.Text)
	require.Equal(t, 2, ref.PagesRead)
	require.False(t, ref.Truncated)
}

func TestExtractNormalizesPageText(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: []string{"  heading  \n\n\n   body line   \n"}}
	ref := extract(src, testLimits(), zap.NewNop())

	require.Equal(t, "heading\nbody line", ref.Text)
}

func TestExtractSkipsBlankPagesWithoutSeparators(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: []string{"one", "   \n  ", "two"}}
	ref := extract(src, testLimits(), zap.NewNop())

	require.Equal(t, "one\ntwo", ref.Text)
	require.Equal(t, 3, ref.PagesRead)
}
