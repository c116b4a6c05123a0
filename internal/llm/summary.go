package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/igwatch/igbot/internal/report"
)

const summaryPrompt = `You are writing a social media post about a government Inspector General report.

Report:
Title: %s
Agency: %s
Type: %s
Published: %s
Key Finding: %s
Dollar Amount: %s
Criminal: %s
Topics: %s

Abstract:
%s

Write a compelling Bluesky post (like Twitter) that:
- Is 200-280 characters (NOT 280 words - be very concise!)
- Uses plain English (no jargon or bureaucratese)
- Highlights the most important finding
- Mentions dollar amounts if significant
- Notes if criminal charges involved
- Is factual and neutral (not sensational)
- Includes 1-2 relevant hashtags
- Ends with "Full report: [will be added]"

Example good posts:
"VA Chief of Staff substantiated for sexual harassment. Investigation found inappropriate conduct over 6 months. #Accountability #VA Full report: [will be added]"

"DOD wasted $2.3M on unused equipment that sat in storage for 3 years. Audit recommends better inventory management. #Waste #Defense Full report: [will be added]"

Respond with ONLY the post text (no quotes, no explanation, no markdown).`

const (
	urlPlaceholder       = "[will be added]"
	postCharLimit        = 300
	summaryAbstractChars = 800
)

// GeneratePost drafts a post for a newsworthy report and substitutes the
// report URL for the prompt placeholder. The result always fits the Bluesky
// character limit.
func (c *Client) GeneratePost(ctx context.Context, rec *report.Report) (post string, err error) {
	defer func() { observe("summary", err) }()

	criminal := "No"
	if rec.Criminal {
		criminal = "Yes"
	}
	reason := rec.LLMFilterReason
	if reason == "" {
		reason = "No reason provided"
	}
	prompt := fmt.Sprintf(summaryPrompt, rec.Title, rec.AgencyName, rec.ReportType,
		rec.PublishedDate.Format("2006-01-02"), reason,
		formatDollars(rec.DollarAmount), criminal,
		strings.Join(rec.Topics, ", "), rec.Excerpt(summaryAbstractChars))

	reply, err := c.complete(ctx, prompt, 150, 0.7, false)
	if err != nil {
		return "", fmt.Errorf("summary call for %s: %w", rec.ReportID, err)
	}

	return FinishPost(reply, rec.URL), nil
}

// FinishPost cleans a model draft and enforces the character limit: stray
// wrapping quotes are dropped, the placeholder becomes the report URL, and an
// overlong draft is cut back so the URL survives the trim.
func FinishPost(draft, url string) string {
	post := strings.TrimSpace(draft)
	if strings.HasPrefix(post, `"`) && strings.HasSuffix(post, `"`) && len(post) > 1 {
		post = post[1 : len(post)-1]
	}
	post = strings.ReplaceAll(post, urlPlaceholder, url)
	if len([]rune(post)) > postCharLimit {
		runes := []rune(post)
		keep := postCharLimit - len([]rune(url)) - 5
		if keep < 0 {
			keep = 0
		}
		if keep > len(runes) {
			keep = len(runes)
		}
		post = strings.TrimSpace(string(runes[:keep])) + "... " + url
	}
	return post
}

// FallbackPost builds a minimal post when drafting fails, so a newsworthy
// report is never silently dropped.
func FallbackPost(rec *report.Report) string {
	title := rec.Title
	if len([]rune(title)) > 150 {
		title = string([]rune(title)[:147]) + "..."
	}
	return fmt.Sprintf("New IG Report: %s\n\n%s\n\n%s", title, rec.AgencyName, rec.URL)
}

func formatDollars(amount *int64) string {
	if amount == nil {
		return "N/A"
	}
	switch v := *amount; {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.0fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("$%d", v)
	}
}
