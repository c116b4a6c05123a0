// Package report defines core types shared across subsystems.
package report

import (
	"encoding/json"
	"fmt"
	"time"
)

// Report is one discovered oversight document. ReportID is the natural key:
// derived from the source URL (or a title slug) and stable across repeated
// scrapes of the same item.
type Report struct {
	ID         int64  `json:"id"`
	ReportID   string `json:"report_id"`
	URL        string `json:"url"`
	AgencyID   string `json:"agency_id"`
	AgencyName string `json:"agency_name"`
	Title      string `json:"title"`
	ReportType string `json:"report_type"`

	PublishedDate time.Time `json:"published_date"`
	Abstract      string    `json:"abstract"`

	DocumentURL       string `json:"document_url,omitempty"`
	DocumentText      string `json:"document_text,omitempty"`
	DocumentPageCount int    `json:"document_page_count,omitempty"`

	// Stage fields. PassedLLMFilter and NewsworthyScore are nil until the
	// LLM filter phase has evaluated the report.
	PassedKeywordFilter bool       `json:"passed_keyword_filter"`
	PassedLLMFilter     *bool      `json:"passed_llm_filter,omitempty"`
	NewsworthyScore     *int       `json:"newsworthy_score,omitempty"`
	LLMFilterReason     string     `json:"llm_filter_reason,omitempty"`
	DollarAmount        *int64     `json:"dollar_amount,omitempty"`
	Criminal            bool       `json:"criminal"`
	Topics              []string   `json:"topics,omitempty"`
	Summary             string     `json:"summary,omitempty"`
	PostText            string     `json:"post_text,omitempty"`
	Posted              bool       `json:"posted"`
	PostedAt            *time.Time `json:"posted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Excerpt returns the best available text for LLM evaluation: the extracted
// document text when present, the abstract otherwise, capped at limit runes.
func (r Report) Excerpt(limit int) string {
	text := r.DocumentText
	if text == "" {
		text = r.Abstract
	}
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

// FilterResult is the validated outcome of one LLM newsworthiness
// evaluation. Newsworthy, Score, and Reason are mandatory; a response
// missing any of them is treated as no result, not defaulted.
type FilterResult struct {
	Newsworthy   bool     `json:"newsworthy"`
	Score        int      `json:"score"`
	Reason       string   `json:"reason"`
	DollarAmount *int64   `json:"dollar_amount"`
	Criminal     bool     `json:"criminal"`
	Topics       []string `json:"topics"`
}

// PostRecord is one successful external post of a report. Created only when
// a post succeeds and immutable thereafter.
type PostRecord struct {
	ID       int64     `json:"id"`
	ReportID int64     `json:"report_id"`
	PostURI  string    `json:"post_uri"`
	PostedAt time.Time `json:"posted_at"`
}

// Stats aggregates per-stage counts across the whole store.
type Stats struct {
	TotalReports        int64 `json:"total_reports"`
	PassedKeywordFilter int64 `json:"passed_keyword_filter"`
	PassedLLMFilter     int64 `json:"passed_llm_filter"`
	Posted              int64 `json:"posted"`
	PendingPosts        int64 `json:"pending_posts"`
}

// EncodeTopics serializes a topic set for storage in a text column.
func EncodeTopics(topics []string) (string, error) {
	if len(topics) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return "", fmt.Errorf("marshal topics: %w", err)
	}
	return string(raw), nil
}

// DecodeTopics restores a topic set from its stored encoding. Empty or
// malformed input decodes to no topics rather than an error: a bad value in
// one row must not poison a whole stage query.
func DecodeTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil
	}
	if len(topics) == 0 {
		return nil
	}
	return topics
}
