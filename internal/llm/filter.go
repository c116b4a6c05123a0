package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/report"
)

const filterPrompt = `You are a journalist evaluating Inspector General reports for newsworthiness.

Report:
Title: %s
Agency: %s
Type: %s
Published: %s
Abstract: %s

Determine if this report is newsworthy enough to share publicly.

NEWSWORTHY criteria (any of these):
- Fraud cases, especially $1M+
- Criminal investigations or charges
- Major waste/abuse ($1M+ wasted)
- Significant agency failures affecting public
- Whistleblower revelations
- High-profile mismanagement
- Public safety/health issues
- Major security breaches
- Corruption or bribery
- Large-scale embezzlement or theft

NOT newsworthy:
- Routine financial audits with clean findings
- Minor process recommendations
- IT infrastructure reports (unless breach)
- Accounting discrepancies under $100K
- Standard compliance checks
- Positive performance reviews
- Routine management advisories

Extract information:
- Dollar amount mentioned (null if none or unclear, integer if found)
- Criminal investigation involved (true/false)
- Topic tags (1-3 from: fraud, waste, mismanagement, security, safety, healthcare, defense, criminal, corruption)

Score 1-10 where:
- 10 = Major fraud/criminal case with massive impact
- 8-9 = Significant waste/abuse or serious misconduct
- 6-7 = Notable mismanagement or medium-sized fraud
- 4-5 = Minor issues but still public interest
- 1-3 = Routine/administrative

Only consider newsworthy if score >= 6.

Respond with ONLY valid JSON (no markdown, no explanation):
{
    "newsworthy": true,
    "score": 8,
    "reason": "Major fraud case with criminal charges and $2M in losses",
    "dollar_amount": 2000000,
    "criminal": true,
    "topics": ["fraud", "criminal"]
}`

const maxAbstractChars = 1500

// filterDecision mirrors the JSON contract. The required fields are pointers
// so a reply that omits them is distinguishable from zero values.
type filterDecision struct {
	Newsworthy   *bool    `json:"newsworthy"`
	Score        *int     `json:"score"`
	Reason       *string  `json:"reason"`
	DollarAmount *int64   `json:"dollar_amount"`
	Criminal     bool     `json:"criminal"`
	Topics       []string `json:"topics"`
}

// FilterReport asks the model whether a report is worth posting about.
func (c *Client) FilterReport(ctx context.Context, rec *report.Report) (res *report.FilterResult, err error) {
	defer func() { observe("filter", err) }()

	abstract := rec.Excerpt(maxAbstractChars)
	prompt := fmt.Sprintf(filterPrompt, rec.Title, rec.AgencyName, rec.ReportType,
		rec.PublishedDate.Format("2006-01-02"), abstract)

	reply, err := c.complete(ctx, prompt, 200, 0.3, true)
	if err != nil {
		return nil, fmt.Errorf("filter call for %s: %w", rec.ReportID, err)
	}

	var decision filterDecision
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &decision); err != nil {
		return nil, fmt.Errorf("decode filter reply for %s: %w", rec.ReportID, err)
	}
	if decision.Newsworthy == nil || decision.Score == nil || decision.Reason == nil {
		return nil, fmt.Errorf("filter reply for %s missing required fields", rec.ReportID)
	}

	res = &report.FilterResult{
		Newsworthy:   *decision.Newsworthy,
		Score:        *decision.Score,
		Reason:       *decision.Reason,
		DollarAmount: decision.DollarAmount,
		Criminal:     decision.Criminal,
		Topics:       decision.Topics,
	}
	c.logger.Info("filter decision",
		zap.String("report_id", rec.ReportID),
		zap.Bool("newsworthy", res.Newsworthy),
		zap.Int("score", res.Score))
	return res, nil
}

// stripCodeFence unwraps a reply the model insisted on fencing anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
