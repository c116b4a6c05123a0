package scrape

import "strings"

// interestingKeywords are terms that flag a report as potentially
// newsworthy before any LLM evaluation happens.
var interestingKeywords = []string{
	"fraud", "waste", "abuse", "criminal", "investigation", "misconduct",
	"mismanagement", "violation", "deficiency", "failure", "breach",
	"unauthorized", "improper", "illegal", "theft", "embezzlement",
	"kickback", "bribery", "corruption", "whistleblower", "substantiated",
}

// PassesKeywordFilter reports whether any interesting keyword appears in
// the title or abstract, case-insensitively.
func PassesKeywordFilter(title, abstract string) bool {
	haystack := strings.ToLower(title + " " + abstract)
	for _, keyword := range interestingKeywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}
