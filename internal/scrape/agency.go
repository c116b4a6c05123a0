package scrape

import (
	"regexp"
	"strings"
)

// agencyCode maps a department-name fragment to its short code. Matching is
// case-insensitive substring, first hit wins, so the list stays ordered.
type agencyCode struct {
	fragment string
	code     string
}

var agencyCodes = []agencyCode{
	{"health and human services", "HHS"},
	{"housing and urban development", "HUD"},
	{"environmental protection", "EPA"},
	{"veterans affairs", "VA"},
	{"homeland security", "DHS"},
	{"social security", "SSA"},
	{"small business", "SBA"},
	{"transportation", "DOT"},
	{"agriculture", "USDA"},
	{"commerce", "DOC"},
	{"defense", "DOD"},
	{"education", "ED"},
	{"energy", "DOE"},
	{"interior", "DOI"},
	{"justice", "DOJ"},
	{"labor", "DOL"},
	{"state", "DOS"},
	{"treasury", "TREAS"},
}

var acronymExpr = regexp.MustCompile(`\b([A-Z]{2,})\b`)

// NormalizeAgencyID converts an agency name to a short code: a known
// department fragment first, then an existing all-caps acronym in the name,
// then initials of the first three words.
func NormalizeAgencyID(agencyName string) string {
	lower := strings.ToLower(agencyName)
	for _, entry := range agencyCodes {
		if strings.Contains(lower, entry.fragment) {
			return entry.code
		}
	}

	if m := acronymExpr.FindStringSubmatch(agencyName); m != nil {
		return m[1]
	}

	var initials strings.Builder
	for i, word := range strings.Fields(agencyName) {
		if i >= 3 {
			break
		}
		initials.WriteString(strings.ToUpper(string([]rune(word)[0])))
	}
	return initials.String()
}
