package extract

import (
	"regexp"
	"strings"
)

// insuranceCompanies lists carriers recognized in message text. Order
// matters: the first carrier found wins.
var insuranceCompanies = []string{
	"State Farm", "USAA", "Liberty Mutual", "Farmers", "Nationwide", "Progressive",
	"Allstate", "Geico", "Travelers", "American Family", "Auto-Owners", "Erie",
	"Chubb", "Amica", "Mercury", "The Hartford", "Safeco", "MetLife", "AAA",
	"Encompass", "Esurance", "The General", "Root", "Lemonade", "Hippo",
}

// nonCustomerTokens are capitalized words that show up in group chatter but
// are never a homeowner's name.
var nonCustomerTokens = []string{
	"Lead", "Bot", "Chat", "Team", "Group", "Sales", "Park", "Creek", "Contract",
	"Let", "Added", "Removed", "Morning", "Today", "Tomorrow", "Week", "Call",
}

// pairStopwords are rejected as either half of a first/last name pair in
// addition to nonCustomerTokens, insurers and street suffixes.
var pairStopwords = map[string]bool{
	"hi": true, "hey": true, "hello": true, "thanks": true, "thank": true,
	"new": true, "customer": true, "homeowner": true, "name": true, "client": true,
	"mr": true, "mrs": true, "ms": true, "dr": true, "the": true, "and": true,
	"storm": true, "hail": true, "roof": true, "damage": true, "claim": true,
	"insurance": true, "inspection": true, "adjuster": true, "meeting": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true, "may": true,
	"june": true, "july": true, "august": true, "september": true, "october": true,
	"november": true, "december": true,
}

// streetSuffixes are the accepted trailing words of a street address.
var streetSuffixes = []string{
	"street", "st", "avenue", "ave", "road", "rd", "drive", "dr",
	"boulevard", "blvd", "lane", "ln", "court", "ct", "place", "pl", "way",
}

// skipLineRE matches lines written by a sales rep or posted by the group
// itself (announcements, membership changes, links, greetings).
var skipLineRE = regexp.MustCompile(`(?i)@|https?://|www\.|\b(?:i['’]m|we['’]re|let['’]s|who['’]s|everyone|all|team|bot|added|removed|joined|left the group|changed the group|pinned)\b|\bgood\s+(?:morning|afternoon|evening)\b|\bhappy\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

var (
	capitalizedRE = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	singleNameRE  = regexp.MustCompile(`\b[A-Z][a-z]{2,}\b`)

	addressRE = regexp.MustCompile(`(?i)\b\d+(?:[ \t]+[A-Za-z][A-Za-z.'-]*){1,6}?[ \t]+(?:` +
		strings.Join(streetSuffixes, "|") + `)\b\.?`)

	phoneRE = regexp.MustCompile(`(?:\+?1[-. ]?)?(?:\(\d{3}\)|\d{3})[-. ]?\d{3}[-. ]?\d{4}`)

	claimNumberREs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bclaim\s*(?:number|no\.?)?\s*#?\s*:?\s*([A-Z0-9][A-Z0-9_-]{5,})`),
		regexp.MustCompile(`#\s*([A-Z0-9][A-Z0-9_-]{5,})`),
	}

	followUpREs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:(?:this|next)\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?:\s+(?:morning|afternoon|evening|night))?\b`),
		regexp.MustCompile(`(?i)\b(?:today|tomorrow|tonight|this\s+week|next\s+week)\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`),
		regexp.MustCompile(`(?i)\b(?:january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sept|sep|october|oct|november|nov|december|dec)\.?\s+\d{1,2}(?:st|nd|rd|th)?\b`),
	}

	claimInfoRE   = regexp.MustCompile(`(?i)\b(?:damage|storm|hail|wind|leak|roof|gutter|siding|shingle|water|tree|tarp|filing|claim|inspect|inspection|adjuster)`)
	clauseSplitRE = regexp.MustCompile(`[.!?;,\n]+`)

	insurerREs = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(insuranceCompanies))
		for i, name := range insuranceCompanies {
			out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		}
		return out
	}()
)

// isNonCustomerToken reports whether tok contains any non-customer token,
// case-insensitively.
func isNonCustomerToken(tok string) bool {
	lower := strings.ToLower(tok)
	for _, nc := range nonCustomerTokens {
		if strings.Contains(lower, strings.ToLower(nc)) {
			return true
		}
	}
	return false
}

// isInsurerToken reports whether tok contains an insurer name,
// case-insensitively.
func isInsurerToken(tok string) bool {
	lower := strings.ToLower(tok)
	for _, name := range insuranceCompanies {
		if strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

// isInsurerName reports whether s is exactly a carrier name,
// case-insensitively.
func isInsurerName(s string) bool {
	for _, name := range insuranceCompanies {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func isStreetSuffix(tok string) bool {
	lower := strings.ToLower(tok)
	for _, s := range streetSuffixes {
		if lower == s {
			return true
		}
	}
	return false
}

// isNameToken reports whether tok can be one half of a first/last name pair.
func isNameToken(tok string) bool {
	lower := strings.ToLower(tok)
	if pairStopwords[lower] || isStreetSuffix(tok) {
		return false
	}
	for _, nc := range nonCustomerTokens {
		if strings.EqualFold(tok, nc) {
			return false
		}
	}
	for _, name := range insuranceCompanies {
		if strings.EqualFold(tok, name) {
			return false
		}
	}
	return true
}
