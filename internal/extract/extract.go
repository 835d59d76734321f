// Package extract pulls lead fields out of free-text chat messages using
// deterministic pattern rules. It performs no I/O and never fails.
package extract

import (
	"strings"
	"unicode"

	"github.com/sells-group/lead-intake/internal/model"
)

const (
	minAddressLen = 10
	maxAddressLen = 100
)

// Extract returns the fields found in text. Absent fields are left unset; a
// result without a first or last name is not a lead (see
// model.ExtractedFields.HasName).
func Extract(text string) model.ExtractedFields {
	var f model.ExtractedFields
	if strings.TrimSpace(text) == "" {
		return f
	}

	f.RawMessage = model.Text(text)
	f.FirstName, f.LastName = extractName(text)
	f.Address = extractAddress(text)
	f.PhoneNumber = extractPhone(text)
	f.ClaimNumber = extractClaimNumber(text)
	f.ClaimCompany = extractClaimCompany(text)
	f.NextFollowUpDate = extractFollowUpDate(text)
	f.ClaimInfo = extractClaimInfo(text)
	return f
}

// extractName looks for a "First Last" pair on lines not written by a rep or
// the group itself. A pair opening a line wins over one found mid-line on any
// line. Failing both it falls back to any single capitalized word with an
// "Unspecified" last name. The fallback is noisy on ordinary capitalized nouns
// and is kept for compatibility with existing boards.
func extractName(text string) (first, last model.Opt[string]) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || skipLineRE.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}

	for _, anchored := range []bool{true, false} {
		for _, line := range lines {
			if f, l, ok := findNamePair(line, anchored); ok {
				return model.Some(f), model.Some(l)
			}
		}
	}

	for _, tok := range singleNameRE.FindAllString(text, -1) {
		if isNonCustomerToken(tok) || isInsurerToken(tok) {
			continue
		}
		return model.Some(tok), model.Some(model.LastNameUnspecified)
	}
	return model.None[string](), model.None[string]()
}

// findNamePair returns the first two adjacent capitalized words on line that
// are separated only by blanks and are both plausible name tokens. With
// anchored set only a pair starting the line qualifies. A two-word carrier
// such as "State Farm" is never a pair, and neither of its words starts one.
func findNamePair(line string, anchored bool) (string, string, bool) {
	locs := capitalizedRE.FindAllStringIndex(line, -1)
	for i := 0; i+1 < len(locs); i++ {
		a, b := locs[i], locs[i+1]
		if anchored && a[0] != 0 {
			break
		}
		gap := line[a[1]:b[0]]
		if gap == "" || strings.TrimFunc(gap, isBlank) != "" {
			continue
		}
		first, last := line[a[0]:a[1]], line[b[0]:b[1]]
		if isInsurerName(first + " " + last) {
			i++
			continue
		}
		if isNameToken(first) && isNameToken(last) {
			return first, last, true
		}
		if anchored {
			break
		}
	}
	return "", "", false
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}

func extractAddress(text string) model.Opt[string] {
	for _, m := range addressRE.FindAllString(text, -1) {
		addr := strings.Join(strings.Fields(m), " ")
		if n := len(addr); n >= minAddressLen && n <= maxAddressLen {
			return model.Some(addr)
		}
	}
	return model.None[string]()
}

func extractPhone(text string) model.Opt[string] {
	for _, loc := range phoneRE.FindAllStringIndex(text, -1) {
		if touchesAlnum(text, loc[0], loc[1]) {
			continue
		}
		return model.Some(strings.TrimSpace(text[loc[0]:loc[1]]))
	}
	return model.None[string]()
}

// touchesAlnum reports whether text[start:end] is glued to a letter or digit
// on either side, which means it is part of a longer token.
func touchesAlnum(text string, start, end int) bool {
	if start > 0 && isAlnum(rune(text[start-1])) {
		return true
	}
	return end < len(text) && isAlnum(rune(text[end]))
}

func isAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// extractClaimNumber accepts "claim #: X" or a bare "#X". The captured token
// must carry at least one digit so ordinary words after "claim" are ignored.
func extractClaimNumber(text string) model.Opt[string] {
	for _, re := range claimNumberREs {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if strings.ContainsAny(m[1], "0123456789") {
				return model.Some(m[1])
			}
		}
	}
	return model.None[string]()
}

func extractClaimCompany(text string) model.Opt[string] {
	for i, re := range insurerREs {
		if re.MatchString(text) {
			return model.Some(insuranceCompanies[i])
		}
	}
	return model.None[string]()
}

func extractFollowUpDate(text string) model.Opt[string] {
	for _, re := range followUpREs {
		if m := re.FindString(text); m != "" {
			return model.Text(m)
		}
	}
	return model.None[string]()
}

// extractClaimInfo keeps every clause that mentions damage or claim
// vocabulary, joined with ", ".
func extractClaimInfo(text string) model.Opt[string] {
	var clauses []string
	for _, c := range clauseSplitRE.Split(text, -1) {
		c = strings.Join(strings.Fields(c), " ")
		if c != "" && claimInfoRE.MatchString(c) {
			clauses = append(clauses, c)
		}
	}
	return model.Text(strings.Join(clauses, ", "))
}
