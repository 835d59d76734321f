package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// IdentityKey is the normalized (first name, last name, address) tuple used
// to decide whether two leads describe the same customer.
type IdentityKey struct {
	FirstName string
	LastName  string
	Address   string
}

// NewIdentityKey normalizes each component with Normalize.
func NewIdentityKey(first, last, address string) IdentityKey {
	return IdentityKey{
		FirstName: Normalize(first),
		LastName:  Normalize(last),
		Address:   Normalize(address),
	}
}

// String renders the key for logging.
func (k IdentityKey) String() string {
	return k.FirstName + "|" + k.LastName + "|" + k.Address
}

// Normalize applies NFKC, case-folds, trims and collapses internal whitespace
// runs to a single space. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	// NFKC runs first: compatibility forms such as ℍ or 𝐉 decompose to
	// uppercase letters that the fold must still see. The closing NFKC pass
	// recomposes anything the fold decomposed.
	// Caser values carry state and must not be shared across goroutines.
	folded := norm.NFKC.String(cases.Fold().String(norm.NFKC.String(s)))
	return strings.Join(strings.Fields(folded), " ")
}

// FindByIdentity returns the first lead in leads whose identity equals key.
// It is a linear scan.
func FindByIdentity(leads []Lead, key IdentityKey) (Lead, bool) {
	for _, l := range leads {
		if l.Identity() == key {
			return l, true
		}
	}
	return Lead{}, false
}
