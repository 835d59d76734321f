package model

// ExtractedFields is the best-effort result of parsing one chat message.
// Every field is optional; an absent field was not found.
type ExtractedFields struct {
	FirstName        Opt[string] `json:"firstName,omitzero"`
	LastName         Opt[string] `json:"lastName,omitzero"`
	Address          Opt[string] `json:"address,omitzero"`
	PhoneNumber      Opt[string] `json:"phoneNumber,omitzero"`
	ClaimNumber      Opt[string] `json:"claimNumber,omitzero"`
	ClaimCompany     Opt[string] `json:"claimCompany,omitzero"`
	NextFollowUpDate Opt[string] `json:"nextFollowUpDate,omitzero"`
	ClaimInfo        Opt[string] `json:"claimInfo,omitzero"`
	RawMessage       Opt[string] `json:"rawMessage,omitzero"`
}

// HasName reports whether a first or last name was resolved. A result
// without either is a parse failure, not a sparse lead.
func (f ExtractedFields) HasName() bool {
	return f.FirstName.IsSet() || f.LastName.IsSet()
}

// ParsePath records which strategy produced an ExtractedFields value.
type ParsePath string

const (
	ParsePathAI        ParsePath = "ai"
	ParsePathExtractor ParsePath = "extractor"
)
