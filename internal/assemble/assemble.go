// Package assemble turns extracted fields into Lead records: a fresh lead on
// first sighting of a customer, or a patched copy of the existing one.
package assemble

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/lead-intake/internal/model"
)

// Option configures an Assembler.
type Option func(*Assembler)

// WithIDFunc replaces the lead id generator.
func WithIDFunc(fn func() string) Option {
	return func(a *Assembler) { a.newID = fn }
}

// Assembler builds and patches leads. It holds no lead state.
type Assembler struct {
	newID func() string
}

// New creates an Assembler that issues random UUID lead ids.
func New(opts ...Option) *Assembler {
	a := &Assembler{newID: uuid.NewString}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Identity returns the (first, last, address) a lead assembled from fields
// would carry, with the same defaults NewLead applies. Either name may be the
// "Unspecified" sentinel, never blank. Deduplication queries
// with these values so a repeat message without an address still matches a
// lead stored with the address sentinel.
func Identity(fields model.ExtractedFields) (first, last, address string) {
	return fields.FirstName.OrElse(model.FirstNameUnspecified),
		fields.LastName.OrElse(model.LastNameUnspecified),
		fields.Address.OrElse(model.AddressNotSpecified)
}

// NewLead builds a lead for a customer seen for the first time. Missing
// optional fields get their sentinel so consumers never see a blank.
func (a *Assembler) NewLead(fields model.ExtractedFields, sender string, ts time.Time) model.Lead {
	first, last, address := Identity(fields)
	return model.Lead{
		ID:                       a.newID(),
		Timestamp:                ts,
		Stage:                    model.StageNew,
		LastStageUpdateTimestamp: ts,
		FirstName:                first,
		LastName:                 last,
		Address:                  address,
		Sender:                   sender,
		PhoneNumber:              fields.PhoneNumber.OrElse(model.PhoneNotSpecified),
		ClaimNumber:              fields.ClaimNumber.OrElse(model.ClaimNumberNotSpecified),
		ClaimCompany:             fields.ClaimCompany.OrElse(model.ClaimCompanyNotSpecified),
		NextFollowUpDate:         fields.NextFollowUpDate.OrElse(""),
		ClaimInfo:                fields.ClaimInfo.OrElse(""),
		OriginalMessage:          fields.RawMessage.OrElse(""),
	}
}

// UpdateLead patches existing with the fields a newer message supplied. Only
// present, non-blank fields overwrite; identity, id, creation time and stage
// are kept. The message is appended to the lead's message log as a dated
// note and LastModifiedTimestamp is set to ts.
func (a *Assembler) UpdateLead(existing model.Lead, fields model.ExtractedFields, sender, text string, ts time.Time) model.Lead {
	l := existing

	patch(&l.Address, fields.Address, model.AddressNotSpecified)
	patch(&l.PhoneNumber, fields.PhoneNumber, model.PhoneNotSpecified)
	patch(&l.ClaimNumber, fields.ClaimNumber, model.ClaimNumberNotSpecified)
	patch(&l.ClaimCompany, fields.ClaimCompany, model.ClaimCompanyNotSpecified)
	patch(&l.NextFollowUpDate, fields.NextFollowUpDate, "")
	patch(&l.ClaimInfo, fields.ClaimInfo, "")

	l.OriginalMessage = AppendNote(l.OriginalMessage, sender, text, ts)
	modified := ts
	l.LastModifiedTimestamp = &modified
	return l
}

// patch overwrites *dst with v when v carries a real value. A value equal to
// the field's own sentinel counts as blank.
func patch(dst *string, v model.Opt[string], sentinel string) {
	s, ok := v.Get()
	if !ok {
		return
	}
	s = strings.TrimSpace(s)
	if s == "" || (sentinel != "" && strings.EqualFold(s, sentinel)) {
		return
	}
	*dst = s
}

// AppendNote adds a dated note to a message log.
func AppendNote(log, sender, text string, ts time.Time) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return log
	}
	note := fmt.Sprintf("--- Update from %s on %s ---\n%s", sender, ts.UTC().Format(time.RFC3339), text)
	if strings.TrimSpace(log) == "" {
		return note
	}
	return log + "\n\n" + note
}
