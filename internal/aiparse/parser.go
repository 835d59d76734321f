// Package aiparse turns a chat message into lead fields by asking a remote
// language model for a JSON object.
package aiparse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/model"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = eris.New("aiparse: empty response")

// Completer sends a single prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Parser extracts lead fields with a Completer. It holds no state between
// calls and is safe for concurrent use.
type Parser struct {
	completer Completer
}

// New creates a Parser.
func New(c Completer) *Parser {
	return &Parser{completer: c}
}

const promptTemplate = `Parse this roofing sales group chat message into lead information and return ONLY a JSON object with these fields. Omit any field that is not clearly present; do not guess.

Message: %q

Fields:
- firstName: customer's first name
- lastName: customer's last name
- address: property street address only
- phoneNumber: customer's phone number
- claimNumber: insurance claim number
- claimCompany: insurance company name
- nextFollowUpDate: any mentioned appointment or follow-up time or date
- claimInfo: insurance claim details, damage description or repair needs

Return only valid JSON, no explanations and no markdown code fences.

Example: {"firstName": "John", "lastName": "Smith", "address": "123 Main St", "claimInfo": "storm damage"}`

// Prompt returns the instruction sent to the model for text.
func Prompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// Parse asks the model for the fields in text. It fails when the call fails,
// the reply is empty or the reply is not a JSON object. A successful result
// may still lack a name; callers decide what that means.
func (p *Parser) Parse(ctx context.Context, text string) (model.ExtractedFields, error) {
	raw, err := p.completer.Complete(ctx, Prompt(text))
	if err != nil {
		return model.ExtractedFields{}, eris.Wrap(err, "aiparse: complete")
	}
	if strings.TrimSpace(raw) == "" {
		return model.ExtractedFields{}, ErrEmptyResponse
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &obj); err != nil {
		return model.ExtractedFields{}, eris.Wrapf(err, "aiparse: decode response %.80q", raw)
	}

	f := fieldsFromObject(obj)
	f.RawMessage = model.Text(text)
	return f, nil
}

// fieldAliases maps reply keys onto the canonical field set. Models
// sometimes answer with shortened keys despite the prompt.
var fieldAliases = map[string]string{
	"phone":        "phoneNumber",
	"time":         "nextFollowUpDate",
	"followUpDate": "nextFollowUpDate",
	"insurance":    "claimCompany",
}

// placeholders are values a model emits instead of omitting a field.
var placeholders = map[string]bool{
	"": true, "null": true, "none": true, "n/a": true, "na": true,
	"unknown": true, "unspecified": true, "not specified": true, "not provided": true,
}

func fieldsFromObject(obj map[string]any) model.ExtractedFields {
	values := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := scalarString(v)
		if !ok || placeholders[strings.ToLower(s)] {
			continue
		}
		if canonical, ok := fieldAliases[k]; ok {
			if _, exists := obj[canonical]; exists {
				continue
			}
			k = canonical
		}
		values[k] = s
	}

	return model.ExtractedFields{
		FirstName:        model.Text(values["firstName"]),
		LastName:         model.Text(values["lastName"]),
		Address:          model.Text(values["address"]),
		PhoneNumber:      model.Text(values["phoneNumber"]),
		ClaimNumber:      model.Text(values["claimNumber"]),
		ClaimCompany:     model.Text(values["claimCompany"]),
		NextFollowUpDate: model.Text(values["nextFollowUpDate"]),
		ClaimInfo:        model.Text(values["claimInfo"]),
	}
}

// scalarString renders strings and numbers; anything else is ignored.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", t)), true
	default:
		return "", false
	}
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
