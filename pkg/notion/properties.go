package notion

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// maxTextContent is Notion's per-object limit on text content length.
const maxTextContent = 2000

// Title builds a title property holding s.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: richText(s),
	}
}

// RichText builds a rich-text property holding s, split into as many text
// objects as the content limit requires.
func RichText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: richText(s),
	}
}

// Date builds a date property. A nil t clears the date.
func Date(t *time.Time) notionapi.DateProperty {
	if t == nil {
		return notionapi.DateProperty{Type: notionapi.PropertyTypeDate}
	}
	d := notionapi.Date(*t)
	return notionapi.DateProperty{
		Type: notionapi.PropertyTypeDate,
		Date: &notionapi.DateObject{Start: &d},
	}
}

// Status builds a status property with the named option.
func Status(name string) notionapi.StatusProperty {
	return notionapi.StatusProperty{
		Type:   notionapi.PropertyTypeStatus,
		Status: notionapi.Status{Name: name},
	}
}

func richText(s string) []notionapi.RichText {
	chunks := chunk(s, maxTextContent)
	out := make([]notionapi.RichText, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: c},
		})
	}
	return out
}

// chunk splits s into pieces of at most n runes. Empty input yields no pieces.
func chunk(s string, n int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var out []string
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return append(out, string(runes))
}

// PlainText returns the concatenated text of a title or rich-text property.
func PlainText(props notionapi.Properties, name string) string {
	var rts []notionapi.RichText
	switch p := props[name].(type) {
	case *notionapi.TitleProperty:
		rts = p.Title
	case notionapi.TitleProperty:
		rts = p.Title
	case *notionapi.RichTextProperty:
		rts = p.RichText
	case notionapi.RichTextProperty:
		rts = p.RichText
	default:
		return ""
	}
	var sb strings.Builder
	for _, rt := range rts {
		switch {
		case rt.PlainText != "":
			sb.WriteString(rt.PlainText)
		case rt.Text != nil:
			sb.WriteString(rt.Text.Content)
		}
	}
	return sb.String()
}

// DateValue returns the start of a date property, or nil when unset.
func DateValue(props notionapi.Properties, name string) *time.Time {
	var obj *notionapi.DateObject
	switch p := props[name].(type) {
	case *notionapi.DateProperty:
		obj = p.Date
	case notionapi.DateProperty:
		obj = p.Date
	}
	if obj == nil || obj.Start == nil {
		return nil
	}
	t := time.Time(*obj.Start)
	return &t
}

// StatusName returns the selected option of a status property.
func StatusName(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.StatusProperty:
		return p.Status.Name
	case notionapi.StatusProperty:
		return p.Status.Name
	}
	return ""
}
