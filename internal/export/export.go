// Package export writes lead lists as CSV, XLSX or YAML.
package export

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-intake/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// SheetName is the worksheet XLSX exports write to.
const SheetName = "Leads"

// Header is the column order of tabular exports.
var Header = []string{
	"ID", "Created", "Stage", "Stage Updated", "First Name", "Last Name",
	"Address", "Sender", "Phone", "Claim Number", "Insurance Company",
	"Next Follow Up", "Claim Info", "Last Modified", "Original Message",
}

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want csv, xlsx or yaml)", s)
	}
}

// Write encodes leads to w in the given format.
func Write(w io.Writer, format Format, leads []model.Lead) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, leads)
	case FormatXLSX:
		return WriteXLSX(w, leads)
	case FormatYAML:
		return WriteYAML(w, leads)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteCSV writes a header row followed by one row per lead.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, l := range leads {
		if err := cw.Write(Row(l)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", l.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes a single-sheet workbook.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, Header)
	for _, l := range leads {
		addRow(sheet, Row(l))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// WriteYAML writes the leads as a YAML sequence.
func WriteYAML(w io.Writer, leads []model.Lead) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if leads == nil {
		leads = []model.Lead{}
	}
	if err := enc.Encode(leads); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

// Row flattens a lead in Header order. Times are RFC3339 UTC.
func Row(l model.Lead) []string {
	modified := ""
	if l.LastModifiedTimestamp != nil {
		modified = formatTime(*l.LastModifiedTimestamp)
	}
	return []string{
		l.ID,
		formatTime(l.Timestamp),
		string(l.Stage),
		formatTime(l.LastStageUpdateTimestamp),
		l.FirstName,
		l.LastName,
		l.Address,
		l.Sender,
		l.PhoneNumber,
		l.ClaimNumber,
		l.ClaimCompany,
		l.NextFollowUpDate,
		l.ClaimInfo,
		modified,
		l.OriginalMessage,
	}
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
