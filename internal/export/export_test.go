package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-intake/internal/model"
)

func sampleLeads() []model.Lead {
	created := time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)
	modified := created.Add(time.Hour)
	return []model.Lead{
		{
			ID:                       "l1",
			Timestamp:                created,
			Stage:                    model.StageNew,
			LastStageUpdateTimestamp: created,
			FirstName:                "John",
			LastName:                 "Smith",
			Address:                  "123 Main St",
			Sender:                   "Mike",
			PhoneNumber:              "555-123-4567",
			ClaimNumber:              model.ClaimNumberNotSpecified,
			ClaimCompany:             "State Farm",
			ClaimInfo:                "hail, roof",
			OriginalMessage:          "John Smith, 123 Main St\nhail damage",
			LastModifiedTimestamp:    &modified,
		},
		{
			ID:        "l2",
			Timestamp: created.Add(-time.Hour),
			Stage:     model.StageContacted,
			FirstName: "Ann",
			LastName:  model.LastNameUnspecified,
			Address:   model.AddressNotSpecified,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{"XLSX", FormatXLSX},
		{" yaml ", FormatYAML},
		{"yml", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("pdf")
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleLeads()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "l1", records[1][0])
	assert.Equal(t, "2025-06-02T15:04:05Z", records[1][1])
	assert.Equal(t, "2025-06-02T16:04:05Z", records[1][13])
	assert.Equal(t, "John Smith, 123 Main St\nhail damage", records[1][14])
	assert.Equal(t, "", records[2][3], "zero time is blank")
	assert.Equal(t, "", records[2][13])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleLeads()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "First Name", sheet.Rows[0].Cells[4].String())
	assert.Equal(t, "John", sheet.Rows[1].Cells[4].String())
	assert.Equal(t, string(model.StageContacted), sheet.Rows[2].Cells[2].String())
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, sampleLeads()))

	var got []model.Lead
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Smith", got[0].LastName)
	assert.Contains(t, buf.String(), "first_name: John")
	assert.Empty(t, got[1].PhoneNumber)
}

func TestWriteYAML_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("pdf"), nil)
	require.Error(t, err)
}
