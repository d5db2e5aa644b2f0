package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"integralq/pkg/contracts/domain"
)

func sampleDataset() *domain.CleanedDataset {
	return &domain.CleanedDataset{
		Headers: []string{"department", "salary", "hire_date"},
		Rows: []domain.Row{
			{"department": domain.Str("Engineering"), "salary": domain.Num(52000), "hire_date": domain.Str("2020-01-01")},
			{"department": domain.Str("Support, Tier 1"), "salary": domain.Num(41250.5), "hire_date": domain.Null()},
		},
		ColumnClassification: map[string]domain.ColumnType{
			"department": domain.ColumnCategorical,
			"salary":     domain.ColumnNumeric,
			"hire_date":  domain.ColumnDate,
		},
		CleaningLog: []string{"[CURRENCY] Converted 2 currency strings to numeric"},
		SourceMeta:  domain.SourceMeta{OriginalFileName: "staff.xlsx"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "staff_cleaned.csv", FileName(sampleDataset(), FormatCSV))
	assert.Equal(t, "dataset_cleaned.xlsx", FileName(&domain.CleanedDataset{}, FormatXLSX))
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Value
		want string
	}{
		{"integer", domain.Num(123), "123"},
		{"decimal", domain.Num(-789.123), "-789.123"},
		{"small", domain.Num(0.000001), "0.000001"},
		{"string", domain.Str("Engineering"), "Engineering"},
		{"bool", domain.Bool(true), "true"},
		{"null", domain.Null(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(nil).Write(&buf, sampleDataset(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"department", "salary", "hire_date"},
		{"Engineering", "52000", "2020-01-01"},
		{"Support, Tier 1", "41250.5", ""},
	}, records)
}

func TestWriteCSVWithBOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(nil, WithBOM(true)).WriteCSV(&buf, sampleDataset()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))

	buf.Reset()
	require.NoError(t, New(nil).WriteCSV(&buf, sampleDataset()))
	assert.False(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(nil).Write(&buf, sampleDataset(), FormatXLSX))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DataSheet, LogSheet}, f.GetSheetList())

	rows, err := f.GetRows(DataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"department", "salary", "hire_date"}, rows[0])
	assert.Equal(t, "Support, Tier 1", rows[2][0])

	typ, err := f.GetCellType(DataSheet, "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ, "salary is stored as a number")

	v, err := f.GetCellValue(DataSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "41250.5", v)

	log, err := f.GetCellValue(LogSheet, "A1")
	require.NoError(t, err)
	assert.Contains(t, log, "[CURRENCY]")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "staff_cleaned.csv")
	require.NoError(t, New(nil).WriteFile(path, sampleDataset(), FormatCSV))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "department,salary,hire_date\n")
}

func TestWriteRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, New(nil).Write(&buf, nil, FormatCSV))
	assert.Error(t, New(nil).Write(&buf, sampleDataset(), Format("pdf")))
}
