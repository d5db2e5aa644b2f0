package cleaner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "integralq/internal/errors"
	"integralq/pkg/contracts/domain"
)

func clean(t *testing.T, name, data string, hint domain.Domain) *domain.CleanedDataset {
	t.Helper()
	ds, err := New(nil, nil).Clean(context.Background(), File{Name: name, Data: []byte(data)}, Options{DomainHint: hint})
	require.NoError(t, err)
	return ds
}

func hasLine(log []string, prefix string) bool {
	for _, l := range log {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func TestNormalizeCell(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Value
		tr   Transform
	}{
		{"$1,234.50", domain.Num(1234.5), TransformCurrency},
		{"€99", domain.Num(99), TransformCurrency},
		{"-$5.25", domain.Num(-5.25), TransformCurrency},
		{"(500)", domain.Num(-500), TransformNegative},
		{"($1,000.00)", domain.Num(-1000), TransformNegative},
		{"45%", domain.Num(0.45), TransformPercent},
		{"12.5 %", domain.Num(0.125), TransformPercent},
		{"1,234,567", domain.Num(1234567), TransformThousands},
		{"42", domain.Num(42), TransformNumber},
		{"N/A", domain.Null(), TransformNull},
		{"null", domain.Null(), TransformNull},
		{"", domain.Null(), TransformNull},
		{"Engineering", domain.Str("Engineering"), TransformNone},
		{"12,34", domain.Str("12,34"), TransformNone},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, tr := NormalizeCell(tt.in)
			assert.Equal(t, tt.tr, tr)
			if f, ok := tt.want.Number(); ok {
				gf, gok := got.Number()
				require.True(t, gok)
				assert.InDelta(t, f, gf, 1e-9)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanCSV(t *testing.T) {
	data := "Name, Salary ,Bonus Rate,Adjustment,Notes\n" +
		"  alice smith ,\"$1,200.00\",10%,(50),first\n" +
		"Bob Jones,\"$2,400.50\",N/A,25,\n" +
		",,,,\n" +
		"Carol White,\"$3,000\",5%,\"(1,000)\",null\n"

	ds := clean(t, "staff.csv", data, "")

	assert.Equal(t, []string{"name", "salary", "bonus_rate", "adjustment", "notes"}, ds.Headers)
	require.Equal(t, 3, ds.RowCount(), "the all-empty row is dropped")

	salary, ok := ds.Rows[0]["salary"].Number()
	require.True(t, ok)
	assert.InDelta(t, 1200.0, salary, 1e-9)

	rate, _ := ds.Rows[0]["bonus_rate"].Number()
	assert.InDelta(t, 0.10, rate, 1e-9)
	assert.True(t, ds.Rows[1]["bonus_rate"].IsNull())

	adj, _ := ds.Rows[2]["adjustment"].Number()
	assert.InDelta(t, -1000.0, adj, 1e-9)

	assert.Equal(t, domain.Str("alice smith"), ds.Rows[0]["name"], "general bundle leaves names alone")

	assert.Equal(t, domain.ColumnNumeric, ds.TypeOf("salary"))
	assert.Equal(t, domain.ColumnNumeric, ds.TypeOf("bonus_rate"))
	assert.Equal(t, domain.ColumnCategorical, ds.TypeOf("name"))

	assert.Contains(t, ds.CleaningLog, "[CURRENCY] Converted 3 currency strings to numeric")
	assert.Contains(t, ds.CleaningLog, "[CLEAN] Removed 1 invalid/empty rows")
	assert.True(t, hasLine(ds.CleaningLog, "[PERCENT]"))
	assert.True(t, hasLine(ds.CleaningLog, "[NEGATIVE]"))
	assert.True(t, hasLine(ds.CleaningLog, "[NULL]"))
	assert.True(t, hasLine(ds.CleaningLog, "[TRIM]"))
	assert.True(t, hasLine(ds.CleaningLog, "[HEADERS]"))
	assert.Equal(t, "• Final dataset: 3 rows x 5 columns", ds.CleaningLog[len(ds.CleaningLog)-1])
}

func TestCleanEveryRowCarriesEveryHeader(t *testing.T) {
	ds := clean(t, "ragged.csv", "a,b,c\n1,2\n4,5,6,7\n", "")

	require.Equal(t, 2, ds.RowCount())
	for _, row := range ds.Rows {
		assert.Len(t, row, ds.ColumnCount())
		for _, h := range ds.Headers {
			_, ok := row[h]
			assert.True(t, ok, h)
		}
	}
	assert.True(t, ds.Rows[0]["c"].IsNull())
	assert.Len(t, ds.ColumnClassification, ds.ColumnCount())
}

func TestCleanIsDeterministic(t *testing.T) {
	data := "Dept,Amount,Hire Date\nSupport,\"$1,000\",2021-03-01\nMarketing,(20),03/15/2020\n"
	c := New(nil, nil)

	first, err := c.Clean(context.Background(), File{Name: "d.csv", Data: []byte(data)}, Options{DomainHint: domain.HR})
	require.NoError(t, err)
	second, err := c.Clean(context.Background(), File{Name: "d.csv", Data: []byte(data)}, Options{DomainHint: domain.HR})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCleanHRRules(t *testing.T) {
	data := "Full Name,Hire Date,Salary\njane doe,03/15/2020,\"$50,000\"\nJOHN ROE,2019-07-01,\"$60,000\"\n"
	ds := clean(t, "hr.csv", data, domain.HR)

	assert.Equal(t, domain.Str("Jane Doe"), ds.Rows[0]["full_name"])
	assert.Equal(t, domain.Str("John Roe"), ds.Rows[1]["full_name"])
	assert.Equal(t, domain.ColumnDate, ds.TypeOf("hire_date"))
	assert.Equal(t, domain.Str("2020-03-15"), ds.Rows[0]["hire_date"])
	assert.Contains(t, ds.CleaningLog, "[SOP] Applied HR domain protocols")
	assert.True(t, hasLine(ds.CleaningLog, "[NAMES]"))
	assert.True(t, hasLine(ds.CleaningLog, "[RULES]"))
}

func TestInferColumnTypeThreshold(t *testing.T) {
	values := []domain.Value{
		domain.Num(1), domain.Num(2), domain.Num(3), domain.Num(4), domain.Str("oops"),
		domain.Null(),
	}
	assert.Equal(t, domain.ColumnNumeric, InferColumnType(values, 100, 0.8), "exactly 80% is numeric")

	values[3] = domain.Str("nope")
	assert.Equal(t, domain.ColumnCategorical, InferColumnType(values, 100, 0.8))

	dates := []domain.Value{
		domain.Str("2024-01-01"), domain.Str("01/02/2024"), domain.Str("01-03-2024"),
		domain.Str("2024-01-04"), domain.Str("soon"),
	}
	assert.Equal(t, domain.ColumnDate, InferColumnType(dates, 100, 0.8))

	assert.Equal(t, domain.ColumnCategorical, InferColumnType([]domain.Value{domain.Null()}, 100, 0.8))
	assert.Equal(t, domain.ColumnCategorical, InferColumnType(nil, 100, 0.8))
}

func TestInferColumnTypeSamplesFirstValues(t *testing.T) {
	values := []domain.Value{domain.Num(1), domain.Num(2)}
	for i := 0; i < 10; i++ {
		values = append(values, domain.Str("x"))
	}
	assert.Equal(t, domain.ColumnNumeric, InferColumnType(values, 2, 0.8))
}

func TestCleanCoercesNumericColumns(t *testing.T) {
	ds := clean(t, "m.csv", "metric,label,other\n1,a,x\n2,b,y\n3,c,z\n4,d,w\nbad,e,v\n", "")

	assert.Equal(t, domain.ColumnNumeric, ds.TypeOf("metric"))
	assert.True(t, ds.Rows[4]["metric"].IsNull())
	assert.Contains(t, ds.CleaningLog, "[COERCE] Set 1 non-numeric values in numeric columns to null")
}

func TestCleanJSONShapes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		headers []string
		rows    int
		wantErr error
	}{
		{
			name:    "top-level array",
			data:    `[{"b":1,"a":"x"},{"a":"y","c":true}]`,
			headers: []string{"b", "a", "c"},
			rows:    2,
		},
		{
			name:    "first array property",
			data:    `{"meta":{"v":1},"records":[{"id":1,"tags":["a","b"]}],"other":[{"z":1}]}`,
			headers: []string{"id", "tags"},
			rows:    1,
		},
		{name: "array of scalars", data: `[1,2,3]`, wantErr: apperrors.ErrUnsupportedStructure},
		{name: "object without arrays", data: `{"a":1}`, wantErr: apperrors.ErrUnsupportedStructure},
		{name: "scalar", data: `"hello"`, wantErr: apperrors.ErrUnsupportedStructure},
		{name: "malformed", data: `[{"a":`, wantErr: apperrors.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := New(nil, nil).Clean(context.Background(), File{Name: "in.json", Data: []byte(tt.data)}, Options{})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.headers, ds.Headers)
			assert.Equal(t, tt.rows, ds.RowCount())
		})
	}
}

func TestParseJSONKeepsNestedValuesAsText(t *testing.T) {
	res, err := parse("in.json", []byte(`{"records":[{"id":1,"tags":["a", "b"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Str(`["a","b"]`), res.table.Rows[0]["tags"])
}

func TestParseErrorsNameTheFile(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"unknown extension", "report.txt", "a,b"},
		{"empty csv", "empty.csv", ""},
		{"broken workbook", "book.xlsx", "not a zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, nil).Clean(context.Background(), File{Name: tt.file, Data: []byte(tt.data)}, Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrParse))
			assert.Contains(t, err.Error(), tt.file)
		})
	}
}

func TestCleanerInferenceOptions(t *testing.T) {
	// Three of four values are numeric: 75% is below the default threshold.
	data := "score\n1\n2\n3\nabsent\n"

	tests := []struct {
		name string
		opts []Option
		want domain.ColumnType
	}{
		{"defaults", nil, domain.ColumnCategorical},
		{"lower threshold", []Option{WithThreshold(0.75)}, domain.ColumnNumeric},
		{"sample of first values", []Option{WithSampleSize(3)}, domain.ColumnNumeric},
		{"out of range threshold ignored", []Option{WithThreshold(1.5)}, domain.ColumnCategorical},
		{"non-positive sample ignored", []Option{WithSampleSize(0)}, domain.ColumnCategorical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := New(nil, nil, tt.opts...).Clean(context.Background(), File{Name: "s.csv", Data: []byte(data)}, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ds.ColumnClassification["score"])
		})
	}
}

func TestCleanHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil, nil).Clean(ctx, File{Name: "a.csv", Data: []byte("a\n1\n")}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestCleanSpreadsheet(t *testing.T) {
	data := workbook(t, [][]any{
		{"Quarterly Staff Report"},
		{"Generated for review"},
		{"Employee", "Hire Date", nil, "Salary", "_internal"},
		{"Ann", 38718, nil, 1000, "x"},
		{"Ben", 38731, nil, 2000, "y"},
		{"Cid", 12345, nil, 3000, "z"},
	})

	ds, err := New(nil, nil).Clean(context.Background(), File{Name: "staff.xlsx", Data: data}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"employee", "hire_date", "salary"}, ds.Headers)
	require.Equal(t, 3, ds.RowCount())
	assert.Equal(t, domain.Str("2006-01-01"), ds.Rows[0]["hire_date"])
	assert.Equal(t, domain.Str("2006-01-14"), ds.Rows[1]["hire_date"])
	assert.Equal(t, domain.Num(12345), ds.Rows[2]["hire_date"], "values outside the serial range are untouched")

	assert.Contains(t, ds.CleaningLog, "• Format detected: XLSX")
	assert.Contains(t, ds.CleaningLog, "[DATE] Converted 2 Excel serial dates in [Hire Date]")
	assert.True(t, hasLine(ds.CleaningLog, "• Header row detected at row 3"))
	assert.True(t, hasLine(ds.CleaningLog, "[COLUMNS] Removed 2 unnamed columns"))
}

func TestStandardizeHeaders(t *testing.T) {
	got, mapping, renames := StandardizeHeaders([]string{"  Hire   Date ", "Café Número", "Revenue ($)", "hire date", "!!!"})

	assert.Equal(t, []string{"hire_date", "cafe_numero", "revenue", "hire_date_2", "column_5"}, got)
	assert.Equal(t, "cafe_numero", mapping["Café Número"])
	assert.Len(t, renames, 1)
}

func TestDetectFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"a.CSV": FormatCSV, "b.json": FormatJSON, "c.xlsx": FormatXLSX, "d.xls": FormatXLS,
	} {
		got, err := DetectFormat(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DetectFormat("e.parquet")
	assert.Error(t, err)
}
