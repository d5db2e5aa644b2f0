package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"integralq/pkg/contracts/domain"
)

func TestExcelSerialToISO(t *testing.T) {
	tests := []struct {
		serial float64
		want   string
	}{
		{38718, "2006-01-01"},
		{38731, "2006-01-14"},
		{30000, "1982-02-18"},
		{45292, "2024-01-01"},
		{60000, "2064-04-08"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExcelSerialToISO(tt.serial), "serial %v", tt.serial)
	}

	noon := ExcelSerialToTime(45292.5)
	assert.Equal(t, 12, noon.Hour())
	assert.Equal(t, time.UTC, noon.Location())
}

func TestIsExcelSerial(t *testing.T) {
	assert.True(t, IsExcelSerial(30000))
	assert.True(t, IsExcelSerial(60000))
	assert.False(t, IsExcelSerial(29999.9))
	assert.False(t, IsExcelSerial(60001))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-15", "2024-03-15", true},
		{"2024-03-15T10:30:00Z", "2024-03-15", true},
		{"03/15/2024", "2024-03-15", true},
		{"3/5/2024", "2024-03-05", true},
		{"03-15-2024", "2024-03-15", true},
		{"15.03.2024", "", false},
		{"2024-13-45", "", false},
		{"next tuesday", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got.Format(ISODate), tt.in)
		}
	}
}

func TestIsDateHeader(t *testing.T) {
	for _, h := range []string{"hire_date", "DOB", "timestamp", "Hired On", "order_date"} {
		assert.True(t, IsDateHeader(h), h)
	}
	assert.False(t, IsDateHeader("salary"))
}

func TestIsIdentifierColumn(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"id", true},
		{"employee_id", true},
		{"customerid", true},
		{"zip code", true},
		{"product_key", true},
		{"uuid", true},
		{"FK_ORDER", true},
		{"ssn", true},
		{"barcode", true},
		{"zipcode", true},
		{"productkey", true},
		{"customerkey", true},
		{"CustomerKey", true},
		{"order_uuid", true},
		{"orderuuid", true},
		{"sessionguid", true},
		{"salary", false},
		{"paid_amount", false},
		{"keyboard_sales", false},
		{"valid", false},
		{"medicaid", false},
		{"turkey_sales", false},
		{"hockey", false},
		{"codes_used", false},
		{"monkey", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIdentifierColumn(tt.header))
		})
	}
}

func TestIsContactColumn(t *testing.T) {
	for _, h := range []string{"phone_number", "zip", "postal_code", "pin", "ssn", "zipcode"} {
		assert.True(t, IsContactColumn(h), h)
	}
	assert.False(t, IsContactColumn("shipping_cost"))
}

func testDataset() *domain.CleanedDataset {
	return &domain.CleanedDataset{
		Headers: []string{"employee_id", "department", "salary"},
		Rows: []domain.Row{
			{"employee_id": domain.Num(1), "department": domain.Str("Support"), "salary": domain.Num(100)},
			{"employee_id": domain.Num(2), "department": domain.Str("Support"), "salary": domain.Null()},
			{"employee_id": domain.Num(3), "department": domain.Null(), "salary": domain.Num(300)},
		},
		ColumnClassification: map[string]domain.ColumnType{
			"employee_id": domain.ColumnNumeric,
			"department":  domain.ColumnCategorical,
			"salary":      domain.ColumnNumeric,
		},
	}
}

func TestMeaningfulNumeric(t *testing.T) {
	ds := testDataset()
	assert.Equal(t, []string{"salary"}, MeaningfulNumeric(ds))

	ds.ColumnClassification["salary"] = domain.ColumnCategorical
	assert.Equal(t, []string{"employee_id"}, MeaningfulNumeric(ds), "falls back to identifiers when nothing else is numeric")
}

func TestNumericVectorAndDistinct(t *testing.T) {
	ds := testDataset()
	v := NumericVector(ds, "salary")
	assert.Equal(t, 100.0, v[0])
	assert.True(t, math.IsNaN(v[1]))
	assert.Equal(t, []float64{100, 300}, Finite(v))
	assert.Equal(t, 1, DistinctCount(ds, "department"))
	assert.Equal(t, "Unknown", Label(ds.Rows[2]["department"]))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Total Revenue", Humanize("total_revenue"))
	assert.Equal(t, "Salary", Humanize("salary"))
}
