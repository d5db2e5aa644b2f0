package exporter

import (
	"fmt"
	"strconv"
	"strings"

	"integralq/pkg/contracts/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (expected csv or xlsx)", s)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// FileName derives the download name from the dataset's source file.
func FileName(ds *domain.CleanedDataset, f Format) string {
	base := ds.SourceMeta.OriginalFileName
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "dataset"
	}
	return base + "_cleaned" + f.Extension()
}

// formatFloat drops trailing zeros so 1200 stays "1200" and 13.4 stays "13.4".
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatValue renders a cell for text output. Null is empty.
func formatValue(v domain.Value) string {
	if f, ok := v.Number(); ok {
		return formatFloat(f)
	}
	return v.String()
}
