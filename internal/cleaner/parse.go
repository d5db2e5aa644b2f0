package cleaner

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "integralq/internal/errors"
	"integralq/pkg/contracts/domain"
)

// Format is a supported input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// headerScanRows is how many leading spreadsheet rows are searched for the header.
const headerScanRows = 5

// minHeaderCells is the non-empty cell count that marks a header row.
const minHeaderCells = 3

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat maps a file name to a Format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx":
		return FormatXLSX, nil
	case "xls":
		return FormatXLS, nil
	}
	return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(name))
}

// parseResult is a RawTable plus structural notes for the cleaning log.
type parseResult struct {
	table      *domain.RawTable
	headerRow  int
	dropped    []string
	duplicates int
}

func parse(name string, data []byte) (*parseResult, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, apperrors.NewParsingError(name, err)
	}

	switch format {
	case FormatCSV:
		return parseCSV(name, data)
	case FormatJSON:
		return parseJSON(name, data)
	default:
		return parseSpreadsheet(name, data)
	}
}

func parseCSV(name string, data []byte) (*parseResult, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError(name, err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewParsingError(name, errors.New("file is empty"))
	}

	headers, dups := uniqueHeaders(records[0])
	table := &domain.RawTable{Headers: headers, Rows: make([]domain.Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		row := make(domain.Row, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = TypedCell(rec[i])
			} else {
				row[h] = domain.Null()
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return &parseResult{table: table, duplicates: dups}, nil
}

// parseJSON accepts a top-level array of objects, or an object whose first
// array-valued property (in document order) is an array of objects.
func parseJSON(name string, data []byte) (*parseResult, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, apperrors.NewParsingError(name, err)
	}

	switch tok {
	case json.Delim('['):
		return decodeObjectArray(name, data)
	case json.Delim('{'):
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, apperrors.NewParsingError(name, err)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, apperrors.NewParsingError(name, err)
			}
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
				return decodeObjectArray(name, trimmed)
			}
		}
		return nil, apperrors.NewUnsupportedStructureError(name, "object has no array-valued property")
	default:
		return nil, apperrors.NewUnsupportedStructureError(name, fmt.Sprintf("top-level value must be an array or object, got %v", tok))
	}
}

func decodeObjectArray(name string, data []byte) (*parseResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, apperrors.NewParsingError(name, err)
	}

	table := &domain.RawTable{}
	seen := make(map[string]bool)
	for i := 0; dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, apperrors.NewParsingError(name, err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return nil, apperrors.NewUnsupportedStructureError(name, fmt.Sprintf("array element %d is not an object", i))
		}

		keys, row, err := decodeObject(raw)
		if err != nil {
			return nil, apperrors.NewParsingError(name, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				table.Headers = append(table.Headers, k)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return nil, apperrors.NewParsingError(name, err)
	}

	for _, row := range table.Rows {
		for _, h := range table.Headers {
			if _, ok := row[h]; !ok {
				row[h] = domain.Null()
			}
		}
	}
	return &parseResult{table: table}, nil
}

// decodeObject reads one JSON object keeping key order. Nested objects and
// arrays are kept as their compact JSON text.
func decodeObject(raw []byte) ([]string, domain.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	var keys []string
	row := make(domain.Row)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = jsonValue(val)
	}
	return keys, row, nil
}

func jsonValue(raw json.RawMessage) domain.Value {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return domain.Null()
	}
	switch raw[0] {
	case 'n':
		return domain.Null()
	case 't':
		return domain.Bool(true)
	case 'f':
		return domain.Bool(false)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.Str(string(raw))
		}
		return domain.Str(s)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return domain.Str(string(raw))
		}
		return domain.Str(buf.String())
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if f, err := n.Float64(); err == nil {
				return domain.Num(f)
			}
		}
		return domain.Str(string(raw))
	}
}

// parseSpreadsheet reads the first sheet. The header is the first of the
// leading rows with at least three non-empty cells, which skips banner and
// title rows. Columns with blank or synthetic headers are dropped.
func parseSpreadsheet(name string, data []byte) (*parseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewParsingError(name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError(name, errors.New("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError(name, err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParsingError(name, fmt.Errorf("sheet %q is empty", sheets[0]))
	}

	headerRow := findHeaderRow(rows)
	width := 0
	for _, r := range rows[headerRow:] {
		if len(r) > width {
			width = len(r)
		}
	}

	synthetic := syntheticHeaders(rows[headerRow], width)
	var (
		keep    []int
		dropped []string
		named   []string
	)
	for i, h := range synthetic {
		if isUnnamedHeader(h) {
			dropped = append(dropped, h)
			continue
		}
		keep = append(keep, i)
		named = append(named, h)
	}

	headers, dups := uniqueHeaders(named)
	table := &domain.RawTable{Headers: headers}
	for _, rec := range rows[headerRow+1:] {
		row := make(domain.Row, len(headers))
		for j, col := range keep {
			cell := ""
			if col < len(rec) {
				cell = rec[col]
			}
			row[headers[j]] = TypedCell(cell)
		}
		table.Rows = append(table.Rows, row)
	}

	return &parseResult{table: table, headerRow: headerRow, dropped: dropped, duplicates: dups}, nil
}

func findHeaderRow(rows [][]string) int {
	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		nonEmpty := 0
		for _, c := range rows[i] {
			if strings.TrimSpace(c) != "" {
				nonEmpty++
			}
		}
		if nonEmpty >= minHeaderCells {
			return i
		}
	}
	return 0
}

// syntheticHeaders fills blank header cells with __EMPTY, __EMPTY_1, ...
func syntheticHeaders(row []string, width int) []string {
	out := make([]string, width)
	empty := 0
	for i := 0; i < width; i++ {
		h := ""
		if i < len(row) {
			h = strings.TrimSpace(row[i])
		}
		if h == "" {
			if empty == 0 {
				h = "__EMPTY"
			} else {
				h = fmt.Sprintf("__EMPTY_%d", empty)
			}
			empty++
		}
		out[i] = h
	}
	return out
}

func isUnnamedHeader(h string) bool {
	h = strings.TrimSpace(h)
	return h == "" || strings.HasPrefix(h, "__EMPTY") || strings.HasPrefix(h, "_")
}

// uniqueHeaders disambiguates exact duplicates so row maps cannot collide.
func uniqueHeaders(in []string) ([]string, int) {
	out := make([]string, len(in))
	used := make(map[string]bool, len(in))
	dups := 0
	for i, h := range in {
		candidate := h
		for n := 2; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", h, n)
		}
		if candidate != h {
			dups++
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out, dups
}
