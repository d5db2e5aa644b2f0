package dataset

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Excel serials in this range (about 1982 to 2064) are treated as dates.
const (
	ExcelSerialMin = 30000
	ExcelSerialMax = 60000

	// excelUnixOffset is the serial of 1970-01-01 in the 1900 date system.
	// Subtracting it reproduces Excel's phantom 1900-02-29 for every serial
	// after February 1900.
	excelUnixOffset = 25569
	secondsPerDay   = 86400
)

// IsExcelSerial reports whether v falls in the accepted serial range, inclusive.
func IsExcelSerial(v float64) bool {
	return v >= ExcelSerialMin && v <= ExcelSerialMax
}

// ExcelSerialToTime converts a serial to a UTC time using (v-25569)*86400
// seconds after the Unix epoch. Fractional days become time of day.
func ExcelSerialToTime(v float64) time.Time {
	secs := (v - excelUnixOffset) * secondsPerDay
	whole := math.Floor(secs)
	nanos := int64((secs - whole) * float64(time.Second))
	return time.Unix(int64(whole), nanos).UTC()
}

// ExcelSerialToISO renders a serial as YYYY-MM-DD.
func ExcelSerialToISO(v float64) string {
	return ExcelSerialToTime(v).Format(ISODate)
}

// ISODate is the canonical date layout written by the cleaner.
const ISODate = "2006-01-02"

var (
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}([T ]\d{1,2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`)
	slashDatePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	dashDatePattern  = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`)
)

// LooksLikeDate reports whether s matches YYYY-MM-DD, MM/DD/YYYY or MM-DD-YYYY.
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	return isoDatePattern.MatchString(s) || slashDatePattern.MatchString(s) || dashDatePattern.MatchString(s)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
}

// ParseDate parses the date forms accepted by LooksLikeDate. Month-first is
// assumed for slash and dash forms.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if !LooksLikeDate(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var dateHeaderPattern = regexp.MustCompile(`(?i)date|time|dob|hire`)

// IsDateHeader reports whether a header name suggests a date column.
func IsDateHeader(header string) bool {
	return dateHeaderPattern.MatchString(header)
}
