package core

// convert.go provides best-effort coercion of spreadsheet cells into typed values.
//
// These functions handle the messy reality of hand-filled spreadsheets:
//   - Multiple date formats (US, EU, ISO, spreadsheet display formats)
//   - Thousand separators and stray currency symbols in numbers
//   - Excel formula prefixes (="value") and stray quotes
//
// Nothing here returns an error. Unparseable input yields an invalid pgtype
// value (Valid=false) or the cleaned raw string, so mapping never fails on a
// single bad cell.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// Numeric layouts list day-first before month-first: 03/04/1985 reads as
// 3 April, while 03/15/1985 still parses as March 15.
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "2-1-06", "2.1.06",
		"1/2/06", "1-2-06", "1.2.06",
		"2-Jan-06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006-1-2", "2006/01/02", "2006.01.02",
		"2/1/2006", "2-1-2006", "2.1.2006",
		"1/2/2006", "1-2-2006", "1.2.2006",
		"Jan 2, 2006", "2 Jan 2006", "02-Jan-2006",
		"20060102",
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
)

// Serial day numbers accepted as dates, in the 1900 date system. The lower
// bound is 1910-01-01 so a bare year such as "1985" is not read as a day.
const (
	minExcelSerial = 3654
	maxExcelSerial = 2958465
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// cellAt returns the cleaned cell at index i, or "" when the row is short.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return CleanCell(row[i])
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats, a trailing time of day, spreadsheet serial
// day numbers, and 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	s = stripTimeOfDay(strings.TrimSpace(s))
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	if t, ok := excelSerialDate(s); ok {
		return pgtype.Date{Time: t, Valid: true}
	}

	currentYear := time.Now().Year()
	pivotYear := currentYear + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// stripTimeOfDay drops a " 00:00" or " 12:30:00" suffix, as spreadsheet
// date-time cells render.
func stripTimeOfDay(s string) string {
	i := strings.LastIndexByte(s, ' ')
	if i <= 0 {
		return s
	}
	clock := s[i+1:]
	for _, layout := range []string{"15:04", "15:04:05", "3:04PM", "3:04:05PM"} {
		if _, err := time.Parse(layout, strings.ToUpper(clock)); err == nil {
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

// excelSerialDate reads a workbook date stored as a day number, such as
// "31121" for 1985-03-15.
func excelSerialDate(s string) (time.Time, bool) {
	if !numericRegex.MatchString(s) {
		return time.Time{}, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// IsDate reports whether s is a date ToPgDate can read.
func IsDate(s string) bool {
	return ToPgDate(s).Valid
}

// NormalizeDate rewrites a recognised date as YYYY-MM-DD.
// Unrecognised input is returned cleaned but otherwise untouched.
func NormalizeDate(s string) string {
	s = CleanCell(s)
	if d := ToPgDate(s); d.Valid {
		return d.Time.Format("2006-01-02")
	}
	return s
}

// cleanNumber strips thousands separators and currency symbols.
func cleanNumber(s string) (string, bool) {
	s = CleanCell(s)
	if s == "" {
		return "", false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "GH₵", "") // Cedi
	s = strings.ReplaceAll(s, "₵", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	return s, numericRegex.MatchString(s)
}

// ToPgFloat8 converts a cell to pgtype.Float8, invalid when not numeric.
func ToPgFloat8(s string) pgtype.Float8 {
	s, ok := cleanNumber(s)
	if !ok {
		return pgtype.Float8{Valid: false}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ToPgInt4 converts a cell to pgtype.Int4. Decimals are truncated toward
// zero, so "5.0" and "5.5" both read as 5. Out-of-range values are invalid.
func ToPgInt4(s string) pgtype.Int4 {
	f := ToPgFloat8(s)
	if !f.Valid {
		return pgtype.Int4{Valid: false}
	}
	n := math.Trunc(f.Float64)
	if n > math.MaxInt32 || n < math.MinInt32 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}
}

// IsYes reports whether a cell reads "yes", ignoring case and padding.
func IsYes(s string) bool {
	return strings.EqualFold(CleanCell(s), "yes")
}

// lowerCell returns the cleaned, lower-cased cell.
func lowerCell(s string) string {
	return strings.ToLower(CleanCell(s))
}
