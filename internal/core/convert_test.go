package core

import (
	"math"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple string unchanged", input: "Kwame", want: "Kwame"},
		{name: "empty string", input: "", want: ""},
		{name: "surrounded by whitespace", input: "  Akim Oda  ", want: "Akim Oda"},
		{name: "Excel formula with quotes", input: `="0244123456"`, want: "0244123456"},
		{name: "bare equals sign", input: "=SUM(A1)", want: "SUM(A1)"},
		{name: "double quoted", input: `"Birim Central"`, want: "Birim Central"},
		{name: "single quoted", input: "'House 12'", want: "House 12"},
		{name: "zero is kept", input: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgDate / NormalizeDate Tests
// ----------------------------------------------------------------------------

func TestToPgDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantYear  int
		wantMonth time.Month
		wantDay   int
	}{
		{name: "ISO format", input: "1985-03-15", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "ISO leap day", input: "2024-02-29", wantValid: true, wantYear: 2024, wantMonth: time.February, wantDay: 29},
		{name: "slashes", input: "03/15/1985", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "spreadsheet display", input: "15-Mar-1985", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "long month", input: "Mar 15, 1985", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "day first", input: "15/03/1985", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "day first when ambiguous", input: "03/04/1985", wantValid: true, wantYear: 1985, wantMonth: time.April, wantDay: 3},
		{name: "day first dotted", input: "15.3.1985", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "date-time cell", input: "3/15/85 00:00", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "with seconds", input: "1985-03-15 08:30:00", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "serial day number", input: "31121", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "bare year", input: "1985", wantValid: false},
		{name: "compact", input: "19850315", wantValid: true, wantYear: 1985, wantMonth: time.March, wantDay: 15},
		{name: "empty", input: "", wantValid: false},
		{name: "not a date", input: "sometime", wantValid: false},
		{name: "invalid day", input: "2023-02-30", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgDate(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgDate(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			if got.Time.Year() != tt.wantYear || got.Time.Month() != tt.wantMonth || got.Time.Day() != tt.wantDay {
				t.Errorf("ToPgDate(%q) = %s, want %d-%02d-%02d",
					tt.input, got.Time.Format("2006-01-02"), tt.wantYear, tt.wantMonth, tt.wantDay)
			}
		})
	}
}

func TestToPgDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	got := ToPgDate("01/15/85")
	if !got.Valid || got.Time.Year() != 1985 {
		t.Errorf("ToPgDate(01/15/85) = %v, want 1985", got.Time)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1985-03-15", "1985-03-15"},
		{"03/15/1985", "1985-03-15"},
		{" 15-Mar-1985 ", "1985-03-15"},
		{"15/03/1985", "1985-03-15"},
		{"3/15/85 00:00", "1985-03-15"},
		{"31121", "1985-03-15"},
		{"", ""},
		{"unknown", "unknown"},
	}

	for _, tt := range tests {
		if got := NormalizeDate(tt.input); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Number Tests
// ----------------------------------------------------------------------------

func TestToPgFloat8(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      float64
	}{
		{name: "decimal", input: "5.5", wantValid: true, want: 5.5},
		{name: "negative longitude", input: "-0.8761", wantValid: true, want: -0.8761},
		{name: "zero", input: "0", wantValid: true, want: 0},
		{name: "thousands separator", input: "1,250.75", wantValid: true, want: 1250.75},
		{name: "cedi symbol", input: "GH₵ 300", wantValid: true, want: 300},
		{name: "accounting negative", input: "(12.5)", wantValid: true, want: -12.5},
		{name: "leading decimal point", input: ".25", wantValid: true, want: 0.25},
		{name: "scientific", input: "1e3", wantValid: true, want: 1000},
		{name: "empty", input: "", wantValid: false},
		{name: "text", input: "five", wantValid: false},
		{name: "overflow", input: "1e400", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgFloat8(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgFloat8(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid && math.Abs(got.Float64-tt.want) > 1e-9 {
				t.Errorf("ToPgFloat8(%q) = %v, want %v", tt.input, got.Float64, tt.want)
			}
		})
	}
}

func TestToPgInt4(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      int32
	}{
		{name: "integer", input: "5", wantValid: true, want: 5},
		{name: "whole decimal", input: "5.0", wantValid: true, want: 5},
		{name: "negative", input: "-3", wantValid: true, want: -3},
		{name: "fraction truncates", input: "5.5", wantValid: true, want: 5},
		{name: "negative fraction truncates toward zero", input: "-2.7", wantValid: true, want: -2},
		{name: "blank", input: "  ", wantValid: false},
		{name: "text", input: "many", wantValid: false},
		{name: "out of range", input: "3000000000", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgInt4(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgInt4(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid && got.Int32 != tt.want {
				t.Errorf("ToPgInt4(%q) = %d, want %d", tt.input, got.Int32, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Text / Bool Tests
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	if got := ToPgText("   "); got.Valid {
		t.Errorf("ToPgText(blank).Valid = true, want false")
	}
	if got := ToPgText(" Cocoa "); !got.Valid || got.String != "Cocoa" {
		t.Errorf("ToPgText(Cocoa) = %+v, want Cocoa", got)
	}
}

func TestIsYes(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Yes", true},
		{"yes", true},
		{" YES ", true},
		{"Y", false},
		{"No", false},
		{"true", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsYes(tt.input); got != tt.want {
			t.Errorf("IsYes(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
