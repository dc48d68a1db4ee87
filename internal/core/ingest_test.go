package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestReadWorkbook_XLSX(t *testing.T) {
	wb, err := ReadWorkbook(context.Background(), scenarioWorkbook(t), 0)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}

	if got := len(wb.Farmers); got != 3 {
		t.Errorf("Farmers rows = %d, want 3 (header + 2)", got)
	}
	if got := len(wb.Farms); got != 3 {
		t.Errorf("Farms rows = %d, want 3 (header + 2)", got)
	}
	if got := wb.Farmers[1][0]; got != "Kwame" {
		t.Errorf("Farmers[1][0] = %q, want Kwame", got)
	}
	if got := wb.Farmers[1][11]; got != "5" {
		t.Errorf("householdSize cell = %q, want 5", got)
	}
}

// A date-typed cell arrives as a serial day number whatever its display
// format, and maps to an ISO date.
func TestReadWorkbook_DateCell(t *testing.T) {
	row := toAny(kwameRow())
	row[4] = time.Date(1985, time.March, 15, 0, 0, 0, 0, time.UTC)
	in := xlsxInput(t, sheet{FarmersSheet, [][]any{toAny(legacyHeader()), row}})

	wb, err := ReadWorkbook(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	if got := wb.Farmers[1][4]; strings.Contains(got, "/") {
		t.Errorf("date cell = %q, want the raw serial", got)
	}

	farmers := MapWorkbook(wb)
	if len(farmers) != 1 {
		t.Fatalf("farmers = %d, want 1", len(farmers))
	}
	f := farmers[0]
	if f.Data.DateOfBirth != "1985-03-15" {
		t.Errorf("DateOfBirth = %q, want 1985-03-15", f.Data.DateOfBirth)
	}
	if res := ValidateFarmer(f.Data); !res.IsValid {
		t.Errorf("farmer invalid: %+v", res.Errors)
	}
	if dob, err := f.Data.BirthDate(); err != nil || dob.Time.Year() != 1985 {
		t.Errorf("BirthDate = %v, %v", dob, err)
	}
}

func TestReadWorkbook_FarmsSheetOptional(t *testing.T) {
	in := xlsxInput(t, sheet{FarmersSheet, strRows(legacyHeader(), kwameRow())})

	wb, err := ReadWorkbook(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	if len(wb.Farms) != 0 {
		t.Errorf("Farms = %v, want empty", wb.Farms)
	}
}

func TestReadWorkbook_MissingFarmersSheet(t *testing.T) {
	tests := []struct {
		name  string
		sheet string
	}{
		{name: "only farms", sheet: FarmsSheet},
		{name: "lower-case name", sheet: "farmers"},
		{name: "default sheet", sheet: "Sheet1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := xlsxInput(t, sheet{tt.sheet, strRows(legacyHeader(), kwameRow())})
			_, err := ReadWorkbook(context.Background(), in, 0)
			if !errors.Is(err, ErrMissingRequiredSheet) {
				t.Errorf("err = %v, want ErrMissingRequiredSheet", err)
			}
		})
	}
}

func TestReadWorkbook_CSV(t *testing.T) {
	csv := "\xEF\xBB\xBF" + strings.Join(legacyHeader(), ",") + "\n" +
		strings.Join(kwameRow(), ",") + "\n"

	wb, err := ReadWorkbook(context.Background(), FileInput{Name: "farmers.csv", Data: []byte(csv)}, 0)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	if len(wb.Farmers) != 2 {
		t.Fatalf("Farmers rows = %d, want 2", len(wb.Farmers))
	}
	if got := wb.Farmers[0][0]; got != "First Name*" {
		t.Errorf("header[0] = %q, BOM not stripped", got)
	}
	if wb.Farms != nil {
		t.Errorf("Farms = %v, want nil for CSV", wb.Farms)
	}
}

func TestReadWorkbook_CSVRaggedRows(t *testing.T) {
	csv := "a,b,c\nKwame,Asante\n\"Ama\",\"Men\"sah\",x,y\n"

	wb, err := ReadWorkbook(context.Background(), FileInput{Name: "farmers.csv", Data: []byte(csv)}, 0)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	if len(wb.Farmers) != 3 {
		t.Errorf("rows = %d, want 3", len(wb.Farmers))
	}
}

func TestReadWorkbook_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    FileInput
		maxSize int64
		want    error
	}{
		{
			name: "empty",
			file: FileInput{Name: "farmers.xlsx"},
			want: ErrEmptyFile,
		},
		{
			name:    "too large",
			file:    FileInput{Name: "farmers.csv", Data: bytes.Repeat([]byte("a,b\n"), 100)},
			maxSize: 64,
			want:    ErrFileTooLarge,
		},
		{
			name: "pdf",
			file: FileInput{Name: "farmers.pdf", Data: []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n")},
			want: ErrUnsupportedFileType,
		},
		{
			name: "legacy xls",
			file: FileInput{Name: "farmers.xls", Data: append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 504)...)},
			want: ErrUnsupportedFileType,
		},
		{
			name: "text without csv name",
			file: FileInput{Name: "notes.txt", Data: []byte("just some notes")},
			want: ErrUnsupportedFileType,
		},
		{
			name: "corrupt zip named xlsx",
			file: FileInput{Name: "farmers.xlsx", Data: append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 64)...)},
			want: ErrFileReadFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadWorkbook(context.Background(), tt.file, tt.maxSize)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadWorkbook_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadWorkbook(ctx, scenarioWorkbook(t), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestIsBlankRow(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want bool
	}{
		{name: "nil", row: nil, want: true},
		{name: "all empty", row: []string{"", "", ""}, want: true},
		{name: "whitespace", row: []string{"  ", "\t"}, want: true},
		{name: "single zero", row: []string{"", "0", ""}, want: false},
		{name: "leading zero only", row: []string{"0"}, want: false},
		{name: "data", row: []string{"Kwame"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBlankRow(tt.row); got != tt.want {
				t.Errorf("IsBlankRow(%q) = %v, want %v", tt.row, got, tt.want)
			}
		})
	}
}

func TestReadUpload(t *testing.T) {
	data, err := ReadUpload(strings.NewReader("abcdef"), 6)
	if err != nil || string(data) != "abcdef" {
		t.Errorf("ReadUpload at limit = %q, %v", data, err)
	}

	if _, err := ReadUpload(strings.NewReader("abcdefg"), 6); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("ReadUpload over limit err = %v, want ErrFileTooLarge", err)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	in := []byte("Kwa\xffme")
	got := string(sanitizeUTF8(in))
	if got != "Kwa�me" {
		t.Errorf("sanitizeUTF8 = %q", got)
	}

	valid := []byte("Ɔkwawu")
	if got := sanitizeUTF8(valid); !bytes.Equal(got, valid) {
		t.Errorf("sanitizeUTF8 changed valid input: %q", got)
	}
}
