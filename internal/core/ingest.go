package core

// ingest.go turns an uploaded workbook into raw rows.
//
// Two container formats are accepted: Office Open XML workbooks (decoded
// with excelize) and CSV text. The format is sniffed from the content, not
// trusted from the file name or the client's declared content type. A CSV
// file has no sheets, so its rows are the Farmers sheet and Farms is empty.
//
// Ingestion is a pure bytes-to-rows transform. Row 0 of each sheet is the
// header and is left in place; mapping skips it.

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// DefaultMaxFileSize is the upload ceiling (10 MiB).
const DefaultMaxFileSize int64 = 10 << 20

// Structural errors. Each aborts the parse attempt with no partial staging.
var (
	ErrMissingRequiredSheet = errors.New(`missing required sheet "Farmers"`)
	ErrFileReadFailure      = errors.New("unreadable file")
	ErrFileTooLarge         = errors.New("file too large")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrEmptyFile            = errors.New("empty file")
)

// Media types accepted for upload.
const (
	MediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaTypeCSV  = "text/csv"
)

// AcceptedMediaTypes is advertised to clients (file input accept attribute).
var AcceptedMediaTypes = []string{MediaTypeXLSX, MediaTypeCSV, ".xlsx", ".csv"}

type fileFormat int

const (
	formatXLSX fileFormat = iota + 1
	formatCSV
)

// Workbook holds the raw rows of the two sheets the pipeline reads.
type Workbook struct {
	Farmers [][]string
	Farms   [][]string
}

// ReadWorkbook decodes file into raw rows. maxSize <= 0 means DefaultMaxFileSize.
func ReadWorkbook(ctx context.Context, file FileInput, maxSize int64) (*Workbook, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if file.Size() > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, file.Size(), maxSize)
	}
	if file.Size() == 0 {
		return nil, ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := detectFormat(file)
	if err != nil {
		return nil, err
	}

	switch format {
	case formatXLSX:
		return readXLSX(file.Data)
	default:
		return readCSV(file.Data)
	}
}

// detectFormat sniffs the content. A zip that mimetype cannot classify is
// still accepted as a workbook when the name says so, since some generators
// order the archive entries unusually.
func detectFormat(file FileInput) (fileFormat, error) {
	mt := mimetype.Detect(file.Data)
	ext := strings.ToLower(filepath.Ext(file.Name))

	switch {
	case mt.Is(MediaTypeXLSX):
		return formatXLSX, nil
	case mt.Is("application/zip") && (ext == ".xlsx" || ext == ".xlsm"):
		return formatXLSX, nil
	case mt.Is(MediaTypeCSV):
		return formatCSV, nil
	case strings.HasPrefix(mt.String(), "text/plain") && ext == ".csv":
		return formatCSV, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mt.String())
}

func readXLSX(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileReadFailure, err)
	}
	defer f.Close()

	var hasFarmers, hasFarms bool
	for _, name := range f.GetSheetList() {
		switch name {
		case FarmersSheet:
			hasFarmers = true
		case FarmsSheet:
			hasFarms = true
		}
	}
	if !hasFarmers {
		return nil, ErrMissingRequiredSheet
	}

	// Raw values keep date cells as serial day numbers, which ToPgDate
	// reads regardless of the cell's display format.
	raw := excelize.Options{RawCellValue: true}

	wb := &Workbook{}
	if wb.Farmers, err = f.GetRows(FarmersSheet, raw); err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrFileReadFailure, FarmersSheet, err)
	}
	if hasFarms {
		if wb.Farms, err = f.GetRows(FarmsSheet, raw); err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrFileReadFailure, FarmsSheet, err)
		}
	}
	return wb, nil
}

func readCSV(data []byte) (*Workbook, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileReadFailure, err)
	}
	return &Workbook{Farmers: rows}, nil
}

// IsBlankRow reports whether every cell is empty after trimming.
// A literal "0" is data, not blank.
func IsBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
