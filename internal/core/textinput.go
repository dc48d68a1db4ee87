package core

// textinput.go prepares raw upload bytes for decoding.
//
//   - ReadUpload: reads at most the size ceiling from a stream, failing with
//     ErrFileTooLarge instead of truncating silently
//   - stripBOM: removes the UTF-8 BOM (0xEF 0xBB 0xBF) Windows tools prepend
//     to CSV exports
//   - sanitizeUTF8: replaces invalid UTF-8 with U+FFFD so one bad byte does
//     not fail the whole CSV

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadUpload reads the whole upload, refusing anything larger than maxSize.
func ReadUpload(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	// Read one byte past the limit to tell "exactly max" from "too large".
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileReadFailure, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxSize)
	}
	return data, nil
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
