package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FileKind classifies an upload by its filename extension. The kind is
// decided once at the boundary instead of repeated suffix tests downstream.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindText
	KindCSV
	KindSpreadsheet
)

func (k FileKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCSV:
		return "csv"
	case KindSpreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

// DetectKind maps a filename to its FileKind. Matching is case-insensitive.
func DetectKind(filename string) FileKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return KindText
	case ".csv":
		return KindCSV
	case ".xlsx", ".xls":
		return KindSpreadsheet
	default:
		return KindUnknown
	}
}

// Extract converts raw upload bytes into a single normalized text blob.
// It is total: a parse failure degrades to a readable diagnostic string that
// becomes the document text, it is never surfaced as an error. Unknown
// extensions fall back to a best-effort UTF-8 decode.
func Extract(filename string, data []byte) string {
	switch DetectKind(filename) {
	case KindCSV:
		return extractCSV(data)
	case KindSpreadsheet:
		return extractSpreadsheet(data)
	default:
		return decodeText(data)
	}
}

// decodeText decodes bytes as UTF-8, replacing undecodable sequences.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

// extractCSV parses delimited rows and re-serializes them in canonical form.
// This round-trips formatting, not semantics.
func extractCSV(data []byte) string {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Sprintf("Could not parse CSV file: %v", err)
		}
		rows = append(rows, record)
	}
	return writeCSV(rows)
}

// extractSpreadsheet reads the first sheet of a workbook and re-serializes
// its rows as delimited text.
func extractSpreadsheet(data []byte) string {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Sprintf("Could not parse Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "Could not parse Excel file: workbook has no sheets"
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Sprintf("Could not parse Excel file: %v", err)
	}
	return writeCSV(rows)
}

// writeCSV re-serializes rows as CRLF-terminated delimited text.
func writeCSV(rows [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	// Writing into a bytes.Buffer cannot fail.
	_ = w.WriteAll(rows)
	return buf.String()
}
