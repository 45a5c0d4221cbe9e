// Package importer reads ticket exports (.xlsx or .csv) row by row.
package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Row maps trimmed header names to cell values.
type Row map[string]string

// Get returns the trimmed cell under header, "" when absent.
func (r Row) Get(header string) string {
	return strings.TrimSpace(r[header])
}

// RowFunc receives every data row. Returning an error stops the read.
type RowFunc func(line int, row Row) error

// ReadFile streams the rows of an export to fn. The first row holds headers.
func ReadFile(path string, fn RowFunc) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path, fn)
	case ".csv", ".txt":
		return readCSV(path, fn)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readXLSX(path string, fn RowFunc) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return errors.New("workbook has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	var headers []string
	line := 0
	for rows.Next() {
		line++
		// Raw values keep date cells as serial numbers instead of
		// locale-formatted strings.
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("read row %d: %w", line, err)
		}
		if headers == nil {
			headers = normalizeHeaders(cells)
			continue
		}
		if isEmptyRecord(cells) {
			continue
		}
		if err := fn(line, toRow(headers, cells)); err != nil {
			return err
		}
	}
	return rows.Error()
}

func readCSV(path string, fn RowFunc) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	buf := bufio.NewReader(file)
	first, err := buf.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return fmt.Errorf("read csv: %w", err)
	}

	r := csv.NewReader(buf)
	r.Comma = SniffDelimiter(string(first))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	headers = normalizeHeaders(headers)

	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read csv line %d: %w", line, err)
		}
		if isEmptyRecord(record) {
			continue
		}
		if err := fn(line, toRow(headers, record)); err != nil {
			return err
		}
	}
}

// SniffDelimiter picks the most frequent of comma, semicolon and tab in the
// first line. Comma wins ties.
func SniffDelimiter(sample string) rune {
	if i := strings.IndexAny(sample, "\r\n"); i >= 0 {
		sample = sample[:i]
	}
	best, bestCount := ',', strings.Count(sample, ",")
	for _, c := range []rune{';', '\t'} {
		if n := strings.Count(sample, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func normalizeHeaders(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
	return out
}

func toRow(headers, cells []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if i < len(cells) {
			row[h] = cells[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

func isEmptyRecord(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
