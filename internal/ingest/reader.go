package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheet is one grid of raw cells
type sheet struct {
	name string
	rows [][]string
	// excel sheets hold raw cell values, so dates arrive as serial numbers
	excel bool
}

// errHeaderNotFound means no row looked like the declared header
var errHeaderNotFound = errors.New("header row not found")

// headerScanLimit bounds how far down a file the header may sit
const headerScanLimit = 200

func readSheets(path, format, sheetName string) ([]sheet, error) {
	switch format {
	case "xlsx":
		return readExcel(path, sheetName)
	default:
		rows, err := readCSV(path)
		if err != nil {
			return nil, err
		}
		return []sheet{{name: "", rows: rows}}, nil
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readExcel(path, sheetName string) ([]sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if sheetName != "" {
		names = []string{sheetName}
	}

	sheets := make([]sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			if sheetName != "" {
				return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
			}
			continue
		}
		sheets = append(sheets, sheet{name: name, rows: rows, excel: true})
	}
	return sheets, nil
}

// header is the located header row with its column positions
type header struct {
	row     int
	columns map[string]int
	cells   []string
}

func (h header) index(col string) int {
	if i, ok := h.columns[strings.ToLower(strings.TrimSpace(col))]; ok {
		return i
	}
	return -1
}

func newHeader(row int, cells []string) header {
	h := header{row: row, columns: make(map[string]int, len(cells)), cells: cells}
	for i, c := range cells {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		if _, dup := h.columns[key]; !dup {
			h.columns[key] = i
		}
	}
	return h
}

// locateHeader finds the header row, either by sentinel or as the first row
// holding every required column (and, for wide layouts, at least one value column).
func locateHeader(rows [][]string, c *compiled) (header, error) {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		row := rows[i]
		if len(c.HeaderSentinel) > 0 {
			if matchesSentinel(row, c.HeaderSentinel) {
				return newHeader(i, row), nil
			}
			continue
		}

		h := newHeader(i, row)
		ok := true
		for _, col := range c.requiredColumns() {
			if h.index(col) < 0 {
				ok = false
				break
			}
		}
		if ok && c.shape() == ShapeWide {
			ok = false
			for _, cell := range row {
				if _, hit := c.headerCapture(cell); hit {
					ok = true
					break
				}
			}
		}
		if ok {
			return h, nil
		}
	}
	return header{}, errHeaderNotFound
}

func matchesSentinel(row, sentinel []string) bool {
	if len(row) < len(sentinel) {
		return false
	}
	for i, want := range sentinel {
		if !strings.EqualFold(strings.TrimSpace(row[i]), strings.TrimSpace(want)) {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
