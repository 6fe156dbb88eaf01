package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/de-tools/case-atlas/pkg/records"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Table is the raw content of an input file: its header row and data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadFile reads a .csv file or the first sheet of an .xlsx file.
func ReadFile(ctx context.Context, path string) (*Table, error) {
	var (
		table *Table
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		table, err = readCSVFile(path)
	case ".xlsx", ".xlsm":
		table, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("columns", len(table.Header)).
		Int("rows", len(table.Rows)).
		Msg("input read")
	return table, nil
}

// Load reads path and loads it against schema.
func Load(ctx context.Context, path string, schema records.Schema) (*records.RecordSet, error) {
	table, err := ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	rs, err := records.Load(table.Header, table.Rows, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}
	return rs, nil
}

func readCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses CSV data with a header row. Rows may have fewer or more
// cells than the header; a leading byte order mark is dropped.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &Table{Header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(table.Rows)+2, err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheets[0])
	}
	return &Table{Header: rows[0], Rows: rows[1:]}, nil
}
