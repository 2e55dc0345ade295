// Package sheet reads spreadsheets and CSV files into datasets. The first row
// is the header; empty cells are missing values.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetsql/internal/dataset"
)

// Open reads path. For workbooks sheetName selects the sheet; the first sheet
// is used when it is empty. It is ignored for delimited files.
func Open(path, sheetName string) (*dataset.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx":
		return openWorkbook(path, sheetName)
	case ".csv":
		return openDelimited(path, ',')
	case ".tsv":
		return openDelimited(path, '\t')
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func openWorkbook(path, sheetName string) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheetName = sheets[0]
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	return FromRecords(rows), nil
}

func openDelimited(path string, comma rune) (*dataset.Dataset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadDelimited(fh, comma)
}

// ReadDelimited parses CSV-style records from r.
func ReadDelimited(r io.Reader, comma rune) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return FromRecords(records), nil
}

// FromRecords turns a header row plus data rows into a dataset. Blank headers
// are named column_<n> and repeated headers get a _<k> suffix. Rows without
// any value are dropped.
func FromRecords(records [][]string) *dataset.Dataset {
	ds := &dataset.Dataset{Rows: []dataset.Row{}}
	if len(records) == 0 {
		return ds
	}
	ds.Columns = headers(records[0])

	for _, rec := range records[1:] {
		row := make(dataset.Row, len(ds.Columns))
		empty := true
		for i, col := range ds.Columns {
			if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
				row[col] = nil
				continue
			}
			row[col] = rec[i]
			empty = false
		}
		if !empty {
			ds.Rows = append(ds.Rows, row)
		}
	}
	return ds
}

func headers(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int)
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		out[i] = h
	}
	return out
}

// Save writes ds to path as a workbook or CSV, by extension, in column order.
func Save(path string, ds *dataset.Dataset) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return saveWorkbook(path, ds)
	case ".csv":
		fh, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := WriteDelimited(fh, ds, ','); err != nil {
			fh.Close()
			return err
		}
		return fh.Close()
	default:
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// WriteDelimited writes a header row and one record per row.
func WriteDelimited(w io.Writer, ds *dataset.Dataset, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(ds.Columns); err != nil {
		return err
	}
	rec := make([]string, len(ds.Columns))
	for _, r := range ds.Rows {
		for i, c := range ds.Columns {
			rec[i] = cell(r[c])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func saveWorkbook(path string, ds *dataset.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	write := func(rowIdx int, values []any) error {
		cellRef, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cellRef, &values)
	}

	header := make([]any, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := write(1, header); err != nil {
		return err
	}
	for i, r := range ds.Rows {
		values := make([]any, len(ds.Columns))
		for j, c := range ds.Columns {
			if v := r[c]; !dataset.IsMissing(v) {
				values[j] = v
			}
		}
		if err := write(i+2, values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func cell(v any) string {
	if dataset.IsMissing(v) {
		return ""
	}
	return dataset.Stringify(v)
}
