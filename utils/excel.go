package utils

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrorColumn is the single canonical column the validator writes row errors
// into. The codec treats it like any other column; nothing else may produce it.
const ErrorColumn = "Errors"

// ContentTypeXlsx is the MIME type stored on uploaded workbook objects.
const ContentTypeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheetName = "Sheet1"

// amount columns get a fixed display width so currency values don't collapse
// into "#####" when the file is opened for review.
const amountColumnWidth = 18.0

// RowRecord is one spreadsheet row as a column-name → cell-value mapping.
// All values are kept as strings; numeric interpretation happens at the
// validation/reconciliation layer (never by lexical comparison).
type RowRecord map[string]string

// DecodeWorkbook parses the first sheet of an xlsx byte stream. Row 1 supplies
// the column names; each following non-empty row becomes one RowRecord.
// Returns the rows plus the header order for re-encoding.
func DecodeWorkbook(data []byte) ([]RowRecord, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnrecognizedWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrUnrecognizedWorkbook
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnrecognizedWorkbook, err)
	}
	if len(rows) == 0 {
		return []RowRecord{}, []string{}, nil
	}

	headers := make([]string, 0, len(rows[0]))
	for _, h := range rows[0] {
		headers = append(headers, strings.TrimSpace(h))
	}

	records := make([]RowRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(RowRecord, len(headers))
		empty := true
		for i, header := range headers {
			if header == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if value != "" {
				empty = false
			}
			record[header] = value
		}
		if empty {
			continue
		}
		records = append(records, record)
	}
	return records, headers, nil
}

// EncodeWorkbook produces a single-sheet xlsx. Column order is the given
// header order; keys present in rows but missing from headers are appended
// first-seen (sorted within a row, since map iteration is unordered).
func EncodeWorkbook(headers []string, rows []RowRecord, sheetName string) ([]byte, error) {
	if sheetName == "" {
		sheetName = defaultSheetName
	}

	columns := make([]string, 0, len(headers))
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		columns = append(columns, h)
	}
	for _, row := range rows {
		extras := make([]string, 0)
		for key := range row {
			if key != "" && !seen[key] {
				seen[key] = true
				extras = append(extras, key)
			}
		}
		sort.Strings(extras)
		columns = append(columns, extras...)
	}

	f := excelize.NewFile()
	defer f.Close()
	if sheetName != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, sheetName); err != nil {
			return nil, err
		}
	}

	for colIdx, name := range columns {
		cell, err := excelize.CoordinatesToCellName(colIdx+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(name), "amount") {
			colName, err := excelize.ColumnNumberToName(colIdx + 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetColWidth(sheetName, colName, colName, amountColumnWidth); err != nil {
				return nil, err
			}
		}
	}

	for rowIdx, row := range rows {
		for colIdx, name := range columns {
			value, ok := row[name]
			if !ok || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
