package utils

import (
	"errors"
	"testing"
)

func TestWorkbookRoundTrip(t *testing.T) {
	headers := []string{"id", "customer_name", "total_amount_loaded"}
	rows := []RowRecord{
		{"id": "1", "customer_name": "Asha Rao", "total_amount_loaded": "1500.00"},
		{"id": "2", "customer_name": "Vikram Shah", "total_amount_loaded": "250.75"},
	}

	data, err := EncodeWorkbook(headers, rows, "Applications")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, decodedHeaders, err := DecodeWorkbook(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decodedHeaders) != len(headers) {
		t.Fatalf("expected %d headers, got %v", len(headers), decodedHeaders)
	}
	for i, h := range headers {
		if decodedHeaders[i] != h {
			t.Fatalf("header %d: expected %q, got %q", i, h, decodedHeaders[i])
		}
	}
	if len(decoded) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(decoded))
	}
	for i, row := range rows {
		for k, v := range row {
			if decoded[i][k] != v {
				t.Fatalf("row %d column %q: expected %q, got %q", i, k, v, decoded[i][k])
			}
		}
	}
}

func TestDecodeWorkbookRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWorkbook([]byte("this is not a spreadsheet"))
	if err == nil {
		t.Fatal("expected an error for a non-xlsx stream")
	}
	if !errors.Is(err, ErrUnrecognizedWorkbook) {
		t.Fatalf("expected ErrUnrecognizedWorkbook, got %v", err)
	}
}

func TestDecodeWorkbookSkipsEmptyRows(t *testing.T) {
	headers := []string{"id", "itr_flag"}
	rows := []RowRecord{
		{"id": "1", "itr_flag": "Y"},
		{},
		{"id": "2", "itr_flag": "N"},
	}
	data, err := EncodeWorkbook(headers, rows, "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, _, err := DecodeWorkbook(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected empty row to be skipped, got %d rows", len(decoded))
	}
}

func TestEncodeWorkbookAppendsExtraColumns(t *testing.T) {
	headers := []string{"id", "itr_flag"}
	rows := []RowRecord{
		{"id": "1", "itr_flag": "Y"},
		{"id": "2", "itr_flag": "Maybe", ErrorColumn: "itr_flag must be Y or N"},
	}

	data, err := EncodeWorkbook(headers, rows, "Applications")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, decodedHeaders, err := DecodeWorkbook(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := decodedHeaders[len(decodedHeaders)-1]; got != ErrorColumn {
		t.Fatalf("expected %q appended as the last column, got %q", ErrorColumn, got)
	}
	if decoded[0][ErrorColumn] != "" {
		t.Fatalf("clean row should have an empty error cell, got %q", decoded[0][ErrorColumn])
	}
	if decoded[1][ErrorColumn] != "itr_flag must be Y or N" {
		t.Fatalf("failing row lost its error text: %q", decoded[1][ErrorColumn])
	}
}
