package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
)

func reviewRow(id, itr, lrs string) utils.RowRecord {
	return utils.RowRecord{
		ColumnId:                id,
		ColumnArn:               "ARN" + id,
		ColumnPanNumber:         "ABCDE1234F",
		ColumnItrFlag:           itr,
		ColumnLrsAmountConsumed: lrs,
	}
}

func TestValidateBulkRowsAllValid(t *testing.T) {
	known := map[int]bool{1: true, 2: true}
	rows := []utils.RowRecord{
		reviewRow("1", "Y", "100.00"),
		reviewRow("2", "n", "0"),
	}

	outcome, annotated := ValidateBulkRows(rows, known)
	if !outcome.IsValid() {
		t.Fatalf("expected valid outcome, got %+v", outcome)
	}
	if outcome.TotalRecords != 2 || outcome.ValidRecords != 2 || outcome.InvalidRecords != 0 {
		t.Fatalf("bad counts: %+v", outcome)
	}
	for i, row := range annotated {
		if _, ok := row[utils.ErrorColumn]; ok {
			t.Fatalf("row %d should not carry an error cell", i)
		}
	}
}

func TestValidateBulkRowsUnknownId(t *testing.T) {
	known := map[int]bool{1: true}
	rows := []utils.RowRecord{reviewRow("99", "Y", "100")}

	outcome, annotated := ValidateBulkRows(rows, known)
	if outcome.InvalidRecords != 1 {
		t.Fatalf("expected 1 invalid record, got %d", outcome.InvalidRecords)
	}
	if outcome.RowErrors[0].Message != "Record not found in the original file." {
		t.Fatalf("unexpected message: %q", outcome.RowErrors[0].Message)
	}
	if outcome.RowErrors[0].RowIndex != 1 {
		t.Fatalf("row indexes are 1-based, got %d", outcome.RowErrors[0].RowIndex)
	}
	if annotated[0][utils.ErrorColumn] != "Record not found in the original file." {
		t.Fatalf("annotation missing: %+v", annotated[0])
	}
}

func TestValidateBulkRowsItrFlag(t *testing.T) {
	known := map[int]bool{1: true}
	rows := []utils.RowRecord{reviewRow("1", "Maybe", "100")}

	outcome, _ := ValidateBulkRows(rows, known)
	if outcome.InvalidRecords != 1 {
		t.Fatalf("expected invalid record, got %+v", outcome)
	}
	if outcome.RowErrors[0].Message != "itr_flag must be Y or N" {
		t.Fatalf("unexpected message: %q", outcome.RowErrors[0].Message)
	}
}

func TestValidateBulkRowsLrsAmount(t *testing.T) {
	known := map[int]bool{1: true, 2: true}
	for _, lrs := range []string{"abc", "-5", "", "   "} {
		rows := []utils.RowRecord{reviewRow("1", "N", lrs)}
		outcome, _ := ValidateBulkRows(rows, known)
		if outcome.InvalidRecords != 1 {
			t.Fatalf("lrs %q: expected invalid record", lrs)
		}
		if outcome.RowErrors[0].Message != "lrs_amount_consumed must be numeric" {
			t.Fatalf("lrs %q: unexpected message %q", lrs, outcome.RowErrors[0].Message)
		}
	}
}

// Rule order: a row that fails several rules reports only the first failure.
func TestValidateBulkRowsRuleOrder(t *testing.T) {
	known := map[int]bool{1: true}
	rows := []utils.RowRecord{reviewRow("not-a-number", "Maybe", "abc")}

	outcome, _ := ValidateBulkRows(rows, known)
	if len(outcome.RowErrors) != 1 {
		t.Fatalf("expected a single error per row, got %d", len(outcome.RowErrors))
	}
	if outcome.RowErrors[0].Message != "Record not found in the original file." {
		t.Fatalf("unknown id must short-circuit field checks, got %q", outcome.RowErrors[0].Message)
	}
}

func TestValidateBulkRowsMixedCounts(t *testing.T) {
	known := map[int]bool{1: true, 2: true, 3: true}
	rows := []utils.RowRecord{
		reviewRow("1", "Y", "10"),
		reviewRow("2", "Maybe", "10"),
		reviewRow("3", "N", "bad"),
	}

	outcome, annotated := ValidateBulkRows(rows, known)
	if outcome.TotalRecords != 3 || outcome.ValidRecords != 1 || outcome.InvalidRecords != 2 {
		t.Fatalf("bad counts: %+v", outcome)
	}
	if _, ok := annotated[0][utils.ErrorColumn]; ok {
		t.Fatal("valid row must stay unannotated")
	}
}

// A stale Errors column from a previous round never leaks into the next
// annotated file for rows that now pass.
func TestValidateBulkRowsClearsStaleAnnotations(t *testing.T) {
	known := map[int]bool{1: true}
	row := reviewRow("1", "Y", "10")
	row[utils.ErrorColumn] = "itr_flag must be Y or N"

	outcome, annotated := ValidateBulkRows([]utils.RowRecord{row}, known)
	if !outcome.IsValid() {
		t.Fatalf("expected valid outcome, got %+v", outcome)
	}
	if _, ok := annotated[0][utils.ErrorColumn]; ok {
		t.Fatalf("stale annotation survived: %+v", annotated[0])
	}
}
