package workflow

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/fxcard_backend/models"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
)

func reconRow(id, itr, lrs, total string) utils.RowRecord {
	return utils.RowRecord{
		ColumnId:                id,
		ColumnItrFlag:           itr,
		ColumnLrsAmountConsumed: lrs,
		ColumnTotalAmountLoaded: total,
	}
}

func TestCompareReviewRowsCaseInsensitiveItr(t *testing.T) {
	maker := reconRow("1", "n", "100.00", "1500.00")
	checker := reconRow("1", "N", "100.00", "1500.00")

	got := compareReviewRows(maker, checker)
	if got.Status != models.ReconciliationStatusApproved {
		t.Fatalf("expected Approved, got %s (%s)", got.Status, got.Message)
	}
	if got.Message != "" {
		t.Fatalf("approved rows carry no message, got %q", got.Message)
	}
}

func TestCompareReviewRowsNumericEquality(t *testing.T) {
	// Same value, different spelling.
	maker := reconRow("1", "Y", "5.0", "1500")
	checker := reconRow("1", "Y", "5", "1500.00")

	got := compareReviewRows(maker, checker)
	if got.Status != models.ReconciliationStatusApproved {
		t.Fatalf("5.0 vs 5 must compare equal, got %s (%s)", got.Status, got.Message)
	}
}

func TestCompareReviewRowsLrsMismatch(t *testing.T) {
	maker := reconRow("1", "Y", "100.00", "1500.00")
	checker := reconRow("1", "Y", "100.5", "1500.00")

	got := compareReviewRows(maker, checker)
	if got.Status != models.ReconciliationStatusDiscrepancy {
		t.Fatalf("expected Discrepancy, got %s", got.Status)
	}
	if !strings.Contains(got.Message, "LRS Amount") {
		t.Fatalf("message must name the field: %q", got.Message)
	}
	if !strings.Contains(got.Message, "100.00") || !strings.Contains(got.Message, "100.5") {
		t.Fatalf("message must carry both values: %q", got.Message)
	}
	if !strings.HasPrefix(got.Message, "Discrepancies found: ") {
		t.Fatalf("unexpected message shape: %q", got.Message)
	}
}

func TestCompareReviewRowsMultipleMismatches(t *testing.T) {
	maker := reconRow("1", "Y", "100", "1500")
	checker := reconRow("1", "N", "200", "1500")

	got := compareReviewRows(maker, checker)
	if got.Status != models.ReconciliationStatusDiscrepancy {
		t.Fatalf("expected Discrepancy, got %s", got.Status)
	}
	if !strings.Contains(got.Message, "ITR Flag: Maker (Y) vs Checker (N)") {
		t.Fatalf("missing itr mismatch: %q", got.Message)
	}
	if !strings.Contains(got.Message, "; ") {
		t.Fatalf("mismatches join with a semicolon: %q", got.Message)
	}
	if !strings.Contains(got.Message, "LRS Amount") {
		t.Fatalf("missing lrs mismatch: %q", got.Message)
	}
}

func TestCompareReviewRowsTotalMismatch(t *testing.T) {
	maker := reconRow("1", "Y", "100", "1500.00")
	checker := reconRow("1", "Y", "100", "1499.99")

	got := compareReviewRows(maker, checker)
	if got.Status != models.ReconciliationStatusDiscrepancy {
		t.Fatalf("expected Discrepancy, got %s", got.Status)
	}
	if !strings.Contains(got.Message, "Total Amount: Maker (1500.00) vs Checker (1499.99)") {
		t.Fatalf("unexpected message: %q", got.Message)
	}
}

func TestRowsById(t *testing.T) {
	rows := []utils.RowRecord{
		reconRow("1", "Y", "10", "100"),
		reconRow(" 2 ", "N", "20", "200"),
		reconRow("junk", "Y", "30", "300"),
	}

	byId := rowsById(rows)
	if len(byId) != 2 {
		t.Fatalf("expected unparseable ids to be dropped, got %d entries", len(byId))
	}
	if byId[2][ColumnLrsAmountConsumed] != "20" {
		t.Fatalf("whitespace around ids must be tolerated: %+v", byId[2])
	}
}
