package workflow

import (
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/fxcard_backend/models"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
)

// Column names the reviewers' spreadsheets must carry. These match the
// headers the export job writes, so a round-tripped file validates clean.
const (
	ColumnId                = "id"
	ColumnApplicationNumber = "application_number"
	ColumnArn               = "arn"
	ColumnKitNo             = "kit_no"
	ColumnPanNumber         = "pan_number"
	ColumnCustomerName      = "customer_name"
	ColumnCustomerType      = "customer_type"
	ColumnCardType          = "card_type"
	ColumnProcessingType    = "processing_type"
	ColumnProductVariant    = "product_variant"
	ColumnTotalAmountLoaded = "total_amount_loaded"
	ColumnItrFlag           = "itr_flag"
	ColumnLrsAmountConsumed = "lrs_amount_consumed"
)

// ExportColumns is the column order of the exported spreadsheet.
var ExportColumns = []string{
	ColumnId, ColumnApplicationNumber, ColumnArn, ColumnKitNo, ColumnPanNumber,
	ColumnCustomerName, ColumnCustomerType, ColumnCardType, ColumnProcessingType,
	ColumnProductVariant, ColumnTotalAmountLoaded, ColumnItrFlag, ColumnLrsAmountConsumed,
}

type RowError struct {
	RowIndex int    `json:"row_index"`
	Message  string `json:"message"`
}

// ValidationOutcome summarizes one uploaded spreadsheet. It is returned to
// the caller and never persisted; the annotated file path points at the
// re-encoded spreadsheet with the Errors column filled for failing rows.
type ValidationOutcome struct {
	FileName           string     `json:"file_name"`
	TotalRecords       int        `json:"total_records"`
	ValidRecords       int        `json:"valid_records"`
	InvalidRecords     int        `json:"invalid_records"`
	RowErrors          []RowError `json:"row_errors"`
	ValidationFilePath string     `json:"validation_file_path,omitempty"`
	ValidationFileUrl  string     `json:"validation_file_url,omitempty"`
}

func (o *ValidationOutcome) IsValid() bool {
	return o.InvalidRecords == 0
}

// validateRow applies the row rules in order and returns the first failure.
// Rule order matters: an unknown id short-circuits the field checks, since
// field values on a row that should not be in the file are meaningless.
func validateRow(row utils.RowRecord, knownIds map[int]bool) string {
	id, err := strconv.Atoi(strings.TrimSpace(row[ColumnId]))
	if err != nil || !knownIds[id] {
		return "Record not found in the original file."
	}

	if _, ok := models.ParseItrFlag(row[ColumnItrFlag]); !ok {
		return "itr_flag must be Y or N"
	}

	// A blank cell is not a number; ParseDecimal's empty-means-zero default
	// would otherwise reconcile a missing entry as a real 0.00.
	lrsRaw := strings.TrimSpace(row[ColumnLrsAmountConsumed])
	lrs, err := utils.ParseDecimal(lrsRaw)
	if lrsRaw == "" || err != nil || lrs.IsNegative() {
		return "lrs_amount_consumed must be numeric"
	}

	return ""
}

// ValidateBulkRows checks every row against the known application ids and
// returns the outcome plus a copy of the rows with the Errors column set on
// failing rows. Row indexes in RowErrors are 1-based data row positions.
func ValidateBulkRows(rows []utils.RowRecord, knownIds map[int]bool) (*ValidationOutcome, []utils.RowRecord) {
	outcome := &ValidationOutcome{
		TotalRecords: len(rows),
	}

	annotated := make([]utils.RowRecord, 0, len(rows))
	for i, row := range rows {
		copied := make(utils.RowRecord, len(row)+1)
		for k, v := range row {
			copied[k] = v
		}
		delete(copied, utils.ErrorColumn)

		if msg := validateRow(row, knownIds); msg != "" {
			outcome.InvalidRecords++
			outcome.RowErrors = append(outcome.RowErrors, RowError{RowIndex: i + 1, Message: msg})
			copied[utils.ErrorColumn] = msg
		}
		annotated = append(annotated, copied)
	}

	outcome.ValidRecords = outcome.TotalRecords - outcome.InvalidRecords
	return outcome, annotated
}
