package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/fxcard_backend/cardsync"
	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/models"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrJobNotReady = errors.New("both maker and checker must submit before reconciliation")

// rowComparison is the outcome of comparing one record across the two files.
type rowComparison struct {
	Status  models.ReconciliationStatus
	Message string
}

func decimalFromCell(value string) decimal.Decimal {
	d, err := utils.ParseDecimal(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// compareReviewRows applies the three-field match. Amounts compare as
// decimals, so "5.0" and "5" agree; the ITR flag compares case-insensitively.
func compareReviewRows(maker utils.RowRecord, checker utils.RowRecord) rowComparison {
	var mismatches []string

	makerItr := strings.TrimSpace(maker[ColumnItrFlag])
	checkerItr := strings.TrimSpace(checker[ColumnItrFlag])
	if !strings.EqualFold(makerItr, checkerItr) {
		mismatches = append(mismatches,
			fmt.Sprintf("ITR Flag: Maker (%s) vs Checker (%s)", makerItr, checkerItr))
	}

	makerLrs := maker[ColumnLrsAmountConsumed]
	checkerLrs := checker[ColumnLrsAmountConsumed]
	if !decimalFromCell(makerLrs).Equal(decimalFromCell(checkerLrs)) {
		mismatches = append(mismatches,
			fmt.Sprintf("LRS Amount: Maker (%s) vs Checker (%s)", makerLrs, checkerLrs))
	}

	makerTotal := maker[ColumnTotalAmountLoaded]
	checkerTotal := checker[ColumnTotalAmountLoaded]
	if !decimalFromCell(makerTotal).Equal(decimalFromCell(checkerTotal)) {
		mismatches = append(mismatches,
			fmt.Sprintf("Total Amount: Maker (%s) vs Checker (%s)", makerTotal, checkerTotal))
	}

	if len(mismatches) == 0 {
		return rowComparison{Status: models.ReconciliationStatusApproved}
	}
	return rowComparison{
		Status:  models.ReconciliationStatusDiscrepancy,
		Message: "Discrepancies found: " + strings.Join(mismatches, "; "),
	}
}

func rowsById(rows []utils.RowRecord) map[int]utils.RowRecord {
	byId := make(map[int]utils.RowRecord, len(rows))
	for _, row := range rows {
		if id, err := strconv.Atoi(strings.TrimSpace(row[ColumnId])); err == nil {
			byId[id] = row
		}
	}
	return byId
}

func loadUploadRows(ctx context.Context, filePath string) ([]utils.RowRecord, error) {
	data, err := utils.ReadBytesFromGCS(ctx, filePath)
	if err != nil {
		return nil, err
	}
	rows, _, err := utils.DecodeWorkbook(data)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ProcessBulkReconciliation consumes the maker's and checker's accepted
// files for one job and writes the final outcome per record. The whole run
// is idempotent: result rows dedupe on (application_id, maker_file_id,
// checker_file_id), application updates are guarded on status = Exported,
// and the job finalizer only fires from Checker Processed. Replaying a
// reconciled job is therefore a no-op.
//
// A record id present in the maker's file but missing from the checker's
// points at an upstream selection bug. It is logged and skipped, never
// treated as a reviewer discrepancy.
func ProcessBulkReconciliation(ctx context.Context, bulkFileId int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	job, err := models.GetBulkFile(ctx, bulkFileId)
	if err != nil {
		return err
	}
	if !job.MakerProcessed || !job.CheckerProcessed {
		return ErrJobNotReady
	}

	makerUpload, err := models.GetBulkFileUpload(db.WithContext(ctx), bulkFileId, models.ReviewerRoleMaker)
	if err != nil {
		return err
	}
	checkerUpload, err := models.GetBulkFileUpload(db.WithContext(ctx), bulkFileId, models.ReviewerRoleChecker)
	if err != nil {
		return err
	}

	makerRows, err := loadUploadRows(ctx, makerUpload.FilePath)
	if err != nil {
		return err
	}
	checkerRows, err := loadUploadRows(ctx, checkerUpload.FilePath)
	if err != nil {
		return err
	}
	checkerById := rowsById(checkerRows)

	type approvedChange struct {
		app       *models.Application
		itr       *bool
		lrs       decimal.Decimal
		oldStatus models.ApplicationStatus
	}
	var approved []approvedChange
	var discrepancies int

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		approved = approved[:0]
		discrepancies = 0

		for _, makerRow := range makerRows {
			appId, err := strconv.Atoi(strings.TrimSpace(makerRow[ColumnId]))
			if err != nil {
				logger.WithField("bulk_file_id", bulkFileId).
					WithField("row_id", makerRow[ColumnId]).
					Warn("reconciliation anomaly: unparseable id in maker file")
				continue
			}

			checkerRow, ok := checkerById[appId]
			if !ok {
				logger.WithField("bulk_file_id", bulkFileId).
					WithField("application_id", appId).
					Warn("reconciliation anomaly: record missing from checker file")
				continue
			}

			comparison := compareReviewRows(makerRow, checkerRow)

			result := models.ReconciliationResult{
				BulkFileId:         bulkFileId,
				ApplicationId:      appId,
				MakerFileId:        makerUpload.ID,
				CheckerFileId:      checkerUpload.ID,
				Status:             comparison.Status,
				Message:            comparison.Message,
				MakerItrFlag:       strings.TrimSpace(makerRow[ColumnItrFlag]),
				MakerLrsAmount:     decimalFromCell(makerRow[ColumnLrsAmountConsumed]),
				MakerTotalAmount:   decimalFromCell(makerRow[ColumnTotalAmountLoaded]),
				CheckerItrFlag:     strings.TrimSpace(checkerRow[ColumnItrFlag]),
				CheckerLrsAmount:   decimalFromCell(checkerRow[ColumnLrsAmountConsumed]),
				CheckerTotalAmount: decimalFromCell(checkerRow[ColumnTotalAmountLoaded]),
			}
			if err := models.CreateReconciliationResults(tx, []*models.ReconciliationResult{&result}); err != nil {
				return err
			}

			if comparison.Status == models.ReconciliationStatusApproved {
				itr, _ := models.ParseItrFlag(makerRow[ColumnItrFlag])
				lrs := decimalFromCell(makerRow[ColumnLrsAmountConsumed])
				updated, err := models.TransitionApplicationStatus(tx, appId,
					models.ApplicationStatusExported, models.ApplicationStatusApproved,
					map[string]interface{}{
						"itr_flag":            itr,
						"lrs_amount_consumed": lrs,
					})
				if err != nil {
					return err
				}
				if updated {
					var app models.Application
					if err := tx.Where("id = ?", appId).Take(&app).Error; err != nil {
						return err
					}
					approved = append(approved, approvedChange{
						app:       &app,
						itr:       itr,
						lrs:       lrs,
						oldStatus: models.ApplicationStatusExported,
					})
				}
			} else {
				discrepancies++
				updated, err := models.TransitionApplicationStatus(tx, appId,
					models.ApplicationStatusExported, models.ApplicationStatusDiscrepancy, nil)
				if err != nil {
					return err
				}
				if updated {
					if err := models.CreateDiscrepancyComment(tx, appId, comparison.Message); err != nil {
						return err
					}
				}
			}
		}

		return models.MarkBulkFileReconciled(tx, bulkFileId)
	})
	if err != nil {
		config.LogError(logger, "bulkReconciliationWorkflow.go", "ProcessBulkReconciliation", "Transaction", bulkFileId, err)
		return err
	}

	// Downstream sync is best effort and must never fail the committed run.
	for _, change := range approved {
		go cardsync.NotifyStatusChange(cardsync.StatusChange{
			ApplicationNumber: change.app.ApplicationNumber,
			KitNo:             change.app.KitNo,
			LrsValue:          change.lrs.StringFixed(2),
			ItrFlag:           models.ItrFlagString(change.itr),
			OldStatus:         string(change.oldStatus),
			NewStatus:         string(models.ApplicationStatusApproved),
		})
	}

	logger.WithField("bulk_file_id", bulkFileId).
		WithField("approved", len(approved)).
		WithField("discrepancies", discrepancies).
		Info("bulk reconciliation completed")
	return nil
}
