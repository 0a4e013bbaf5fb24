package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/models"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const exportSheetName = "Applications"

type ExportResult struct {
	Message               string `json:"message"`
	BulkFileId            int    `json:"bulk_file_id,omitempty"`
	FilePath              string `json:"file_path,omitempty"`
	FileUrl               string `json:"file_url,omitempty"`
	ProcessedApplications int    `json:"processed_applications"`
}

func applicationToRow(app *models.Application) utils.RowRecord {
	return utils.RowRecord{
		ColumnId:                fmt.Sprint(app.ID),
		ColumnApplicationNumber: app.ApplicationNumber,
		ColumnArn:               app.Arn,
		ColumnKitNo:             app.KitNo,
		ColumnPanNumber:         app.PanNumber,
		ColumnCustomerName:      app.CustomerName,
		ColumnCustomerType:      app.CustomerType,
		ColumnCardType:          app.CardType,
		ColumnProcessingType:    app.ProcessingType,
		ColumnProductVariant:    app.ProductVariant,
		ColumnTotalAmountLoaded: app.TotalAmountLoaded.StringFixed(2),
		ColumnItrFlag:           models.ItrFlagString(app.ItrFlag),
		ColumnLrsAmountConsumed: app.LrsAmountConsumed.StringFixed(2),
	}
}

// exportFileName carries a uuid so a manually triggered export racing the
// scheduled one in the same second cannot write both jobs' spreadsheets to
// the same object.
func exportFileName(now time.Time) string {
	return fmt.Sprintf("bulk_export_%s_%s.xlsx", now.Format("20060102_150405"), uuid.NewString())
}

// ExportEligibleApplications selects every record waiting for bulk review,
// writes them to one spreadsheet and registers the processing job. Safe to
// call on a timer: with no eligible records it is a no-op, and the status
// flip to Exported keeps a second concurrent run from selecting the same
// records twice.
//
// The spreadsheet is uploaded to blob storage before the job row commits,
// so a failure between the two leaves an orphan object, never a job row
// pointing at a missing file.
func ExportEligibleApplications(ctx context.Context) (*ExportResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var apps []*models.Application
	err := db.WithContext(ctx).
		Where("status = ?", models.ApplicationStatusExportEligible).
		Order("id ASC").Find(&apps).Error
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return &ExportResult{Message: "no eligible records"}, nil
	}

	rows := make([]utils.RowRecord, 0, len(apps))
	ids := make([]int, 0, len(apps))
	for _, app := range apps {
		rows = append(rows, applicationToRow(app))
		ids = append(ids, app.ID)
	}

	data, err := utils.EncodeWorkbook(ExportColumns, rows, exportSheetName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fileName := exportFileName(now)
	filePath := fmt.Sprintf("bulk-files/%d/%s", now.Year(), fileName)

	err = utils.UploadBytesToGCS(ctx, filePath, data, utils.ContentTypeXlsx)
	if err != nil {
		config.LogError(logger, "bulkExportWorkflow.go", "ExportEligibleApplications", "UploadBytesToGCS", filePath, err)
		return nil, err
	}

	bulkFile := models.BulkFile{
		FileName:    fileName,
		FilePath:    filePath,
		RecordCount: len(apps),
		Status:      models.BulkFileStatusPending,
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bulkFile).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Application{}).
			Where("id IN ? AND status = ?", ids, models.ApplicationStatusExportEligible).
			Update("status", models.ApplicationStatusExported)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("eligible set changed during export: expected %d, flipped %d", len(ids), result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "bulkExportWorkflow.go", "ExportEligibleApplications", "Transaction", ids, err)
		return nil, err
	}

	logger.WithField("bulk_file_id", bulkFile.ID).
		WithField("record_count", len(apps)).
		Info("bulk export completed")

	return &ExportResult{
		Message:               "export completed",
		BulkFileId:            bulkFile.ID,
		FilePath:              filePath,
		FileUrl:               utils.BuildObjectAccessURL(filePath),
		ProcessedApplications: len(apps),
	}, nil
}
