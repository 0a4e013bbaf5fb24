package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/models"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrRoleAlreadySubmitted = errors.New("this role has already submitted a file for this job")
	ErrCheckerBeforeMaker   = errors.New("checker cannot submit before the maker has processed the file")
	ErrJobAlreadyReconciled = errors.New("this job has already been reconciled")
)

type SubmitResult struct {
	Message    string             `json:"message"`
	BulkFileId int                `json:"bulk_file_id"`
	Role       string             `json:"role"`
	Validation *ValidationOutcome `json:"validation,omitempty"`
}

// exportedIdSet loads the application ids that belong to the job's exported
// file, keyed for the validator.
func exportedIdSet(ctx context.Context, job *models.BulkFile) (map[int]bool, error) {
	data, err := utils.ReadBytesFromGCS(ctx, job.FilePath)
	if err != nil {
		return nil, err
	}
	rows, _, err := utils.DecodeWorkbook(data)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool, len(rows))
	for _, row := range rows {
		if id, err := strconv.Atoi(strings.TrimSpace(row[ColumnId])); err == nil {
			ids[id] = true
		}
	}
	return ids, nil
}

// SubmitBulkFile accepts one reviewer's edited spreadsheet for the job.
//
// Sequencing guards run before validation so a checker racing ahead of the
// maker gets a clear sequence error instead of a validation report. On a
// valid file the role's processed flag flips under a conditional update;
// losing that race surfaces as ErrRoleAlreadySubmitted even when the guard
// read above saw the flag clear. The checker's accepted submission triggers
// reconciliation, via pub/sub when a topic is configured, inline otherwise.
func SubmitBulkFile(ctx context.Context, bulkFileId int, role models.ReviewerRole, fileName string, data []byte) (*SubmitResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if !role.IsValid() {
		return nil, fmt.Errorf("unknown reviewer role %q", role)
	}

	job, err := models.GetBulkFile(ctx, bulkFileId)
	if err != nil {
		return nil, err
	}
	if job.Status == models.BulkFileStatusReconciled {
		return nil, ErrJobAlreadyReconciled
	}
	if job.HasRoleProcessed(role) {
		return nil, ErrRoleAlreadySubmitted
	}
	if role == models.ReviewerRoleChecker && !job.MakerProcessed {
		return nil, ErrCheckerBeforeMaker
	}

	rows, _, err := utils.DecodeWorkbook(data)
	if err != nil {
		return nil, err
	}

	knownIds, err := exportedIdSet(ctx, job)
	if err != nil {
		return nil, err
	}

	outcome, annotated := ValidateBulkRows(rows, knownIds)
	outcome.FileName = fileName

	now := time.Now().UTC()
	if !outcome.IsValid() {
		// Persist the annotated copy so the reviewer can re-download,
		// fix the flagged rows and try again. The job row is untouched.
		headers := append(append([]string{}, ExportColumns...), utils.ErrorColumn)
		annotatedBytes, err := utils.EncodeWorkbook(headers, annotated, exportSheetName)
		if err != nil {
			return nil, err
		}
		annotatedPath := fmt.Sprintf("bulk-files/%d/validation/%d_%s_%s.xlsx",
			now.Year(), bulkFileId, role, now.Format("20060102_150405"))
		if err := utils.UploadBytesToGCS(ctx, annotatedPath, annotatedBytes, utils.ContentTypeXlsx); err != nil {
			config.LogError(logger, "bulkUploadWorkflow.go", "SubmitBulkFile", "UploadAnnotated", annotatedPath, err)
			return nil, err
		}
		outcome.ValidationFilePath = annotatedPath
		outcome.ValidationFileUrl = utils.BuildObjectAccessURL(annotatedPath)

		logger.WithField("bulk_file_id", bulkFileId).
			WithField("role", string(role)).
			WithField("invalid_records", outcome.InvalidRecords).
			Warn("bulk upload failed validation")
		return &SubmitResult{
			Message:    "validation failed",
			BulkFileId: bulkFileId,
			Role:       string(role),
			Validation: outcome,
		}, nil
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	uploadPath := fmt.Sprintf("bulk-files/%d/%s/%d_%s.xlsx",
		now.Year(), role, bulkFileId, now.Format("20060102_150405"))
	if err := utils.UploadBytesToGCS(ctx, uploadPath, data, utils.ContentTypeXlsx); err != nil {
		config.LogError(logger, "bulkUploadWorkflow.go", "SubmitBulkFile", "UploadBytesToGCS", uploadPath, err)
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := models.MarkRoleProcessed(tx, bulkFileId, role, userId, uploadPath)
		if err != nil {
			return err
		}
		if !claimed {
			if role == models.ReviewerRoleChecker {
				fresh, err := models.GetBulkFile(ctx, bulkFileId)
				if err == nil && !fresh.MakerProcessed {
					return ErrCheckerBeforeMaker
				}
			}
			return ErrRoleAlreadySubmitted
		}

		upload := models.BulkFileUpload{
			BulkFileId:  bulkFileId,
			Role:        role,
			FileName:    fileName,
			FilePath:    uploadPath,
			UserId:      userId,
			RecordCount: outcome.TotalRecords,
		}
		return tx.Create(&upload).Error
	})
	if err != nil {
		return nil, err
	}

	logger.WithField("bulk_file_id", bulkFileId).
		WithField("role", string(role)).
		WithField("record_count", outcome.TotalRecords).
		Info("bulk upload accepted")

	if role == models.ReviewerRoleChecker {
		triggerReconciliation(ctx, bulkFileId)
	}

	return &SubmitResult{
		Message:    "file accepted",
		BulkFileId: bulkFileId,
		Role:       string(role),
		Validation: outcome,
	}, nil
}

// triggerReconciliation hands the completed job to the reconciliation
// engine. Publish failures fall through to the inline path so the checker's
// accepted upload never strands a job in Checker Processed.
func triggerReconciliation(ctx context.Context, bulkFileId int) {
	logger := config.GetLogger()

	if config.GetReconcileTopic() != "" {
		correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
		if !ok || correlationId == "" {
			correlationId = uuid.New().String()
		}
		err := config.PublishReconcileTrigger(ctx, config.ReconcileMessage{
			BulkFileId:    bulkFileId,
			CorrelationId: correlationId,
		})
		if err == nil {
			return
		}
		config.LogError(logger, "bulkUploadWorkflow.go", "triggerReconciliation", "PublishReconcileTrigger", bulkFileId, err)
	}

	if !config.ReconcileInlineFallback() {
		logger.WithField("bulk_file_id", bulkFileId).
			Warn("inline reconcile fallback disabled; job awaits replay")
		return
	}
	if err := ProcessBulkReconciliation(ctx, bulkFileId); err != nil {
		config.LogError(logger, "bulkUploadWorkflow.go", "triggerReconciliation", "ProcessBulkReconciliation", bulkFileId, err)
	}
}
