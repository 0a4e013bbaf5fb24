package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"gorm.io/gorm"
)

// BulkFile is one exported batch awaiting dual review: the maker and the
// checker each take the exported spreadsheet, edit it independently and
// upload their copy back. Reconciliation closes the file.
//
// Invariants enforced by the conditional updates below:
//   - checker_processed can only become true after maker_processed
//   - maker_user_id / checker_user_id are written exactly once
type BulkFile struct {
	ID                 int            `gorm:"primary_key" json:"id"`
	FileName           string         `gorm:"size:255;not null" json:"file_name"`
	FilePath           string         `gorm:"size:500;not null" json:"file_path"`
	RecordCount        int            `gorm:"not null;default:0" json:"record_count"`
	Status             BulkFileStatus `gorm:"type:enum('Pending','Maker Processed','Checker Processed','Reconciled');default:'Pending';index" json:"status"`
	MakerProcessed     bool           `gorm:"not null;default:false" json:"maker_processed"`
	MakerProcessedAt   *time.Time     `json:"maker_processed_at"`
	MakerUserId        *int           `json:"maker_user_id"`
	MakerFilePath      string         `gorm:"size:500" json:"maker_file_path"`
	CheckerProcessed   bool           `gorm:"not null;default:false" json:"checker_processed"`
	CheckerProcessedAt *time.Time     `json:"checker_processed_at"`
	CheckerUserId      *int           `json:"checker_user_id"`
	CheckerFilePath    string         `gorm:"size:500" json:"checker_file_path"`
	ProcessedAt        *time.Time     `json:"processed_at"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// BulkFileUpload is the audit row for one accepted role submission. Its id is
// what reconciliation results reference as maker_file_id / checker_file_id.
type BulkFileUpload struct {
	ID          int          `gorm:"primary_key" json:"id"`
	BulkFileId  int          `gorm:"index;not null" json:"bulk_file_id"`
	Role        ReviewerRole `gorm:"type:enum('maker','checker');not null" json:"role"`
	FileName    string       `gorm:"size:255;not null" json:"file_name"`
	FilePath    string       `gorm:"size:500;not null" json:"file_path"`
	UserId      int          `gorm:"not null" json:"user_id"`
	RecordCount int          `gorm:"not null;default:0" json:"record_count"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func GetBulkFile(ctx context.Context, id int) (*BulkFile, error) {
	return utils.FetchModel[BulkFile](ctx, id)
}

func ListBulkFiles(ctx context.Context, limit int, offset int) ([]*BulkFile, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 200 {
		limit = config.SearchLimit
	}
	var results []*BulkFile
	err := db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// HasRoleProcessed reports whether the role already completed its submission.
func (f *BulkFile) HasRoleProcessed(role ReviewerRole) bool {
	if role == ReviewerRoleMaker {
		return f.MakerProcessed
	}
	return f.CheckerProcessed
}

// MarkRoleProcessed applies the dual-control state transition with a
// check-and-set on the role's processed flag, so two concurrent "first"
// submissions for the same role cannot both win. Returns false when the
// guard row no longer matches (someone else got there first, or the maker
// has not submitted yet for a checker transition).
func MarkRoleProcessed(tx *gorm.DB, bulkFileId int, role ReviewerRole, userId int, filePath string) (bool, error) {
	now := time.Now().UTC()

	var result *gorm.DB
	if role == ReviewerRoleMaker {
		result = tx.Model(&BulkFile{}).
			Where("id = ? AND maker_processed = ?", bulkFileId, false).
			Updates(map[string]interface{}{
				"maker_processed":    true,
				"maker_processed_at": now,
				"maker_user_id":      userId,
				"maker_file_path":    filePath,
				"status":             BulkFileStatusMakerProcessed,
			})
	} else {
		result = tx.Model(&BulkFile{}).
			Where("id = ? AND maker_processed = ? AND checker_processed = ?", bulkFileId, true, false).
			Updates(map[string]interface{}{
				"checker_processed":    true,
				"checker_processed_at": now,
				"checker_user_id":      userId,
				"checker_file_path":    filePath,
				"status":               BulkFileStatusCheckerProcessed,
			})
	}
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkBulkFileReconciled finalizes the batch.
func MarkBulkFileReconciled(tx *gorm.DB, bulkFileId int) error {
	now := time.Now().UTC()
	return tx.Model(&BulkFile{}).
		Where("id = ? AND status = ?", bulkFileId, BulkFileStatusCheckerProcessed).
		Updates(map[string]interface{}{
			"status":       BulkFileStatusReconciled,
			"processed_at": now,
		}).Error
}

func GetBulkFileUpload(tx *gorm.DB, bulkFileId int, role ReviewerRole) (*BulkFileUpload, error) {
	var upload BulkFileUpload
	err := tx.Where("bulk_file_id = ? AND role = ?", bulkFileId, role).
		Order("created_at DESC").Take(&upload).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &upload, nil
}
