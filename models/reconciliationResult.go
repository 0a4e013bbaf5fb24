package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconciliationResult is the per-record outcome of comparing the maker's
// and the checker's uploaded rows for one bulk file. Rows are insert-only;
// a replay of the same pair of uploads is a no-op thanks to the unique
// index on (application_id, maker_file_id, checker_file_id).
type ReconciliationResult struct {
	ID                 int                  `gorm:"primary_key" json:"id"`
	BulkFileId         int                  `gorm:"index;not null" json:"bulk_file_id"`
	ApplicationId      int                  `gorm:"not null;uniqueIndex:uix_recon_triplet" json:"application_id"`
	MakerFileId        int                  `gorm:"not null;uniqueIndex:uix_recon_triplet" json:"maker_file_id"`
	CheckerFileId      int                  `gorm:"not null;uniqueIndex:uix_recon_triplet" json:"checker_file_id"`
	Status             ReconciliationStatus `gorm:"type:enum('Approved','Discrepancy');not null" json:"status"`
	Message            string               `gorm:"type:text" json:"message"`
	MakerItrFlag       string               `gorm:"size:5" json:"maker_itr_flag"`
	MakerLrsAmount     decimal.Decimal      `gorm:"type:decimal(20,2)" json:"maker_lrs_amount"`
	MakerTotalAmount   decimal.Decimal      `gorm:"type:decimal(20,2)" json:"maker_total_amount"`
	CheckerItrFlag     string               `gorm:"size:5" json:"checker_itr_flag"`
	CheckerLrsAmount   decimal.Decimal      `gorm:"type:decimal(20,2)" json:"checker_lrs_amount"`
	CheckerTotalAmount decimal.Decimal      `gorm:"type:decimal(20,2)" json:"checker_total_amount"`
	CreatedAt          time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

// CreateReconciliationResults inserts the batch, ignoring rows that already
// exist from a previous run of the same upload pair.
func CreateReconciliationResults(tx *gorm.DB, results []*ReconciliationResult) error {
	if len(results) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&results).Error
}

func GetReconciliationResults(ctx context.Context, bulkFileId int) ([]*ReconciliationResult, error) {
	db := config.GetDB()
	var results []*ReconciliationResult
	err := db.WithContext(ctx).Where("bulk_file_id = ?", bulkFileId).
		Order("application_id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func CountDiscrepancies(ctx context.Context, bulkFileId int) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&ReconciliationResult{}).
		Where("bulk_file_id = ? AND status = ?", bulkFileId, ReconciliationStatusDiscrepancy).
		Count(&count).Error
	return count, err
}
