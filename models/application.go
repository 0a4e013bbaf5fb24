package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Application is one forex card application under maker/checker review.
// Records are created by the intake system; the portal only moves status and
// the two review fields. Rows are never physically deleted.
type Application struct {
	ID                int               `gorm:"primary_key" json:"id"`
	ApplicationNumber string            `gorm:"size:100;index;not null" json:"application_number"`
	Arn               string            `gorm:"size:100;index" json:"arn"`
	KitNo             string            `gorm:"size:100" json:"kit_no"`
	PanNumber         string            `gorm:"size:20;index" json:"pan_number"`
	CustomerName      string            `gorm:"size:255" json:"customer_name"`
	CustomerType      string            `gorm:"size:50" json:"customer_type"`
	CardType          string            `gorm:"size:50" json:"card_type"`
	ProcessingType    string            `gorm:"size:50" json:"processing_type"`
	ProductVariant    string            `gorm:"size:100" json:"product_variant"`
	TotalAmountLoaded decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"total_amount_loaded"`
	ItrFlag           *bool             `gorm:"default:null" json:"itr_flag"`
	LrsAmountConsumed decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"lrs_amount_consumed"`
	Status            ApplicationStatus `gorm:"type:enum('Pending Maker','Pending Checker','Approved','Rejected','Reopened','Export Eligible','Exported','Discrepancy');default:'Pending Maker';index" json:"status_id"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type ApplicationFilter struct {
	Status            *ApplicationStatus
	ApplicationNumber *string
	CustomerName      *string
	PanNumber         *string
	Arn               *string
	Limit             int
	Offset            int
}

// ItrFlagString renders the tri-state flag the way bulk spreadsheets carry it.
func ItrFlagString(flag *bool) string {
	if flag == nil {
		return ""
	}
	if *flag {
		return "Y"
	}
	return "N"
}

// ParseItrFlag accepts Y/N (any case) and boolean spellings.
func ParseItrFlag(value string) (*bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "true":
		return utils.NewTrue(), true
	case "n", "false":
		return utils.NewFalse(), true
	}
	return nil, false
}

func GetApplication(ctx context.Context, id int) (*Application, error) {
	return utils.FetchModel[Application](ctx, id)
}

func GetApplications(ctx context.Context, filter ApplicationFilter) ([]*Application, int64, error) {
	db := config.GetDB()
	var results []*Application

	dbCtx := db.WithContext(ctx).Model(&Application{})
	if filter.Status != nil && *filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.ApplicationNumber != nil && *filter.ApplicationNumber != "" {
		dbCtx = dbCtx.Where("application_number = ?", *filter.ApplicationNumber)
	}
	if filter.CustomerName != nil && *filter.CustomerName != "" {
		dbCtx = dbCtx.Where("customer_name LIKE ?", "%"+*filter.CustomerName+"%")
	}
	if filter.PanNumber != nil && *filter.PanNumber != "" {
		dbCtx = dbCtx.Where("pan_number = ?", *filter.PanNumber)
	}
	if filter.Arn != nil && *filter.Arn != "" {
		dbCtx = dbCtx.Where("arn = ?", *filter.Arn)
	}

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = config.SearchLimit
	}
	err := dbCtx.Order("updated_at DESC").Limit(limit).Offset(filter.Offset).Find(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// TransitionApplicationStatus flips status only when the current value still
// matches. Both the bulk pipeline and single-record decisions go through this
// check-and-set so racing reviewers cannot double-apply a transition.
func TransitionApplicationStatus(tx *gorm.DB, id int, from ApplicationStatus, to ApplicationStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&Application{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateReviewFields edits itr_flag / lrs_amount_consumed. Only permitted
// while the record is still with the maker (Pending Maker or Reopened).
func UpdateReviewFields(ctx context.Context, id int, itrFlag *bool, lrsAmount *decimal.Decimal) (*Application, error) {
	db := config.GetDB()

	app, err := utils.FetchModel[Application](ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.reviewFieldsMutable() {
		return nil, errors.New("itr_flag and lrs_amount_consumed can only be edited while the record is with the maker")
	}

	updates := map[string]interface{}{}
	if itrFlag != nil {
		updates["itr_flag"] = *itrFlag
	}
	if lrsAmount != nil {
		if lrsAmount.IsNegative() {
			return nil, errors.New("lrs_amount_consumed must not be negative")
		}
		updates["lrs_amount_consumed"] = *lrsAmount
	}
	if len(updates) == 0 {
		return app, nil
	}

	result := db.WithContext(ctx).Model(&Application{}).
		Where("id = ? AND status IN ?", id, []ApplicationStatus{ApplicationStatusPendingMaker, ApplicationStatusReopened}).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errors.New("record moved out of an editable status")
	}
	return utils.FetchModel[Application](ctx, id)
}

type DecisionResult struct {
	Application *Application
	OldStatus   ApplicationStatus
}

// MakerDecision moves a record out of the maker's queue.
// approve: Pending Maker/Reopened -> Pending Checker; reject -> Rejected.
func MakerDecision(ctx context.Context, id int, approve bool) (*DecisionResult, error) {
	return reviewDecision(ctx, id,
		[]ApplicationStatus{ApplicationStatusPendingMaker, ApplicationStatusReopened},
		approve, ApplicationStatusPendingChecker)
}

// CheckerDecision finalizes single-record review.
// approve: Pending Checker -> Approved; reject -> Rejected.
// The caller owns the downstream notification on approval.
func CheckerDecision(ctx context.Context, id int, approve bool) (*DecisionResult, error) {
	return reviewDecision(ctx, id,
		[]ApplicationStatus{ApplicationStatusPendingChecker},
		approve, ApplicationStatusApproved)
}

func reviewDecision(ctx context.Context, id int, allowedFrom []ApplicationStatus, approve bool, approveTo ApplicationStatus) (*DecisionResult, error) {
	db := config.GetDB()

	app, err := utils.FetchModel[Application](ctx, id)
	if err != nil {
		return nil, err
	}

	from := app.Status
	allowed := false
	for _, s := range allowedFrom {
		if from == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, errors.New("record is not awaiting this reviewer")
	}

	to := approveTo
	if !approve {
		to = ApplicationStatusRejected
	}

	ok, err := TransitionApplicationStatus(db.WithContext(ctx), id, from, to, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("record was updated by another reviewer; reload and retry")
	}

	updated, err := utils.FetchModel[Application](ctx, id)
	if err != nil {
		return nil, err
	}
	return &DecisionResult{Application: updated, OldStatus: from}, nil
}

// ReopenApplication returns a finalized record to the maker for correction.
func ReopenApplication(ctx context.Context, id int) (*Application, error) {
	db := config.GetDB()

	app, err := utils.FetchModel[Application](ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != ApplicationStatusRejected && app.Status != ApplicationStatusDiscrepancy {
		return nil, errors.New("only rejected or discrepant records can be reopened")
	}

	ok, err := TransitionApplicationStatus(db.WithContext(ctx), id, app.Status, ApplicationStatusReopened, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("record was updated by another reviewer; reload and retry")
	}
	return utils.FetchModel[Application](ctx, id)
}
