package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"gorm.io/gorm"
)

// Comment hangs off an application. Reviewer remarks carry type "note";
// reconciliation writes "discrepancy" comments so the mismatch reason is
// visible next to the record it flagged.
type Comment struct {
	ID            int         `gorm:"primary_key" json:"id"`
	ApplicationId int         `gorm:"index;not null" json:"application_id"`
	Type          CommentType `gorm:"type:enum('note','discrepancy');default:'note'" json:"type"`
	Description   string      `gorm:"type:text;not null" json:"description" binding:"required"`
	UserId        int         `gorm:"index;not null" json:"user_id"`
	UserName      string      `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

type NewComment struct {
	Description string `json:"description" binding:"required"`
}

func CreateComment(ctx context.Context, applicationId int, input *NewComment) (*Comment, error) {

	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok || userName == "" {
		return nil, errors.New("user name is required")
	}

	if err := utils.ValidateResourceId[Application](ctx, applicationId); err != nil {
		return nil, err
	}

	comment := Comment{
		ApplicationId: applicationId,
		Type:          CommentTypeNote,
		Description:   input.Description,
		UserId:        userId,
		UserName:      userName,
	}

	err := db.WithContext(ctx).Create(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// CreateDiscrepancyComment is used inside the reconciliation transaction.
// The system row has no acting user.
func CreateDiscrepancyComment(tx *gorm.DB, applicationId int, description string) error {
	comment := Comment{
		ApplicationId: applicationId,
		Type:          CommentTypeDiscrepancy,
		Description:   description,
		UserId:        0,
		UserName:      "system",
	}
	return tx.Create(&comment).Error
}

func GetComments(ctx context.Context, applicationId int) ([]*Comment, error) {

	db := config.GetDB()
	var results []*Comment

	err := db.WithContext(ctx).Where("application_id = ?", applicationId).
		Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
