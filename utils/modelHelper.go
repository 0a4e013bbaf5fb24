package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"gorm.io/gorm"
)

// FetchModel loads one row by primary key, returning ErrorRecordNotFound
// instead of gorm's sentinel so callers stay driver-agnostic.
func FetchModel[T any](ctx context.Context, id int) (*T, error) {
	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).Where("id = ?", id).Take(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ResourceCountWhere counts rows of T matching the condition.
func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ValidateResourceId checks a row with the id exists.
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
