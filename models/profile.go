package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
)

type Profile struct {
	ID           int       `gorm:"primary_key" json:"id"`
	UserId       int       `gorm:"index;not null;unique" json:"user_id"`
	EmployeeCode string    `gorm:"size:50" json:"employee_code"`
	Branch       string    `gorm:"size:100" json:"branch"`
	Phone        string    `gorm:"size:20" json:"phone"`
	Timezone     string    `gorm:"size:50;default:'Asia/Kolkata'" json:"timezone"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProfile struct {
	EmployeeCode string `json:"employee_code"`
	Branch       string `json:"branch"`
	Phone        string `json:"phone"`
	Timezone     string `json:"timezone"`
}

func GetProfile(ctx context.Context) (*Profile, error) {

	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, errors.New("user id is required")
	}

	var profile Profile
	err := db.WithContext(ctx).Where("user_id = ?", userId).Take(&profile).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &profile, nil
}

func UpsertProfile(ctx context.Context, input *NewProfile) (*Profile, error) {

	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, errors.New("user id is required")
	}

	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, "IN"); err != nil {
			return nil, err
		}
	}

	var profile Profile
	err := db.WithContext(ctx).Where("user_id = ?", userId).Take(&profile).Error
	if err != nil {
		profile = Profile{UserId: userId}
	}

	profile.EmployeeCode = input.EmployeeCode
	profile.Branch = input.Branch
	profile.Phone = input.Phone
	if input.Timezone != "" {
		profile.Timezone = input.Timezone
	}

	if err := db.WithContext(ctx).Save(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
