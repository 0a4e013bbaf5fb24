package models

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyKey provides durable, DB-backed idempotency for push handlers.
// Unique constraint: (handler_name, message_id).
type IdempotencyKey struct {
	ID          int               `gorm:"primary_key" json:"id"`
	HandlerName string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	MessageId   string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"message_id"`
	Status      IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginIdempotentHandling claims the message for this handler. Returns false
// when another delivery already succeeded, so the caller can ack without work.
// A previously FAILED row is re-claimed for retry.
func BeginIdempotentHandling(db *gorm.DB, handlerName string, messageId string) (bool, error) {
	key := IdempotencyKey{
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      IdempotencyStatusStarted,
	}
	if err := db.Create(&key).Error; err == nil {
		return true, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing IdempotencyKey
	err := db.Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Take(&existing).Error
	if err != nil {
		return false, err
	}
	if existing.Status == IdempotencyStatusSucceeded {
		return false, nil
	}
	if existing.Status == IdempotencyStatusFailed {
		err = db.Model(&IdempotencyKey{}).Where("id = ?", existing.ID).
			Update("status", IdempotencyStatusStarted).Error
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func FinishIdempotentHandling(db *gorm.DB, handlerName string, messageId string, handlerErr error) error {
	updates := map[string]interface{}{
		"status":     IdempotencyStatusSucceeded,
		"last_error": nil,
	}
	if handlerErr != nil {
		msg := handlerErr.Error()
		updates["status"] = IdempotencyStatusFailed
		updates["last_error"] = &msg
	}
	return db.Model(&IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Updates(updates).Error
}
