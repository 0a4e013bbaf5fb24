package models

import (
	"log"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Application{},
		&BulkFile{}, &BulkFileUpload{},
		&ReconciliationResult{},
		&Comment{},
		&User{}, &Profile{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
