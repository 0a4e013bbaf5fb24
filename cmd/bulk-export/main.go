// bulk-export runs one export cycle: every Export Eligible application is
// written to a spreadsheet and a processing job is registered. Intended to
// be invoked by Cloud Scheduler; running it with nothing eligible is a no-op.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... GCS_BUCKET=... go run ./cmd/bulk-export
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/workflow"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	result, err := workflow.ExportEligibleApplications(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d application(s)", result.Message, result.ProcessedApplications)
	if result.FilePath != "" {
		fmt.Printf(", file=%s (job %d)", result.FilePath, result.BulkFileId)
	}
	fmt.Println()
}
