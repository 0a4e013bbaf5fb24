// reconcile-replay re-runs the reconciliation engine for one job, for cases
// where the push delivery was exhausted to the DLQ. The engine is idempotent,
// so replaying an already reconciled job changes nothing.
//
// Usage:
//   go run ./cmd/reconcile-replay --bulk-file-id 42
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/workflow"
)

func main() {
	bulkFileId := flag.Int("bulk-file-id", 0, "Required: the job to reconcile")
	flag.Parse()

	if *bulkFileId <= 0 {
		fmt.Fprintln(os.Stderr, "--bulk-file-id is required")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if err := workflow.ProcessBulkReconciliation(ctx, *bulkFileId); err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("reconciliation completed for job %d\n", *bulkFileId)
}
