package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ReconcileInlineFallback controls whether an accepted checker upload runs
// reconciliation inline when the pub/sub publish fails (or no topic is
// configured). Disable it when a DLQ-backed replay pipeline owns recovery.
//
// Set via env:
// - RECONCILE_INLINE_FALLBACK=false
func ReconcileInlineFallback() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RECONCILE_INLINE_FALLBACK")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SignedDownloadTTL is the lifetime of signed spreadsheet download URLs.
//
// Set via env:
// - SIGNED_DOWNLOAD_TTL_MINUTES=15
func SignedDownloadTTL() time.Duration {
	if v := strings.TrimSpace(os.Getenv("SIGNED_DOWNLOAD_TTL_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return 15 * time.Minute
}
