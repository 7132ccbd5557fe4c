package shared

import "fmt"

// AccountRecalcKey builds redis keys used to deduplicate queued balance
// recalculations per account.
func AccountRecalcKey(accountID int64) string {
	return fmt.Sprintf("ledger:account:%d:recalc", accountID)
}

// ReportCacheKey builds redis keys for memoized report payloads.
func ReportCacheKey(report, params string) string {
	return fmt.Sprintf("reports:%s:%s", report, params)
}
