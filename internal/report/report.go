// Package report renders the invalid-voucher report that operators use
// to fix cost center assignments in the accounting system.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fkoester/sevactual/internal/storage"
)

// Render produces the markdown report for the given invalid vouchers.
func Render(vouchers []*storage.VoucherRecord, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("# Invalid vouchers\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.Format("2006-01-02 15:04:05 MST"))

	if len(vouchers) == 0 {
		b.WriteString("No invalid vouchers. Nothing to fix.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%d voucher(s) could not be synced. Fix the cost center assignment in the accounting system; the next run picks the change up automatically.\n\n", len(vouchers))

	b.WriteString("| Voucher | Date | Supplier | Amount | Problem |\n")
	b.WriteString("|---------|------|----------|--------|--------|\n")

	for _, v := range vouchers {
		number := v.VoucherNumber
		if number == "" {
			number = v.SourceVoucherID
		}
		date := ""
		if !v.VoucherDate.IsZero() {
			date = v.VoucherDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			number, date, v.SupplierName, v.Amount.StringFixed(2), v.ValidationReason)
	}

	return b.String()
}

// Write regenerates the report file, replacing any previous version.
func Write(path string, vouchers []*storage.VoucherRecord) error {
	content := Render(vouchers, time.Now())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing report to %s: %w", path, err)
	}
	return nil
}
