package sevdesk

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Voucher status codes as used by the sevDesk API.
const (
	StatusDraft    = "50"
	StatusUnpaid   = "100"
	StatusPaid     = "1000" // booked and paid
	StatusDeducted = "750"
)

// Date wraps time.Time to accept the date formats the API mixes:
// RFC 3339 with offset, plain datetime and plain date.
type Date struct {
	time.Time
}

var dateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			d.Time = t
			return nil
		}
	}

	return fmt.Errorf("unrecognized date %q", s)
}

// ObjectRef is the embedded reference shape ({"id": ..., "objectName": ...})
// that sevDesk uses for linked entities.
type ObjectRef struct {
	ID         string `json:"id"`
	ObjectName string `json:"objectName"`
	Name       string `json:"name,omitempty"`
}

// CostCenter is a sevDesk cost center (KostenStelle).
type CostCenter struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
	Status string `json:"status"`
}

// Voucher is a sevDesk expense voucher. Numeric fields arrive as strings.
type Voucher struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"` // the voucher number
	VoucherDate  Date            `json:"voucherDate"`
	Status       string          `json:"status"`
	SumGross     decimal.Decimal `json:"sumGross"`
	CreditDebit  string          `json:"creditDebit"` // "C" or "D"
	SupplierName string          `json:"supplierName"`
	CostCentre   *ObjectRef      `json:"costCentre"`
}

// VoucherPosition is one booking line of a voucher.
type VoucherPosition struct {
	ID             string          `json:"id"`
	SumGross       decimal.Decimal `json:"sumGross"`
	AccountingType *AccountingType `json:"accountingType"`
}

// AccountingType carries the booking account. ID identifies the type
// (Geldtransit bookings are IDs 40 and 81); AccountingSystemNumber is the
// SKR account number.
type AccountingType struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	AccountingSystemNumber string `json:"accountingSystemNumber"`
}

// VoucherFilter narrows ListVouchers.
type VoucherFilter struct {
	Status   string
	DateFrom time.Time
	Limit    int
}
