// Package validator classifies vouchers before they are pushed to the
// budgeting side. It is a pure function over in-memory data: callers load
// the current category mappings and pass them in.
package validator

// DefaultTransferTypeCodes are the accounting type IDs for
// money-in-transit bookings (Geldtransit). Transfers move money between
// own accounts and carry no cost center, so they are exempt from
// validation and never become budget transactions.
var DefaultTransferTypeCodes = []string{"40", "81"}

// Validation reasons surfaced to reports and the API.
const (
	ReasonMissingCostCenter   = "missing cost center"
	ReasonCostCenterNotMapped = "cost center not mapped"
)

// Input is everything the validator needs to know about one voucher.
type Input struct {
	VoucherID           string
	VoucherNumber       string
	CostCenterID        string
	AccountingTypeCodes []string
}

// Result is the verdict for a single voucher.
type Result struct {
	Valid    bool
	Transfer bool
	Reason   string
}

// Validator checks vouchers against the known category mappings.
type Validator struct {
	transferTypes map[string]bool
	mappedCenters map[string]bool
}

// New creates a validator. transferTypeCodes defaults to
// DefaultTransferTypeCodes when empty; mappedCostCenterIDs are the source
// cost centers that currently have a target category.
func New(transferTypeCodes []string, mappedCostCenterIDs []string) *Validator {
	if len(transferTypeCodes) == 0 {
		transferTypeCodes = DefaultTransferTypeCodes
	}

	v := &Validator{
		transferTypes: make(map[string]bool, len(transferTypeCodes)),
		mappedCenters: make(map[string]bool, len(mappedCostCenterIDs)),
	}
	for _, code := range transferTypeCodes {
		v.transferTypes[code] = true
	}
	for _, id := range mappedCostCenterIDs {
		v.mappedCenters[id] = true
	}

	return v
}

// Validate classifies one voucher. Transfer vouchers are valid but flagged
// so the sync stage records and skips them; everything else must carry a
// cost center with an existing mapping.
func (v *Validator) Validate(in Input) Result {
	for _, code := range in.AccountingTypeCodes {
		if v.transferTypes[code] {
			return Result{Valid: true, Transfer: true}
		}
	}

	if in.CostCenterID == "" {
		return Result{Valid: false, Reason: ReasonMissingCostCenter}
	}

	if !v.mappedCenters[in.CostCenterID] {
		return Result{Valid: false, Reason: ReasonCostCenterNotMapped}
	}

	return Result{Valid: true}
}
