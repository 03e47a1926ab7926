package handlers

import (
	"net/http"

	"github.com/fkoester/sevactual/internal/api/dto"
	"github.com/fkoester/sevactual/internal/storage"
)

// VouchersHandler serves voucher state, currently the invalid listing.
type VouchersHandler struct {
	*Base
}

// NewVouchersHandler creates a vouchers handler.
func NewVouchersHandler(repo storage.Repository) *VouchersHandler {
	return &VouchersHandler{Base: NewBase(repo)}
}

// ListInvalid returns all vouchers whose last validation failed.
func (h *VouchersHandler) ListInvalid(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.repo.ListInvalidVouchers()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	out := make([]dto.InvalidVoucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, dto.FromVoucher(v))
	}
	h.WriteJSON(w, http.StatusOK, out)
}
