package invoice

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/rentledger/internal/auth"
	"github.com/MrJamesThe3rd/rentledger/internal/http/bind"
	"github.com/MrJamesThe3rd/rentledger/internal/http/respond"
	"github.com/MrJamesThe3rd/rentledger/internal/money"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
)

type Handler struct {
	svc *settlement.Service
}

func NewHandler(svc *settlement.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes is mounted under /facturas.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{facturaId}/anular", h.void)
}

type invoiceResponse struct {
	ID          int64                    `json:"id"`
	Status      settlement.InvoiceStatus `json:"estado"`
	Outstanding string                   `json:"saldo_pendiente"`
}

type voidResponse struct {
	Message string          `json:"message"`
	Data    invoiceResponse `json:"data"`
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := bind.ID(w, r, "facturaId")
	if !ok {
		return
	}

	inv, err := h.svc.VoidInvoice(r.Context(), settlement.VoidParams{
		InvoiceID: invoiceID,
		Actor:     auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		respond.FromError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, voidResponse{
		Message: "invoice voided",
		Data: invoiceResponse{
			ID:          inv.ID,
			Status:      inv.Status,
			Outstanding: money.Format(inv.Outstanding),
		},
	})
}
