package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/rentledger/internal/auth"
	"github.com/MrJamesThe3rd/rentledger/internal/http/bind"
	"github.com/MrJamesThe3rd/rentledger/internal/http/respond"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
)

type Handler struct {
	svc *settlement.Service
}

func NewHandler(svc *settlement.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes is mounted under /pagos/{pagoId}/aplicaciones.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.apply)
	r.Get("/", h.list)
	r.Delete("/{aplicacionId}", h.reverse)
}

type applyRequest struct {
	InvoiceID int64           `json:"factura_id" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"monto_aplicado" validate:"required"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := bind.ID(w, r, "pagoId")
	if !ok {
		return
	}

	var req applyRequest
	if !bind.JSON(w, r, &req) {
		return
	}

	result, err := h.svc.Apply(r.Context(), settlement.ApplyParams{
		PaymentID: paymentID,
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Actor:     auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		respond.FromError(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, envelope{
		Message: "payment applied",
		Data:    toSettlementResponse(result),
	})
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := bind.ID(w, r, "pagoId")
	if !ok {
		return
	}

	applicationID, ok := bind.ID(w, r, "aplicacionId")
	if !ok {
		return
	}

	err := h.svc.Reverse(r.Context(), settlement.ReverseParams{
		PaymentID:     paymentID,
		ApplicationID: applicationID,
		Actor:         auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		respond.FromError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, envelope{Message: "application reversed"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := bind.ID(w, r, "pagoId")
	if !ok {
		return
	}

	apps, err := h.svc.ListApplications(r.Context(), paymentID)
	if err != nil {
		respond.FromError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, envelope{Data: toApplicationList(apps)})
}
