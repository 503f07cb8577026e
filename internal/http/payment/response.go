package payment

import (
	"github.com/MrJamesThe3rd/rentledger/internal/money"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
)

type envelope struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type settlementResponse struct {
	ApplicationID int64  `json:"aplicacion_id"`
	PaymentID     int64  `json:"pago_id"`
	InvoiceID     int64  `json:"factura_id"`
	AmountApplied string `json:"monto_aplicado"`
}

type applicationResponse struct {
	ID            int64                    `json:"id"`
	InvoiceID     int64                    `json:"factura_id"`
	Amount        string                   `json:"monto_aplicado"`
	InvoiceStatus settlement.InvoiceStatus `json:"factura_estado"`
}

func toSettlementResponse(s *settlement.Settlement) settlementResponse {
	return settlementResponse{
		ApplicationID: s.ApplicationID,
		PaymentID:     s.PaymentID,
		InvoiceID:     s.InvoiceID,
		AmountApplied: money.Format(s.AmountApplied),
	}
}

func toApplicationList(apps []*settlement.ApplicationView) []applicationResponse {
	res := make([]applicationResponse, len(apps))
	for i, a := range apps {
		res[i] = applicationResponse{
			ID:            a.ID,
			InvoiceID:     a.InvoiceID,
			Amount:        money.Format(a.Amount),
			InvoiceStatus: a.InvoiceStatus,
		}
	}

	return res
}
