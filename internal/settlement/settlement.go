package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice (factura).
type InvoiceStatus string

const (
	InvoiceOpen    InvoiceStatus = "ABIERTA"
	InvoicePartial InvoiceStatus = "PARCIAL"
	InvoicePaid    InvoiceStatus = "PAGADA"
	InvoiceOverdue InvoiceStatus = "VENCIDA"
	InvoiceVoided  InvoiceStatus = "ANULADA"
)

// Invoice is a billable obligation with an outstanding balance.
type Invoice struct {
	ID             int64
	OriginalAmount decimal.Decimal // monto_original
	Outstanding    decimal.Decimal // saldo_pendiente
	Status         InvoiceStatus
	UpdatedAt      *time.Time
}

// Payment is money received, part of which may not yet be applied to any invoice.
type Payment struct {
	ID        int64
	Amount    decimal.Decimal // monto
	Unapplied decimal.Decimal // saldo_no_aplicado
	UpdatedAt *time.Time
}

// Application allocates part of a payment to one invoice.
type Application struct {
	ID        int64
	PaymentID int64
	InvoiceID int64
	Amount    decimal.Decimal // monto_aplicado
	CreatedAt time.Time
}

// ApplicationView is an application joined with the current state of its invoice.
type ApplicationView struct {
	ID            int64
	InvoiceID     int64
	Amount        decimal.Decimal
	InvoiceStatus InvoiceStatus
}

// Settlement is the outcome of a successful Apply.
type Settlement struct {
	PaymentID     int64
	InvoiceID     int64
	ApplicationID int64
	AmountApplied decimal.Decimal
}

// statusAfterApply is the invoice state once an application has reduced its balance.
func statusAfterApply(outstanding decimal.Decimal) InvoiceStatus {
	if outstanding.Sign() <= 0 {
		return InvoicePaid
	}

	return InvoicePartial
}

// statusAfterReverse is the invoice state once a reversal has credited its balance back.
// A voided invoice stays voided; a balance restored to the full original amount reopens it.
func statusAfterReverse(inv *Invoice) InvoiceStatus {
	switch {
	case inv.Status == InvoiceVoided:
		return InvoiceVoided
	case inv.Outstanding.Sign() <= 0:
		return InvoicePaid
	case inv.Outstanding.GreaterThanOrEqual(inv.OriginalAmount):
		return InvoiceOpen
	default:
		return InvoicePartial
	}
}
