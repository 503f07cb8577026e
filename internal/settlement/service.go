package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/rentledger/internal/audit"
	"github.com/MrJamesThe3rd/rentledger/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=settlement
type Repository interface {
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListApplications(ctx context.Context, paymentID int64) ([]*ApplicationView, error)

	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is one unit of work against the ledger. Lock* methods take an exclusive row lock held
// until Commit or Rollback and return ErrNotFound when the row does not exist.
type LedgerTx interface {
	LockPayment(ctx context.Context, id int64) (*Payment, error)
	LockInvoice(ctx context.Context, id int64) (*Invoice, error)
	LockApplication(ctx context.Context, paymentID, applicationID int64) (*Application, error)
	CountApplications(ctx context.Context, invoiceID int64) (int, error)

	InsertApplication(ctx context.Context, app *Application) error
	DeleteApplication(ctx context.Context, id int64) error
	UpdatePaymentBalance(ctx context.Context, id int64, unapplied decimal.Decimal) error
	UpdateInvoiceBalance(ctx context.Context, id int64, outstanding decimal.Decimal, status InvoiceStatus) error

	Commit() error
	Rollback() error
}

// Auditor receives events after a unit of work has committed.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}

type Service struct {
	repo    Repository
	auditor Auditor
}

func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor}
}

type ApplyParams struct {
	PaymentID int64
	InvoiceID int64
	Amount    decimal.Decimal
	Actor     string
}

func (p ApplyParams) validate() error {
	if p.PaymentID <= 0 {
		return invalid("pago_id must be a positive integer")
	}

	if p.InvoiceID <= 0 {
		return invalid("factura_id must be a positive integer")
	}

	if err := money.ValidatePositive(p.Amount); err != nil {
		return invalid("monto_aplicado: %s", err)
	}

	return nil
}

type ReverseParams struct {
	PaymentID     int64
	ApplicationID int64
	Actor         string
}

func (p ReverseParams) validate() error {
	if p.PaymentID <= 0 {
		return invalid("pago_id must be a positive integer")
	}

	if p.ApplicationID <= 0 {
		return invalid("aplicacion_id must be a positive integer")
	}

	return nil
}

type VoidParams struct {
	InvoiceID int64
	Actor     string
}

// Apply allocates params.Amount of a payment's unapplied balance to an invoice.
// Locks are taken payment first, then invoice.
func (s *Service) Apply(ctx context.Context, params ApplyParams) (*Settlement, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	amount := money.Round(params.Amount)
	logAttrs := []any{"pago_id", params.PaymentID, "factura_id", params.InvoiceID, "monto", money.Format(amount)}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, internalError("begin apply", err, logAttrs...)
	}
	defer tx.Rollback()

	app, err := apply(ctx, tx, params.PaymentID, params.InvoiceID, amount)
	if err != nil {
		if isKnown(err) {
			return nil, err
		}

		return nil, internalError("apply", err, logAttrs...)
	}

	if err := tx.Commit(); err != nil {
		return nil, internalError("commit apply", err, logAttrs...)
	}

	s.record(ctx, audit.Event{
		Actor:         params.Actor,
		Action:        audit.ActionPaymentApplied,
		PaymentID:     app.PaymentID,
		InvoiceID:     app.InvoiceID,
		ApplicationID: app.ID,
		Amount:        app.Amount,
	})

	return &Settlement{
		PaymentID:     app.PaymentID,
		InvoiceID:     app.InvoiceID,
		ApplicationID: app.ID,
		AmountApplied: app.Amount,
	}, nil
}

func apply(ctx context.Context, tx LedgerTx, paymentID, invoiceID int64, amount decimal.Decimal) (*Application, error) {
	payment, err := tx.LockPayment(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, "payment %d not found", paymentID)
	}

	invoice, err := tx.LockInvoice(ctx, invoiceID)
	if err != nil {
		return nil, lookupError(err, "invoice %d not found", invoiceID)
	}

	if invoice.Status == InvoiceVoided {
		return nil, conflict(MsgVoidedInvoice)
	}

	if amount.GreaterThan(payment.Unapplied) {
		return nil, conflict(MsgExceedsUnapplied)
	}

	if amount.GreaterThan(invoice.Outstanding) {
		return nil, conflict(MsgExceedsOutstanding)
	}

	app := &Application{PaymentID: paymentID, InvoiceID: invoiceID, Amount: amount}
	if err := tx.InsertApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("inserting application: %w", err)
	}

	unapplied := money.Sub(payment.Unapplied, amount)
	if err := tx.UpdatePaymentBalance(ctx, paymentID, unapplied); err != nil {
		return nil, fmt.Errorf("updating payment balance: %w", err)
	}

	outstanding := money.Sub(invoice.Outstanding, amount)
	if err := tx.UpdateInvoiceBalance(ctx, invoiceID, outstanding, statusAfterApply(outstanding)); err != nil {
		return nil, fmt.Errorf("updating invoice balance: %w", err)
	}

	return app, nil
}

// Reverse undoes an application, crediting its amount back to both the payment and the invoice.
// Locks are taken application, payment, invoice, in that order.
func (s *Service) Reverse(ctx context.Context, params ReverseParams) error {
	if err := params.validate(); err != nil {
		return err
	}

	logAttrs := []any{"pago_id", params.PaymentID, "aplicacion_id", params.ApplicationID}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return internalError("begin reverse", err, logAttrs...)
	}
	defer tx.Rollback()

	app, err := reverse(ctx, tx, params.PaymentID, params.ApplicationID)
	if err != nil {
		if isKnown(err) {
			return err
		}

		return internalError("reverse", err, logAttrs...)
	}

	if err := tx.Commit(); err != nil {
		return internalError("commit reverse", err, logAttrs...)
	}

	s.record(ctx, audit.Event{
		Actor:         params.Actor,
		Action:        audit.ActionPaymentReversed,
		PaymentID:     app.PaymentID,
		InvoiceID:     app.InvoiceID,
		ApplicationID: app.ID,
		Amount:        app.Amount,
	})

	return nil
}

func reverse(ctx context.Context, tx LedgerTx, paymentID, applicationID int64) (*Application, error) {
	app, err := tx.LockApplication(ctx, paymentID, applicationID)
	if err != nil {
		return nil, lookupError(err, "application %d not found for payment %d", applicationID, paymentID)
	}

	payment, err := tx.LockPayment(ctx, app.PaymentID)
	if err != nil {
		return nil, lookupError(err, "payment %d not found", app.PaymentID)
	}

	invoice, err := tx.LockInvoice(ctx, app.InvoiceID)
	if err != nil {
		return nil, lookupError(err, "invoice %d not found", app.InvoiceID)
	}

	unapplied := money.Add(payment.Unapplied, app.Amount)
	if err := tx.UpdatePaymentBalance(ctx, payment.ID, unapplied); err != nil {
		return nil, fmt.Errorf("updating payment balance: %w", err)
	}

	invoice.Outstanding = money.Add(invoice.Outstanding, app.Amount)
	if err := tx.UpdateInvoiceBalance(ctx, invoice.ID, invoice.Outstanding, statusAfterReverse(invoice)); err != nil {
		return nil, fmt.Errorf("updating invoice balance: %w", err)
	}

	if err := tx.DeleteApplication(ctx, app.ID); err != nil {
		return nil, fmt.Errorf("deleting application: %w", err)
	}

	return app, nil
}

// ListApplications returns the applications of a payment, newest first.
func (s *Service) ListApplications(ctx context.Context, paymentID int64) ([]*ApplicationView, error) {
	if paymentID <= 0 {
		return nil, invalid("pago_id must be a positive integer")
	}

	if _, err := s.repo.GetPayment(ctx, paymentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("payment %d not found", paymentID)
		}

		return nil, internalError("get payment", err, "pago_id", paymentID)
	}

	apps, err := s.repo.ListApplications(ctx, paymentID)
	if err != nil {
		return nil, internalError("list applications", err, "pago_id", paymentID)
	}

	return apps, nil
}

// VoidInvoice marks an invoice ANULADA. Invoices that still have applications must have them
// reversed first. Voiding an already voided invoice is a no-op.
func (s *Service) VoidInvoice(ctx context.Context, params VoidParams) (*Invoice, error) {
	if params.InvoiceID <= 0 {
		return nil, invalid("factura_id must be a positive integer")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, internalError("begin void", err, "factura_id", params.InvoiceID)
	}
	defer tx.Rollback()

	invoice, err := tx.LockInvoice(ctx, params.InvoiceID)
	if err != nil {
		err = lookupError(err, "invoice %d not found", params.InvoiceID)
		if isKnown(err) {
			return nil, err
		}

		return nil, internalError("lock invoice", err, "factura_id", params.InvoiceID)
	}

	if invoice.Status == InvoiceVoided {
		return invoice, nil
	}

	n, err := tx.CountApplications(ctx, invoice.ID)
	if err != nil {
		return nil, internalError("count applications", err, "factura_id", invoice.ID)
	}

	if n > 0 {
		return nil, conflict(MsgHasApplications)
	}

	if err := tx.UpdateInvoiceBalance(ctx, invoice.ID, invoice.Outstanding, InvoiceVoided); err != nil {
		return nil, internalError("void invoice", err, "factura_id", invoice.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, internalError("commit void", err, "factura_id", invoice.ID)
	}

	invoice.Status = InvoiceVoided

	s.record(ctx, audit.Event{
		Actor:     params.Actor,
		Action:    audit.ActionInvoiceVoided,
		InvoiceID: invoice.ID,
		Amount:    invoice.Outstanding,
	})

	return invoice, nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}

	s.auditor.Record(ctx, event)
}

// lookupError turns a store ErrNotFound into a caller-facing NotFound, leaving other errors alone.
func lookupError(err error, format string, args ...any) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(format, args...)
	}

	return err
}

func isKnown(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func internalError(op string, err error, attrs ...any) error {
	slog.Error("settlement "+op+" failed", append(attrs, "error", err)...)
	return fmt.Errorf("%s: %w", op, err)
}
