package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: id, monto, saldo_no_aplicado, updated_at
func scanPayment(s scanner) (*settlement.Payment, error) {
	var p settlement.Payment
	if err := s.Scan(&p.ID, &p.Amount, &p.Unapplied, &p.UpdatedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

// Expected column order: id, monto_original, saldo_pendiente, estado, updated_at
func scanInvoice(s scanner) (*settlement.Invoice, error) {
	var (
		inv    settlement.Invoice
		status string
	)

	if err := s.Scan(&inv.ID, &inv.OriginalAmount, &inv.Outstanding, &status, &inv.UpdatedAt); err != nil {
		return nil, err
	}

	inv.Status = settlement.InvoiceStatus(status)

	return &inv, nil
}

// Expected column order: id, pago_id, factura_id, monto_aplicado, created_at
func scanApplication(s scanner) (*settlement.Application, error) {
	var a settlement.Application
	if err := s.Scan(&a.ID, &a.PaymentID, &a.InvoiceID, &a.Amount, &a.CreatedAt); err != nil {
		return nil, err
	}

	return &a, nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.ErrNotFound
	}

	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*settlement.Payment, error) {
	query := `
		SELECT id, monto, saldo_no_aplicado, updated_at
		FROM pagos
		WHERE id = $1 AND deleted_at IS NULL`

	p, err := scanPayment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "getting payment %d", id)
	}

	return p, nil
}

func (s *Store) ListApplications(ctx context.Context, paymentID int64) ([]*settlement.ApplicationView, error) {
	query := `
		SELECT a.id, a.factura_id, a.monto_aplicado, f.estado
		FROM aplicaciones_pago a
		JOIN facturas f ON f.id = a.factura_id
		WHERE a.pago_id = $1
		ORDER BY a.id DESC`

	rows, err := s.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	views := []*settlement.ApplicationView{}

	for rows.Next() {
		var (
			v      settlement.ApplicationView
			status string
		)

		if err := rows.Scan(&v.ID, &v.InvoiceID, &v.Amount, &status); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}

		v.InvoiceStatus = settlement.InvoiceStatus(status)
		views = append(views, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating application rows: %w", err)
	}

	return views, nil
}

type ledgerTx struct {
	tx *sql.Tx
}

func (s *Store) Begin(ctx context.Context) (settlement.LedgerTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger tx: %w", err)
	}

	return &ledgerTx{tx: dbTx}, nil
}

func (ltx *ledgerTx) Commit() error { return ltx.tx.Commit() }

// Rollback is a no-op once the transaction has committed.
func (ltx *ledgerTx) Rollback() error {
	if err := ltx.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}

func (ltx *ledgerTx) LockPayment(ctx context.Context, id int64) (*settlement.Payment, error) {
	query := `
		SELECT id, monto, saldo_no_aplicado, updated_at
		FROM pagos
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`

	p, err := scanPayment(ltx.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "locking payment %d", id)
	}

	return p, nil
}

func (ltx *ledgerTx) LockInvoice(ctx context.Context, id int64) (*settlement.Invoice, error) {
	query := `
		SELECT id, monto_original, saldo_pendiente, estado, updated_at
		FROM facturas
		WHERE id = $1
		FOR UPDATE`

	inv, err := scanInvoice(ltx.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "locking invoice %d", id)
	}

	return inv, nil
}

func (ltx *ledgerTx) LockApplication(ctx context.Context, paymentID, applicationID int64) (*settlement.Application, error) {
	query := `
		SELECT id, pago_id, factura_id, monto_aplicado, created_at
		FROM aplicaciones_pago
		WHERE id = $1 AND pago_id = $2
		FOR UPDATE`

	a, err := scanApplication(ltx.tx.QueryRowContext(ctx, query, applicationID, paymentID))
	if err != nil {
		return nil, notFoundOr(err, "locking application %d", applicationID)
	}

	return a, nil
}

func (ltx *ledgerTx) CountApplications(ctx context.Context, invoiceID int64) (int, error) {
	var n int
	if err := ltx.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM aplicaciones_pago WHERE factura_id = $1`, invoiceID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting applications: %w", err)
	}

	return n, nil
}

func (ltx *ledgerTx) InsertApplication(ctx context.Context, app *settlement.Application) error {
	query := `
		INSERT INTO aplicaciones_pago (pago_id, factura_id, monto_aplicado, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`

	if err := ltx.tx.QueryRowContext(ctx, query,
		app.PaymentID,
		app.InvoiceID,
		app.Amount,
	).Scan(&app.ID, &app.CreatedAt); err != nil {
		return fmt.Errorf("inserting application: %w", err)
	}

	return nil
}

func (ltx *ledgerTx) DeleteApplication(ctx context.Context, id int64) error {
	res, err := ltx.tx.ExecContext(ctx, `DELETE FROM aplicaciones_pago WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}

	return expectOneRow(res, "application", id)
}

func (ltx *ledgerTx) UpdatePaymentBalance(ctx context.Context, id int64, unapplied decimal.Decimal) error {
	query := `
		UPDATE pagos
		SET saldo_no_aplicado = $1, updated_at = NOW()
		WHERE id = $2
	`

	res, err := ltx.tx.ExecContext(ctx, query, unapplied, id)
	if err != nil {
		return fmt.Errorf("updating payment balance: %w", err)
	}

	return expectOneRow(res, "payment", id)
}

func (ltx *ledgerTx) UpdateInvoiceBalance(ctx context.Context, id int64, outstanding decimal.Decimal, status settlement.InvoiceStatus) error {
	query := `
		UPDATE facturas
		SET saldo_pendiente = $1, estado = $2, updated_at = NOW()
		WHERE id = $3
	`

	res, err := ltx.tx.ExecContext(ctx, query, outstanding, string(status), id)
	if err != nil {
		return fmt.Errorf("updating invoice balance: %w", err)
	}

	return expectOneRow(res, "invoice", id)
}

func expectOneRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected for %s %d: %w", entity, id, err)
	}

	if n != 1 {
		return fmt.Errorf("%s %d: expected 1 row affected, got %d", entity, id, n)
	}

	return nil
}
