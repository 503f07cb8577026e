package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
	"github.com/MrJamesThe3rd/rentledger/internal/settlement/memstore"
)

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	pago := store.AddPayment(decimal.NewFromInt(100))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.LockPayment(ctx, pago)
	require.NoError(t, err)
	require.NoError(t, tx.UpdatePaymentBalance(ctx, pago, decimal.NewFromInt(10)))
	require.NoError(t, tx.Rollback())

	p, _ := store.Payment(pago)
	assert.True(t, p.Unapplied.Equal(decimal.NewFromInt(100)))
}

func TestStore_WritesVisibleOnlyAfterCommit(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	factura := store.AddInvoice(decimal.NewFromInt(100), settlement.InvoiceOpen)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.LockInvoice(ctx, factura)
	require.NoError(t, err)
	require.NoError(t, tx.UpdateInvoiceBalance(ctx, factura, decimal.NewFromInt(40), settlement.InvoicePartial))

	inv, _ := store.Invoice(factura)
	assert.Equal(t, settlement.InvoiceOpen, inv.Status)

	require.NoError(t, tx.Commit())

	inv, _ = store.Invoice(factura)
	assert.Equal(t, settlement.InvoicePartial, inv.Status)
	assert.True(t, inv.Outstanding.Equal(decimal.NewFromInt(40)))
	assert.NotNil(t, inv.UpdatedAt)

	assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")
	assert.ErrorIs(t, tx.Commit(), memstore.ErrTxDone)
}

func TestStore_LockBlocksUntilRelease(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	pago := store.AddPayment(decimal.NewFromInt(100))

	first, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = first.LockPayment(ctx, pago)
	require.NoError(t, err)

	second, err := store.Begin(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err = second.LockPayment(waitCtx, pago)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan error, 1)

	go func() {
		_, err := second.LockPayment(ctx, pago)
		acquired <- err
	}()

	require.NoError(t, first.UpdatePaymentBalance(ctx, pago, decimal.NewFromInt(70)))
	require.NoError(t, first.Commit())

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second transaction never acquired the lock")
	}

	p, err := second.LockPayment(ctx, pago)
	require.NoError(t, err)
	assert.True(t, p.Unapplied.Equal(decimal.NewFromInt(70)), "second tx reads the committed balance")
	require.NoError(t, second.Rollback())
}

func TestStore_WritesRequireLock(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	pago := store.AddPayment(decimal.NewFromInt(100))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.Error(t, tx.UpdatePaymentBalance(ctx, pago, decimal.Zero))
	assert.Error(t, tx.DeleteApplication(ctx, 1))
}

func TestStore_NotFound(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.LockPayment(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrNotFound)

	_, err = tx.LockInvoice(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrNotFound)

	_, err = tx.LockApplication(ctx, 1, 1)
	assert.ErrorIs(t, err, settlement.ErrNotFound)

	_, err = store.GetPayment(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrNotFound)
}

func TestStore_CountApplicationsSeesOwnWrites(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	pago := store.AddPayment(decimal.NewFromInt(100))
	factura := store.AddInvoice(decimal.NewFromInt(100), settlement.InvoiceOpen)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	app := &settlement.Application{PaymentID: pago, InvoiceID: factura, Amount: decimal.NewFromInt(5)}
	require.NoError(t, tx.InsertApplication(ctx, app))
	assert.NotZero(t, app.ID)

	n, err := tx.CountApplications(ctx, factura)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, visible := store.Application(app.ID)
	assert.False(t, visible)
}
