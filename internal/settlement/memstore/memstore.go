// Package memstore is an in-memory settlement.Repository for tests and local development.
//
// Each payment, invoice and application row has its own exclusive lock, taken by the Lock* methods
// and held until Commit or Rollback, mirroring SELECT ... FOR UPDATE. Writes are buffered in the
// transaction and become visible only on Commit.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/rentledger/internal/settlement"
)

var ErrTxDone = errors.New("memstore: transaction already committed or rolled back")

type table uint8

const (
	tablePayments table = iota
	tableInvoices
	tableApplications
)

type rowKey struct {
	table table
	id    int64
}

type Store struct {
	mu           sync.Mutex
	payments     map[int64]settlement.Payment
	invoices     map[int64]settlement.Invoice
	applications map[int64]settlement.Application
	locks        map[rowKey]chan struct{}
	lastID       map[table]int64
	now          func() time.Time
}

func New() *Store {
	return &Store{
		payments:     make(map[int64]settlement.Payment),
		invoices:     make(map[int64]settlement.Invoice),
		applications: make(map[int64]settlement.Application),
		locks:        make(map[rowKey]chan struct{}),
		lastID:       make(map[table]int64),
		now:          time.Now,
	}
}

// AddPayment stores a new payment with its whole amount unapplied and returns its id.
func (s *Store) AddPayment(amount decimal.Decimal) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextIDLocked(tablePayments)
	s.payments[id] = settlement.Payment{ID: id, Amount: amount, Unapplied: amount}

	return id
}

// AddInvoice stores a new invoice with its whole amount outstanding and returns its id.
func (s *Store) AddInvoice(amount decimal.Decimal, status settlement.InvoiceStatus) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextIDLocked(tableInvoices)
	s.invoices[id] = settlement.Invoice{ID: id, OriginalAmount: amount, Outstanding: amount, Status: status}

	return id
}

// Payment returns a committed snapshot of a payment.
func (s *Store) Payment(id int64) (settlement.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]

	return p, ok
}

// Invoice returns a committed snapshot of an invoice.
func (s *Store) Invoice(id int64) (settlement.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]

	return inv, ok
}

// Application returns a committed snapshot of an application.
func (s *Store) Application(id int64) (settlement.Application, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.applications[id]

	return a, ok
}

func (s *Store) GetPayment(_ context.Context, id int64) (*settlement.Payment, error) {
	p, ok := s.Payment(id)
	if !ok {
		return nil, settlement.ErrNotFound
	}

	return &p, nil
}

func (s *Store) ListApplications(_ context.Context, paymentID int64) ([]*settlement.ApplicationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := []*settlement.ApplicationView{}

	for _, a := range s.applications {
		if a.PaymentID != paymentID {
			continue
		}

		views = append(views, &settlement.ApplicationView{
			ID:            a.ID,
			InvoiceID:     a.InvoiceID,
			Amount:        a.Amount,
			InvoiceStatus: s.invoices[a.InvoiceID].Status,
		})
	}

	slices.SortFunc(views, func(a, b *settlement.ApplicationView) int {
		return cmp.Compare(b.ID, a.ID)
	})

	return views, nil
}

func (s *Store) Begin(_ context.Context) (settlement.LedgerTx, error) {
	return &ledgerTx{
		store:    s,
		held:     make(map[rowKey]chan struct{}),
		payments: make(map[int64]settlement.Payment),
		invoices: make(map[int64]settlement.Invoice),
		deleted:  make(map[int64]struct{}),
	}, nil
}

func (s *Store) nextIDLocked(t table) int64 {
	s.lastID[t]++
	return s.lastID[t]
}

func (s *Store) lockChan(k rowKey) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.locks[k]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[k] = ch
	}

	return ch
}

type ledgerTx struct {
	store *Store
	done  bool

	held     map[rowKey]chan struct{}
	payments map[int64]settlement.Payment
	invoices map[int64]settlement.Invoice
	inserted []settlement.Application
	deleted  map[int64]struct{}
}

// lock blocks until the row lock is free or ctx is done. Re-locking a held row is a no-op.
func (tx *ledgerTx) lock(ctx context.Context, k rowKey) error {
	if tx.done {
		return ErrTxDone
	}

	if _, ok := tx.held[k]; ok {
		return nil
	}

	ch := tx.store.lockChan(k)

	select {
	case ch <- struct{}{}:
		tx.held[k] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (tx *ledgerTx) release() {
	for k, ch := range tx.held {
		<-ch
		delete(tx.held, k)
	}

	tx.done = true
}

func (tx *ledgerTx) LockPayment(ctx context.Context, id int64) (*settlement.Payment, error) {
	if err := tx.lock(ctx, rowKey{tablePayments, id}); err != nil {
		return nil, err
	}

	if p, ok := tx.payments[id]; ok {
		return &p, nil
	}

	p, ok := tx.store.Payment(id)
	if !ok {
		return nil, settlement.ErrNotFound
	}

	return &p, nil
}

func (tx *ledgerTx) LockInvoice(ctx context.Context, id int64) (*settlement.Invoice, error) {
	if err := tx.lock(ctx, rowKey{tableInvoices, id}); err != nil {
		return nil, err
	}

	if inv, ok := tx.invoices[id]; ok {
		return &inv, nil
	}

	inv, ok := tx.store.Invoice(id)
	if !ok {
		return nil, settlement.ErrNotFound
	}

	return &inv, nil
}

func (tx *ledgerTx) LockApplication(ctx context.Context, paymentID, applicationID int64) (*settlement.Application, error) {
	if err := tx.lock(ctx, rowKey{tableApplications, applicationID}); err != nil {
		return nil, err
	}

	if _, gone := tx.deleted[applicationID]; gone {
		return nil, settlement.ErrNotFound
	}

	a, ok := tx.store.Application(applicationID)
	if !ok || a.PaymentID != paymentID {
		return nil, settlement.ErrNotFound
	}

	return &a, nil
}

func (tx *ledgerTx) CountApplications(_ context.Context, invoiceID int64) (int, error) {
	if tx.done {
		return 0, ErrTxDone
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	n := 0

	for id, a := range tx.store.applications {
		if _, gone := tx.deleted[id]; gone || a.InvoiceID != invoiceID {
			continue
		}

		n++
	}

	for _, a := range tx.inserted {
		if a.InvoiceID == invoiceID {
			n++
		}
	}

	return n, nil
}

func (tx *ledgerTx) InsertApplication(_ context.Context, app *settlement.Application) error {
	if tx.done {
		return ErrTxDone
	}

	tx.store.mu.Lock()
	app.ID = tx.store.nextIDLocked(tableApplications)
	app.CreatedAt = tx.store.now().UTC()
	tx.store.mu.Unlock()

	tx.inserted = append(tx.inserted, *app)

	return nil
}

func (tx *ledgerTx) DeleteApplication(_ context.Context, id int64) error {
	if tx.done {
		return ErrTxDone
	}

	if _, ok := tx.held[rowKey{tableApplications, id}]; !ok {
		return errors.New("memstore: deleting an application that is not locked")
	}

	tx.deleted[id] = struct{}{}

	return nil
}

func (tx *ledgerTx) UpdatePaymentBalance(_ context.Context, id int64, unapplied decimal.Decimal) error {
	if tx.done {
		return ErrTxDone
	}

	if _, ok := tx.held[rowKey{tablePayments, id}]; !ok {
		return errors.New("memstore: updating a payment that is not locked")
	}

	p, ok := tx.payments[id]
	if !ok {
		if p, ok = tx.store.Payment(id); !ok {
			return settlement.ErrNotFound
		}
	}

	p.Unapplied = unapplied
	now := tx.store.now().UTC()
	p.UpdatedAt = &now
	tx.payments[id] = p

	return nil
}

func (tx *ledgerTx) UpdateInvoiceBalance(
	_ context.Context, id int64, outstanding decimal.Decimal, status settlement.InvoiceStatus,
) error {
	if tx.done {
		return ErrTxDone
	}

	if _, ok := tx.held[rowKey{tableInvoices, id}]; !ok {
		return errors.New("memstore: updating an invoice that is not locked")
	}

	inv, ok := tx.invoices[id]
	if !ok {
		if inv, ok = tx.store.Invoice(id); !ok {
			return settlement.ErrNotFound
		}
	}

	inv.Outstanding = outstanding
	inv.Status = status
	now := tx.store.now().UTC()
	inv.UpdatedAt = &now
	tx.invoices[id] = inv

	return nil
}

func (tx *ledgerTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}

	s := tx.store
	s.mu.Lock()

	for id, p := range tx.payments {
		s.payments[id] = p
	}

	for id, inv := range tx.invoices {
		s.invoices[id] = inv
	}

	for _, a := range tx.inserted {
		s.applications[a.ID] = a
	}

	for id := range tx.deleted {
		delete(s.applications, id)
	}

	s.mu.Unlock()

	tx.release()

	return nil
}

// Rollback discards buffered writes and releases locks. It is a no-op after Commit.
func (tx *ledgerTx) Rollback() error {
	if tx.done {
		return nil
	}

	tx.release()

	return nil
}
