// Package audit records who changed ledger balances and when.
// Recording never fails the caller: the ledger change it describes has already committed.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionPaymentApplied  Action = "pago.aplicado"
	ActionPaymentReversed Action = "pago.revertido"
	ActionInvoiceVoided   Action = "factura.anulada"
)

type Event struct {
	ID            uuid.UUID
	Actor         string
	Action        Action
	PaymentID     int64
	InvoiceID     int64
	ApplicationID int64
	Amount        decimal.Decimal
	OccurredAt    time.Time
}

type Repository interface {
	InsertEvent(ctx context.Context, event *Event) error
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record stamps the event with an id and time, then persists it. Failures are logged.
func (s *Service) Record(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	if event.Actor == "" {
		event.Actor = "anonymous"
	}

	if err := s.repo.InsertEvent(ctx, &event); err != nil {
		slog.Error("failed to record audit event",
			"action", event.Action,
			"actor", event.Actor,
			"pago_id", event.PaymentID,
			"factura_id", event.InvoiceID,
			"aplicacion_id", event.ApplicationID,
			"monto", event.Amount.StringFixed(2),
			"error", err,
		)

		return
	}

	slog.Info("audit event recorded", "action", event.Action, "actor", event.Actor, "id", event.ID)
}

// LogRepository writes events to the structured log only. Used when no database is configured.
type LogRepository struct{}

func (LogRepository) InsertEvent(_ context.Context, event *Event) error {
	slog.Info("audit",
		"id", event.ID,
		"action", event.Action,
		"actor", event.Actor,
		"pago_id", event.PaymentID,
		"factura_id", event.InvoiceID,
		"aplicacion_id", event.ApplicationID,
		"monto", event.Amount.StringFixed(2),
		"occurred_at", event.OccurredAt,
	)

	return nil
}
