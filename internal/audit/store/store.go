package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrJamesThe3rd/rentledger/internal/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertEvent(ctx context.Context, event *audit.Event) error {
	query := `
		INSERT INTO auditoria (id, actor, accion, pago_id, factura_id, aplicacion_id, monto, ocurrido_en)
		VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0), NULLIF($6, 0), $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Actor,
		event.Action,
		event.PaymentID,
		event.InvoiceID,
		event.ApplicationID,
		event.Amount,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}

	return nil
}
