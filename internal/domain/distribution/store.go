package distribution

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"payrolladmin/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Append(ctx context.Context, tenantID string, evt SendEvent) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO send_events (tenant_id, batch_id, recipient, status, provider_message_id, error)
    VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''))
  `, tenantID, evt.BatchID, evt.Recipient, evt.Status, evt.ProviderMessageID, evt.Error)
	return err
}

const eventColumns = `
    SELECT id::text, batch_id::text, recipient, status,
           COALESCE(provider_message_id, ''), COALESCE(error, ''), status_updated_at, created_at
    FROM send_events
    WHERE tenant_id = $1 AND batch_id::text = $2
    ORDER BY created_at DESC`

func (s *Store) Last(ctx context.Context, tenantID, batchID string) (SendEvent, error) {
	evt, err := scanEvent(s.DB.QueryRow(ctx, eventColumns+" LIMIT 1", tenantID, batchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return SendEvent{}, ErrNoSendEvents
	}
	return evt, err
}

func (s *Store) List(ctx context.Context, tenantID, batchID string) ([]SendEvent, error) {
	rows, err := s.DB.Query(ctx, eventColumns, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SendEvent
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row) (SendEvent, error) {
	var evt SendEvent
	err := row.Scan(&evt.ID, &evt.BatchID, &evt.Recipient, &evt.Status, &evt.ProviderMessageID, &evt.Error, &evt.StatusUpdatedAt, &evt.CreatedAt)
	return evt, err
}
