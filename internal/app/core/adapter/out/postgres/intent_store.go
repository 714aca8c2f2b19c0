package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

const intentColumns = `id, sender_id, recipient_id, sender_name, recipient_name, amount::text, state, attempts, last_error, created_at, updated_at`

// IntentStore PostgreSQL 轉帳意圖儲存
type IntentStore struct {
	pool *pgxpool.Pool
}

func NewIntentStore(pool *pgxpool.Pool) *IntentStore {
	return &IntentStore{pool: pool}
}

func scanIntent(row scanner) (*domain.TransferIntent, error) {
	var (
		i      domain.TransferIntent
		amount string
		state  int16
	)
	err := row.Scan(&i.ID, &i.SenderID, &i.RecipientID, &i.SenderName, &i.RecipientName,
		&amount, &state, &i.Attempts, &i.LastError, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.State = domain.IntentState(state)
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	if i.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *IntentStore) Create(ctx context.Context, intent *domain.TransferIntent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transfer_intents
			(id, sender_id, recipient_id, sender_name, recipient_name, amount, state, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, $10, $11)`,
		intent.ID, intent.SenderID, intent.RecipientID, intent.SenderName, intent.RecipientName,
		intent.Amount.String(), int16(intent.State), intent.Attempts, intent.LastError,
		intent.CreatedAt, intent.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrIntentExists
	}
	if err != nil {
		return storeErr("create intent", err)
	}
	return nil
}

func (s *IntentStore) Get(ctx context.Context, id uuid.UUID) (*domain.TransferIntent, error) {
	intent, err := scanIntent(s.pool.QueryRow(ctx, `SELECT `+intentColumns+` FROM transfer_intents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIntentNotFound
	}
	if err != nil {
		if errors.Is(err, domain.ErrStoreCorruption) {
			return nil, err
		}
		return nil, storeErr("get intent", err)
	}
	return intent, nil
}

func (s *IntentStore) Update(ctx context.Context, intent *domain.TransferIntent) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transfer_intents
		SET state = $1, attempts = $2, last_error = $3, updated_at = $4
		WHERE id = $5`,
		int16(intent.State), intent.Attempts, intent.LastError, intent.UpdatedAt, intent.ID,
	)
	if err != nil {
		return storeErr("update intent", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIntentNotFound
	}
	return nil
}

func (s *IntentStore) ListIncomplete(ctx context.Context, before time.Time, limit int) ([]*domain.TransferIntent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+intentColumns+` FROM transfer_intents
		WHERE state IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4`,
		int16(domain.IntentStarted), int16(domain.IntentSenderApplied), before, limit,
	)
	if err != nil {
		return nil, storeErr("list incomplete intents", err)
	}
	defer rows.Close()

	var out []*domain.TransferIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list incomplete intents", err)
	}
	return out, nil
}

var _ usecase.IntentStore = (*IntentStore)(nil)
