package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

const transactionColumns = `id, account_id, type, amount::text, counterparty_name, operation_id, created_at`

// TransactionLog PostgreSQL 交易紀錄，只 INSERT
type TransactionLog struct {
	pool   *pgxpool.Pool
	clock  *domain.MonotonicClock
	logger *slog.Logger
}

// NewTransactionLog clock 為 nil 時使用系統時間
func NewTransactionLog(pool *pgxpool.Pool, clock *domain.MonotonicClock, logger *slog.Logger) *TransactionLog {
	if clock == nil {
		clock = domain.NewMonotonicClock(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionLog{pool: pool, clock: clock, logger: logger}
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		txType int16
		amount string
	)
	if err := row.Scan(&tx.ID, &tx.AccountID, &txType, &amount, &tx.CounterpartyName, &tx.OperationID, &tx.Timestamp); err != nil {
		return nil, err
	}
	tx.Type = domain.TransactionType(txType)
	tx.Timestamp = tx.Timestamp.UTC()
	var err error
	if tx.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (l *TransactionLog) Append(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	stored := tx.Clone()
	stored.Timestamp = l.clock.Now()
	_, err := l.pool.Exec(ctx, `
		INSERT INTO transactions (id, account_id, type, amount, counterparty_name, operation_id, created_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)`,
		stored.ID, stored.AccountID, int16(stored.Type), stored.Amount.String(),
		stored.CounterpartyName, stored.OperationID, stored.Timestamp,
	)
	if isUniqueViolation(err) {
		return nil, domain.ErrTransactionExists
	}
	if err != nil {
		return nil, storeErr("insert transaction", err)
	}
	return stored, nil
}

func (l *TransactionLog) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, err := scanTransaction(l.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		if errors.Is(err, domain.ErrStoreCorruption) {
			return nil, err
		}
		return nil, storeErr("get transaction", err)
	}
	return tx, nil
}

func (l *TransactionLog) ListByAccount(ctx context.Context, refs []uuid.UUID) ([]*domain.Transaction, error) {
	if len(refs) == 0 {
		return []*domain.Transaction{}, nil
	}
	found, err := l.query(ctx, "list transactions",
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ANY($1::text[]::uuid[])`, refsToText(refs))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.Transaction, len(found))
	for _, tx := range found {
		byID[tx.ID] = tx
	}
	out := make([]*domain.Transaction, 0, len(refs))
	for _, id := range refs {
		tx, ok := byID[id]
		if !ok {
			l.logger.Warn("account references a transaction missing from the log", "transaction_id", id)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (l *TransactionLog) ListByOwner(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	return l.query(ctx, "list transactions by owner",
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY seq`, accountID)
}

func (l *TransactionLog) query(ctx context.Context, op, sql string, args ...any) ([]*domain.Transaction, error) {
	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()
	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
