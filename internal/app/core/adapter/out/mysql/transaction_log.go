package mysql

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/mysql"
)

// TransactionLog MySQL 交易紀錄，只 INSERT 不 UPDATE
type TransactionLog struct {
	client *mysql.Client
	clock  *domain.MonotonicClock
	logger *slog.Logger
}

// NewTransactionLog clock 為 nil 時使用系統時間
func NewTransactionLog(client *mysql.Client, clock *domain.MonotonicClock, logger *slog.Logger) *TransactionLog {
	if clock == nil {
		clock = domain.NewMonotonicClock(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionLog{client: client, clock: clock, logger: logger}
}

func (l *TransactionLog) Append(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	stored := tx.Clone()
	stored.Timestamp = l.clock.Now()
	err := l.client.DB().WithContext(ctx).Create(transactionFromDomain(stored)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, domain.ErrTransactionExists
	}
	if err != nil {
		return nil, storeErr("insert transaction", err)
	}
	return stored, nil
}

func (l *TransactionLog) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var row sqlTransaction
	err := l.client.DB().WithContext(ctx).Where("ref_id = ?", id[:]).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, storeErr("get transaction", err)
	}
	return row.toDomain()
}

func (l *TransactionLog) ListByAccount(ctx context.Context, refs []uuid.UUID) ([]*domain.Transaction, error) {
	if len(refs) == 0 {
		return []*domain.Transaction{}, nil
	}
	keys := make([][]byte, len(refs))
	for i := range refs {
		keys[i] = refs[i][:]
	}
	var rows []sqlTransaction
	if err := l.client.DB().WithContext(ctx).Where("ref_id IN ?", keys).Find(&rows).Error; err != nil {
		return nil, storeErr("list transactions", err)
	}

	byID := make(map[uuid.UUID]*domain.Transaction, len(rows))
	for i := range rows {
		tx, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
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
	var rows []sqlTransaction
	if err := l.client.DB().WithContext(ctx).Where("account_id = ?", accountID).Order("id").Find(&rows).Error; err != nil {
		return nil, storeErr("list transactions by owner", err)
	}
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
