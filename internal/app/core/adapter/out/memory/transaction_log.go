package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

// TransactionLog 記憶體交易紀錄 (只追加)
type TransactionLog struct {
	mu      sync.RWMutex
	txs     map[uuid.UUID]*domain.Transaction
	byOwner map[string][]uuid.UUID

	clock  *domain.MonotonicClock
	wal    *wal.WAL
	logger *slog.Logger

	// visibilityDelay 模擬查詢路徑的傳播延遲：寫入後這段時間內 ListByAccount 看不到
	visibilityDelay time.Duration
	now             func() time.Time
}

// TransactionLogOption 設定 TransactionLog 的選項函數
type TransactionLogOption func(*TransactionLog)

// WithWAL 使用 WAL 持久化交易
func WithWAL(w *wal.WAL) TransactionLogOption {
	return func(l *TransactionLog) { l.wal = w }
}

// WithClock 指定分配 Timestamp 的時鐘
func WithClock(c *domain.MonotonicClock) TransactionLogOption {
	return func(l *TransactionLog) { l.clock = c }
}

// WithLogger 指定 logger
func WithLogger(logger *slog.Logger) TransactionLogOption {
	return func(l *TransactionLog) { l.logger = logger }
}

// WithVisibilityDelay 設定 ListByAccount 的可見延遲
func WithVisibilityDelay(d time.Duration) TransactionLogOption {
	return func(l *TransactionLog) { l.visibilityDelay = d }
}

// NewTransactionLog 建立交易紀錄，有 WAL 時先重放
func NewTransactionLog(opts ...TransactionLogOption) (*TransactionLog, error) {
	l := &TransactionLog{
		txs:     make(map[uuid.UUID]*domain.Transaction),
		byOwner: make(map[string][]uuid.UUID),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.clock == nil {
		l.clock = domain.NewMonotonicClock(nil)
	}
	if err := l.recoverFromWAL(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *TransactionLog) recoverFromWAL() error {
	if l.wal == nil {
		return nil
	}
	return l.wal.ReadAll(func(jsonRaw []byte) error {
		var tx domain.Transaction
		if err := json.Unmarshal(jsonRaw, &tx); err != nil {
			return fmt.Errorf("replay transaction: %w", err)
		}
		if _, ok := l.txs[tx.ID]; ok {
			return nil
		}
		l.txs[tx.ID] = &tx
		l.byOwner[tx.AccountID] = append(l.byOwner[tx.AccountID], tx.ID)
		l.clock.Observe(tx.Timestamp)
		return nil
	})
}

// Append 寫入交易並分配 Timestamp
func (l *TransactionLog) Append(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.txs[tx.ID]; ok {
		return nil, domain.ErrTransactionExists
	}
	stored := tx.Clone()
	stored.Timestamp = l.clock.Now()
	if l.wal != nil {
		if err := l.wal.Write(stored); err != nil {
			return nil, fmt.Errorf("%w: write wal: %v", domain.ErrStoreUnavailable, err)
		}
	}
	l.txs[stored.ID] = stored
	l.byOwner[stored.AccountID] = append(l.byOwner[stored.AccountID], stored.ID)
	return stored.Clone(), nil
}

// Get 依 ID 取得交易 (不受可見延遲影響)
func (l *TransactionLog) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

// ListByAccount 依 refs 順序回傳可見的交易
func (l *TransactionLog) ListByAccount(ctx context.Context, refs []uuid.UUID) ([]*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	visibleBefore := l.now().Add(-l.visibilityDelay)
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Transaction, 0, len(refs))
	for _, id := range refs {
		tx, ok := l.txs[id]
		if !ok {
			l.logger.Warn("account references a transaction missing from the log", "transaction_id", id)
			continue
		}
		if l.visibilityDelay > 0 && tx.Timestamp.After(visibleBefore) {
			continue
		}
		out = append(out, tx.Clone())
	}
	return out, nil
}

// ListByOwner 回傳帳戶擁有的所有交易 (依寫入順序)
func (l *TransactionLog) ListByOwner(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.byOwner[accountID]
	out := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.txs[id].Clone())
	}
	return out, nil
}

var _ usecase.TransactionLog = (*TransactionLog)(nil)
