package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// DefaultPendingTTL read-your-writes 快取的預設保存時間
const DefaultPendingTTL = 30 * time.Second

type pendingEntry struct {
	tx         *domain.Transaction
	recordedAt time.Time
}

// PendingCache read-your-writes 快取
//
// 每個帳戶只保留最近一筆由自己套用的交易，直到 TTL 過期
// TTL 應大於交易紀錄查詢路徑的傳播延遲
type PendingCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pendingEntry
}

// NewPendingCache ttl <= 0 時使用 DefaultPendingTTL
func NewPendingCache(ttl time.Duration) *PendingCache {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &PendingCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]pendingEntry),
	}
}

// Record 記錄帳戶最新套用的交易
func (c *PendingCache) Record(accountID string, tx *domain.Transaction) {
	if tx == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[accountID] = pendingEntry{tx: tx.Clone(), recordedAt: c.now()}
}

// Peek 取得帳戶尚未過期的 pending 交易
func (c *PendingCache) Peek(accountID string) (*domain.Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[accountID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.recordedAt) > c.ttl {
		delete(c.entries, accountID)
		return nil, false
	}
	return entry.tx.Clone(), true
}

// History 帳戶與其交易歷史 (新到舊)
type History struct {
	Account      *domain.Account
	Transactions []*domain.Transaction
}

// HistoryReader 組出帳戶的交易歷史，唯讀
type HistoryReader struct {
	accounts     AccountStore
	txlog        TransactionLog
	pending      *PendingCache
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewHistoryReader pending 可為 nil (不合併 pending 交易)
func NewHistoryReader(accounts AccountStore, txlog TransactionLog, pending *PendingCache, storeTimeout time.Duration, logger *slog.Logger) *HistoryReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryReader{
		accounts:     accounts,
		txlog:        txlog,
		pending:      pending,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// View 讀取帳戶與交易歷史，合併呼叫端剛套用、可能還查不到的交易
func (h *HistoryReader) View(ctx context.Context, accountID string) (*History, error) {
	cctx, cancel := h.storeCtx(ctx)
	account, err := h.accounts.Get(cctx, accountID)
	cancel()
	if err != nil {
		return nil, err
	}

	cctx, cancel = h.storeCtx(ctx)
	durable, err := h.txlog.ListByAccount(cctx, account.TransactionRefs)
	cancel()
	if err != nil {
		return nil, err
	}
	if len(durable) < len(account.TransactionRefs) {
		h.logger.Debug("history shorter than account references",
			"account_id", accountID,
			"refs", len(account.TransactionRefs),
			"visible", len(durable),
		)
	}

	var pending *domain.Transaction
	if h.pending != nil {
		pending, _ = h.pending.Peek(accountID)
	}
	return &History{Account: account, Transactions: MergeHistory(durable, pending)}, nil
}

func (h *HistoryReader) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.storeTimeout)
}

// MergeHistory 合併交易歷史，依 Timestamp 新到舊
//
// pending 已出現在 durable 中時不重複：以 ID 比對，pending 沒有 ID 時才以 Timestamp 相同判定
// 同一 Timestamp 維持插入順序，pending 排在最前
func MergeHistory(durable []*domain.Transaction, pending *domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(durable)+1)
	if pending != nil {
		out = append(out, pending)
	}
	for _, tx := range durable {
		if pending != nil && samePending(tx, pending) {
			continue
		}
		out = append(out, tx)
	}
	slices.SortStableFunc(out, func(a, b *domain.Transaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

func samePending(tx, pending *domain.Transaction) bool {
	if pending.ID != uuid.Nil {
		return tx.ID == pending.ID
	}
	return tx.Timestamp.Equal(pending.Timestamp)
}
