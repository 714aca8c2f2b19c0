package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// Report 單一帳戶的對帳結果
type Report struct {
	AccountID string
	// Balance 帳戶上記錄的餘額
	Balance decimal.Decimal
	// Computed 依引用交易重新計算的餘額
	Computed decimal.Decimal
	// Missing 帳戶引用但交易紀錄找不到的 ID
	Missing []uuid.UUID
	// Orphans 屬於此帳戶但沒有被引用的交易，不會被套用
	Orphans []uuid.UUID
}

// Consistent 餘額與引用交易相符，且沒有遺失的交易
func (r *Report) Consistent() bool {
	return r.Balance.Equal(r.Computed) && len(r.Missing) == 0
}

// Reconciler 檢查 balance == Σ 引用交易的帶號金額，唯讀
type Reconciler struct {
	accounts     AccountStore
	txlog        TransactionLog
	storeTimeout time.Duration
	logger       *slog.Logger
}

func NewReconciler(accounts AccountStore, txlog TransactionLog, storeTimeout time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{accounts: accounts, txlog: txlog, storeTimeout: storeTimeout, logger: logger}
}

// Reconcile 對一個帳戶對帳
func (r *Reconciler) Reconcile(ctx context.Context, accountID string) (*Report, error) {
	cctx, cancel := r.storeCtx(ctx)
	account, err := r.accounts.Get(cctx, accountID)
	cancel()
	if err != nil {
		return nil, err
	}

	cctx, cancel = r.storeCtx(ctx)
	owned, err := r.txlog.ListByOwner(cctx, accountID)
	cancel()
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.Transaction, len(owned))
	for _, tx := range owned {
		byID[tx.ID] = tx
	}

	report := &Report{AccountID: accountID, Balance: account.Balance, Computed: decimal.Zero}
	for _, id := range account.TransactionRefs {
		tx, ok := byID[id]
		if !ok {
			report.Missing = append(report.Missing, id)
			continue
		}
		report.Computed = report.Computed.Add(tx.SignedAmount())
	}
	for _, tx := range owned {
		if !account.References(tx.ID) {
			report.Orphans = append(report.Orphans, tx.ID)
		}
	}

	if !report.Consistent() {
		r.logger.Error("account does not reconcile",
			"account_id", accountID,
			"balance", report.Balance.String(),
			"computed", report.Computed.String(),
			"missing", len(report.Missing),
		)
	} else if len(report.Orphans) > 0 {
		r.logger.Warn("account has unreferenced transactions", "account_id", accountID, "orphans", len(report.Orphans))
	}
	return report, nil
}

func (r *Reconciler) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.storeTimeout)
}
