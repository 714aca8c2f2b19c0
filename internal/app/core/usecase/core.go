package usecase

import (
	"context"
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/presenter"
)

// CoreUseCase 是核心業務邏輯層，對外 (gRPC) 的唯一入口
//
// 呼叫端身分一律由 IdentityProvider 從 ctx 取得
type CoreUseCase struct {
	identity   IdentityProvider
	accounts   *AccountService
	ledger     *LedgerService
	history    *HistoryReader
	reconciler *Reconciler
	now        func() time.Time
}

func NewCoreUseCase(identity IdentityProvider, accounts *AccountService, ledger *LedgerService, history *HistoryReader, reconciler *Reconciler) *CoreUseCase {
	return &CoreUseCase{
		identity:   identity,
		accounts:   accounts,
		ledger:     ledger,
		history:    history,
		reconciler: reconciler,
		now:        time.Now,
	}
}

// Register 為目前呼叫端建立帳戶 (已存在則回傳既有帳戶)
func (c *CoreUseCase) Register(ctx context.Context, firstName, lastName string) (*domain.Account, error) {
	id, ok := c.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return c.accounts.Register(ctx, id, firstName, lastName)
}

// Apply 對目前呼叫端的帳戶套用操作
func (c *CoreUseCase) Apply(ctx context.Context, op domain.Operation) (*Result, error) {
	id, ok := c.identity.CurrentIdentity(ctx)
	if !ok || id.AccountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return c.ledger.Apply(ctx, id.AccountID, op)
}

// Summary 取得目前呼叫端帳戶的顯示摘要
func (c *CoreUseCase) Summary(ctx context.Context) (*presenter.Summary, error) {
	account, err := c.accounts.Current(ctx)
	if err != nil {
		return nil, err
	}
	view, err := c.history.View(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	s := presenter.Summarize(view.Account, view.Transactions, c.now())
	return &s, nil
}

// Reconcile 對目前呼叫端帳戶對帳
func (c *CoreUseCase) Reconcile(ctx context.Context) (*Report, error) {
	id, ok := c.identity.CurrentIdentity(ctx)
	if !ok || id.AccountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return c.reconciler.Reconcile(ctx, id.AccountID)
}
