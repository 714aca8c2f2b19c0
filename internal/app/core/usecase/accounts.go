package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// AccountService 帳戶註冊與查詢
type AccountService struct {
	accounts     AccountStore
	identity     IdentityProvider
	storeTimeout time.Duration
	logger       *slog.Logger
}

func NewAccountService(accounts AccountStore, identity IdentityProvider, storeTimeout time.Duration, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{accounts: accounts, identity: identity, storeTimeout: storeTimeout, logger: logger}
}

// Register 第一次登入時建立餘額為 0 的帳戶；已存在則原樣回傳
func (s *AccountService) Register(ctx context.Context, id Identity, firstName, lastName string) (*domain.Account, error) {
	if id.AccountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	existing, err := s.get(ctx, id.AccountID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	account := domain.NewAccount(id.AccountID, id.Email, firstName, lastName)
	cctx, cancel := s.storeCtx(ctx)
	err = s.accounts.Create(cctx, account)
	cancel()
	if errors.Is(err, domain.ErrAccountExists) {
		// 併發註冊，以先寫入的為準
		return s.get(ctx, id.AccountID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("account registered", "account_id", account.ID, "email", account.Email)
	return account, nil
}

// Current 取得目前呼叫端的帳戶
func (s *AccountService) Current(ctx context.Context) (*domain.Account, error) {
	id, ok := s.identity.CurrentIdentity(ctx)
	if !ok || id.AccountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.get(ctx, id.AccountID)
}

func (s *AccountService) get(ctx context.Context, id string) (*domain.Account, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.accounts.Get(cctx, id)
}

func (s *AccountService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}
