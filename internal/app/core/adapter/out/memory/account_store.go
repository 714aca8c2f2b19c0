package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

// AccountStore 記憶體帳戶儲存
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	mu: RWMutex 保護帳戶資料，compare-and-update 在鎖內完成
//	wal: 可選的 Write-Ahead Log，每次變更寫入帳戶完整狀態
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	wal      *wal.WAL
}

// NewAccountStore 建立記憶體帳戶儲存
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 代表純記憶體
//
// 回傳:
//
//	*AccountStore: 帳戶儲存實例
//	error: WAL 恢復失敗
func NewAccountStore(w *wal.WAL) (*AccountStore, error) {
	s := &AccountStore{
		accounts: make(map[string]*domain.Account),
		wal:      w,
	}
	if err := s.recoverFromWAL(); err != nil {
		return nil, err
	}
	return s, nil
}

// recoverFromWAL 重放 WAL，同一帳戶以最後一筆為準
// 只有建構時呼叫，無需 Lock
func (s *AccountStore) recoverFromWAL() error {
	if s.wal == nil {
		return nil
	}
	return s.wal.ReadAll(func(jsonRaw []byte) error {
		var account domain.Account
		if err := json.Unmarshal(jsonRaw, &account); err != nil {
			return fmt.Errorf("replay account: %w", err)
		}
		s.accounts[account.ID] = &account
		return nil
	})
}

// Create 建立帳戶
func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return domain.ErrAccountExists
	}
	stored := account.Clone()
	if err := s.persist(stored); err != nil {
		return err
	}
	s.accounts[stored.ID] = stored
	return nil
}

// Get 取得帳戶拷貝
func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// FindByEmail 依 email 找帳戶 (線性掃描)
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	email = domain.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Account
	for _, account := range s.accounts {
		if account.Email != email {
			continue
		}
		if found != nil {
			return nil, domain.ErrAmbiguousEmail
		}
		found = account
	}
	if found == nil {
		return nil, domain.ErrAccountNotFound
	}
	return found.Clone(), nil
}

// CompareAndUpdate 版本相同才套用 mutate
func (s *AccountStore) CompareAndUpdate(ctx context.Context, id string, expectedVersion int64, mutate func(*domain.Account) error) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	if err := s.persist(next); err != nil {
		return nil, err
	}
	s.accounts[id] = next
	return next.Clone(), nil
}

// persist 先寫 WAL 再更新記憶體
func (s *AccountStore) persist(account *domain.Account) error {
	if s.wal == nil {
		return nil
	}
	if err := s.wal.Write(account); err != nil {
		return fmt.Errorf("%w: write wal: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
