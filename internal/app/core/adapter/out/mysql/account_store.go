package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/mysql"
)

// AccountStore MySQL 帳戶儲存
//
// compare-and-update 以 UPDATE ... WHERE version = ? 實作，不使用 SELECT ... FOR UPDATE
type AccountStore struct {
	client *mysql.Client
}

func NewAccountStore(client *mysql.Client) *AccountStore {
	return &AccountStore{client: client}
}

func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	err := s.client.DB().WithContext(ctx).Create(accountFromDomain(account)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAccountExists
	}
	if err != nil {
		return storeErr("create account", err)
	}
	return nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, storeErr("get account", err)
	}
	return row.toDomain(), nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var rows []sqlAccount
	err := s.client.DB().WithContext(ctx).
		Where("email = ?", domain.NormalizeEmail(email)).
		Limit(2).
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("find account by email", err)
	}
	switch len(rows) {
	case 0:
		return nil, domain.ErrAccountNotFound
	case 1:
		return rows[0].toDomain(), nil
	default:
		return nil, domain.ErrAmbiguousEmail
	}
}

func (s *AccountStore) CompareAndUpdate(ctx context.Context, id string, expectedVersion int64, mutate func(*domain.Account) error) (*domain.Account, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if err := mutate(current); err != nil {
		return nil, err
	}
	current.ID = id
	current.Version = expectedVersion + 1

	next := accountFromDomain(current)
	res := s.client.DB().WithContext(ctx).
		Model(&sqlAccount{ID: id}).
		Where("version = ?", expectedVersion).
		Select("Balance", "TransactionRefs", "Version", "UpdatedAt").
		Updates(next)
	if res.Error != nil {
		return nil, storeErr("update account", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrVersionConflict
	}
	return current, nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
