package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

const accountColumns = `id, email, first_name, last_name, balance::text, transaction_refs, version`

// AccountStore PostgreSQL 帳戶儲存
type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func scanAccount(row scanner) (*domain.Account, error) {
	var (
		a       domain.Account
		balance string
		refs    []string
	)
	if err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &balance, &refs, &a.Version); err != nil {
		return nil, err
	}
	var err error
	if a.Balance, err = parseNumeric(balance); err != nil {
		return nil, err
	}
	if a.TransactionRefs, err = refsFromText(refs); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, first_name, last_name, balance, transaction_refs, version)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)`,
		account.ID, account.Email, account.FirstName, account.LastName,
		account.Balance.String(), refsToText(account.TransactionRefs), account.Version,
	)
	if isUniqueViolation(err) {
		return domain.ErrAccountExists
	}
	if err != nil {
		return storeErr("create account", err)
	}
	return nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		if errors.Is(err, domain.ErrStoreCorruption) {
			return nil, err
		}
		return nil, storeErr("get account", err)
	}
	return account, nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1 LIMIT 2`, domain.NormalizeEmail(email))
	if err != nil {
		return nil, storeErr("find account by email", err)
	}
	defer rows.Close()

	var found []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, account)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find account by email", err)
	}
	switch len(found) {
	case 0:
		return nil, domain.ErrAccountNotFound
	case 1:
		return found[0], nil
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

	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET balance = $1::text::numeric, transaction_refs = $2, version = $3, updated_at = now()
		WHERE id = $4 AND version = $5`,
		current.Balance.String(), refsToText(current.TransactionRefs), current.Version, id, expectedVersion,
	)
	if err != nil {
		return nil, storeErr("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrVersionConflict
	}
	return current, nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
