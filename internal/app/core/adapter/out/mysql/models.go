package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        string          `gorm:"primaryKey;type:varchar(128)"`
	Email     string          `gorm:"type:varchar(320);index"`
	FirstName string          `gorm:"type:varchar(128)"`
	LastName  string          `gorm:"type:varchar(128)"`
	Balance   decimal.Decimal `gorm:"type:decimal(38,8);not null"`
	// TransactionRefs 依套用順序存成 JSON 陣列
	TransactionRefs []uuid.UUID `gorm:"serializer:json;type:json"`
	Version         int64       `gorm:"not null;default:0"`
	UpdatedAt       time.Time   `gorm:"type:datetime(6)"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func accountFromDomain(a *domain.Account) *sqlAccount {
	refs := a.TransactionRefs
	if refs == nil {
		refs = []uuid.UUID{}
	}
	return &sqlAccount{
		ID:              a.ID,
		Email:           a.Email,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Balance:         a.Balance,
		TransactionRefs: refs,
		Version:         a.Version,
	}
}

func (s *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:              s.ID,
		Email:           s.Email,
		FirstName:       s.FirstName,
		LastName:        s.LastName,
		Balance:         s.Balance,
		TransactionRefs: s.TransactionRefs,
		Version:         s.Version,
	}
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	RefID            []byte          `gorm:"column:ref_id;type:binary(16);uniqueIndex"` // 對應 domain.Transaction.ID
	AccountID        string          `gorm:"type:varchar(128);index"`
	Type             uint8           `gorm:"not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(38,8);not null"`
	CounterpartyName string          `gorm:"type:varchar(128)"`
	OperationID      []byte          `gorm:"type:binary(16)"`
	CreatedAt        time.Time       `gorm:"type:datetime(6);not null"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func transactionFromDomain(tx *domain.Transaction) *sqlTransaction {
	return &sqlTransaction{
		RefID:            tx.ID[:],
		AccountID:        tx.AccountID,
		Type:             uint8(tx.Type),
		Amount:           tx.Amount,
		CounterpartyName: tx.CounterpartyName,
		OperationID:      tx.OperationID[:],
		CreatedAt:        tx.Timestamp,
	}
}

func (s *sqlTransaction) toDomain() (*domain.Transaction, error) {
	id, err := uuid.FromBytes(s.RefID)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction ref_id: %v", domain.ErrStoreCorruption, err)
	}
	opID, err := uuid.FromBytes(s.OperationID)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction operation_id: %v", domain.ErrStoreCorruption, err)
	}
	return &domain.Transaction{
		ID:               id,
		AccountID:        s.AccountID,
		Type:             domain.TransactionType(s.Type),
		Amount:           s.Amount,
		Timestamp:        s.CreatedAt.UTC(),
		CounterpartyName: s.CounterpartyName,
		OperationID:      opID,
	}, nil
}

// sqlIntent 對應資料庫的 transfer_intents 表
type sqlIntent struct {
	ID            []byte          `gorm:"primaryKey;type:binary(16)"`
	SenderID      string          `gorm:"type:varchar(128);not null"`
	RecipientID   string          `gorm:"type:varchar(128);not null"`
	SenderName    string          `gorm:"type:varchar(128)"`
	RecipientName string          `gorm:"type:varchar(128)"`
	Amount        decimal.Decimal `gorm:"type:decimal(38,8);not null"`
	State         uint8           `gorm:"not null;index:idx_intent_state_updated,priority:1"`
	Attempts      int             `gorm:"not null;default:0"`
	LastError     string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"type:datetime(6);not null"`
	UpdatedAt     time.Time       `gorm:"type:datetime(6);not null;index:idx_intent_state_updated,priority:2;autoUpdateTime:false"`
}

func (*sqlIntent) TableName() string {
	return "transfer_intents"
}

func intentFromDomain(i *domain.TransferIntent) *sqlIntent {
	return &sqlIntent{
		ID:            i.ID[:],
		SenderID:      i.SenderID,
		RecipientID:   i.RecipientID,
		SenderName:    i.SenderName,
		RecipientName: i.RecipientName,
		Amount:        i.Amount,
		State:         uint8(i.State),
		Attempts:      i.Attempts,
		LastError:     i.LastError,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func (s *sqlIntent) toDomain() (*domain.TransferIntent, error) {
	id, err := uuid.FromBytes(s.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: intent id: %v", domain.ErrStoreCorruption, err)
	}
	return &domain.TransferIntent{
		ID:            id,
		SenderID:      s.SenderID,
		RecipientID:   s.RecipientID,
		SenderName:    s.SenderName,
		RecipientName: s.RecipientName,
		Amount:        s.Amount,
		State:         domain.IntentState(s.State),
		Attempts:      s.Attempts,
		LastError:     s.LastError,
		CreatedAt:     s.CreatedAt.UTC(),
		UpdatedAt:     s.UpdatedAt.UTC(),
	}, nil
}

// AutoMigrate 建立或更新三張表
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{}, &sqlIntent{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// storeErr 把 driver 錯誤包成 ErrStoreUnavailable
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: mysql %s: %v", domain.ErrStoreUnavailable, op, err)
}
