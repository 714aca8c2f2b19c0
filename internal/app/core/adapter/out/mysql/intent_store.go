package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/mysql"
)

// IntentStore MySQL 轉帳意圖儲存
type IntentStore struct {
	client *mysql.Client
}

func NewIntentStore(client *mysql.Client) *IntentStore {
	return &IntentStore{client: client}
}

func (s *IntentStore) Create(ctx context.Context, intent *domain.TransferIntent) error {
	err := s.client.DB().WithContext(ctx).Create(intentFromDomain(intent)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrIntentExists
	}
	if err != nil {
		return storeErr("create intent", err)
	}
	return nil
}

func (s *IntentStore) Get(ctx context.Context, id uuid.UUID) (*domain.TransferIntent, error) {
	var row sqlIntent
	err := s.client.DB().WithContext(ctx).Where("id = ?", id[:]).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrIntentNotFound
	}
	if err != nil {
		return nil, storeErr("get intent", err)
	}
	return row.toDomain()
}

func (s *IntentStore) Update(ctx context.Context, intent *domain.TransferIntent) error {
	res := s.client.DB().WithContext(ctx).
		Model(&sqlIntent{}).
		Where("id = ?", intent.ID[:]).
		Select("State", "Attempts", "LastError", "UpdatedAt").
		Updates(intentFromDomain(intent))
	if res.Error != nil {
		return storeErr("update intent", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL 值沒變時 RowsAffected 也是 0，再確認一次是否存在
		if _, err := s.Get(ctx, intent.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *IntentStore) ListIncomplete(ctx context.Context, before time.Time, limit int) ([]*domain.TransferIntent, error) {
	q := s.client.DB().WithContext(ctx).
		Where("state IN ?", []uint8{uint8(domain.IntentStarted), uint8(domain.IntentSenderApplied)}).
		Where("updated_at < ?", before.UTC()).
		Order("updated_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []sqlIntent
	if err := q.Find(&rows).Error; err != nil {
		return nil, storeErr("list incomplete intents", err)
	}
	out := make([]*domain.TransferIntent, 0, len(rows))
	for i := range rows {
		intent, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, nil
}

var _ usecase.IntentStore = (*IntentStore)(nil)
