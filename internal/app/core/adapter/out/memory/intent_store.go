package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

// IntentStore 記憶體轉帳意圖儲存
type IntentStore struct {
	mu      sync.RWMutex
	intents map[uuid.UUID]*domain.TransferIntent
	wal     *wal.WAL
}

// NewIntentStore 建立意圖儲存，w 可為 nil
func NewIntentStore(w *wal.WAL) (*IntentStore, error) {
	s := &IntentStore{
		intents: make(map[uuid.UUID]*domain.TransferIntent),
		wal:     w,
	}
	if w != nil {
		err := w.ReadAll(func(jsonRaw []byte) error {
			var intent domain.TransferIntent
			if err := json.Unmarshal(jsonRaw, &intent); err != nil {
				return fmt.Errorf("replay intent: %w", err)
			}
			s.intents[intent.ID] = &intent
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *IntentStore) Create(ctx context.Context, intent *domain.TransferIntent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[intent.ID]; ok {
		return domain.ErrIntentExists
	}
	return s.put(intent.Clone())
}

func (s *IntentStore) Get(ctx context.Context, id uuid.UUID) (*domain.TransferIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	return intent.Clone(), nil
}

func (s *IntentStore) Update(ctx context.Context, intent *domain.TransferIntent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[intent.ID]; !ok {
		return domain.ErrIntentNotFound
	}
	return s.put(intent.Clone())
}

// ListIncomplete 依 UpdatedAt 由舊到新
func (s *IntentStore) ListIncomplete(ctx context.Context, before time.Time, limit int) ([]*domain.TransferIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	var out []*domain.TransferIntent
	for _, intent := range s.intents {
		if intent.State.Terminal() || !intent.UpdatedAt.Before(before) {
			continue
		}
		out = append(out, intent.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *IntentStore) put(intent *domain.TransferIntent) error {
	if s.wal != nil {
		if err := s.wal.Write(intent); err != nil {
			return fmt.Errorf("%w: write wal: %v", domain.ErrStoreUnavailable, err)
		}
	}
	s.intents[intent.ID] = intent
	return nil
}

var _ usecase.IntentStore = (*IntentStore)(nil)
