package usecase

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

func TestPendingCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewPendingCache(10 * time.Second)
	c.now = func() time.Time { return now }

	tx := &domain.Transaction{ID: uuid.New(), AccountID: "alice", Type: domain.TransactionTypeDeposit, Amount: decimal.NewFromInt(1)}
	c.Record("alice", tx)

	got, ok := c.Peek("alice")
	if !ok || got.ID != tx.ID {
		t.Fatalf("peek=%v ok=%v", got, ok)
	}
	if _, ok := c.Peek("bob"); ok {
		t.Fatal("bob has nothing pending")
	}

	now = now.Add(11 * time.Second)
	if _, ok := c.Peek("alice"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestPendingCacheKeepsLatest(t *testing.T) {
	c := NewPendingCache(0)
	first := &domain.Transaction{ID: uuid.New(), AccountID: "alice"}
	second := &domain.Transaction{ID: uuid.New(), AccountID: "alice"}
	c.Record("alice", first)
	c.Record("alice", second)
	c.Record("alice", nil)

	got, ok := c.Peek("alice")
	if !ok || got.ID != second.ID {
		t.Fatalf("peek=%v want latest", got)
	}
}
