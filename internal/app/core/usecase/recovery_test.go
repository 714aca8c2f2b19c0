package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

func startedIntent(f *fixture, amount string) *domain.TransferIntent {
	now := f.clock.Now()
	return &domain.TransferIntent{
		ID:            uuid.New(),
		SenderID:      "alice",
		RecipientID:   "bob",
		SenderName:    "Alice",
		RecipientName: "Bob",
		Amount:        dec(amount),
		State:         domain.IntentStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRecovererFailsStartedIntentWithoutDebit(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "Alice")
	f.register(t, "bob", "bob@example.com", "Bob")
	f.apply(t, "alice", domain.Deposit("50"))
	ctx := context.Background()

	intent := startedIntent(f, "20")
	if err := f.intents.Create(ctx, intent); err != nil {
		t.Fatal(err)
	}

	recoverer := usecase.NewRecoverer(f.ledger, usecase.RecoveryConfig{GracePeriod: 10 * time.Second}, discardLogger())

	// grace period 內不處理
	stats, err := recoverer.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Scanned != 0 {
		t.Fatalf("stats=%+v, intent is still within grace period", stats)
	}

	f.clock.Advance(time.Minute)
	stats, err = recoverer.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats=%+v", stats)
	}
	got, _ := f.intents.Get(ctx, intent.ID)
	if got.State != domain.IntentFailed {
		t.Fatalf("state=%s", got.State)
	}
	assertBalance(t, f.balance(t, "alice"), "50")
	assertBalance(t, f.balance(t, "bob"), "0")
}

func TestRecovererCompletesStartedIntentWithDebit(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "Alice")
	f.register(t, "bob", "bob@example.com", "Bob")
	f.apply(t, "alice", domain.Deposit("50"))
	ctx := context.Background()

	// 扣款完成後行程中斷，意圖還停在 Started
	intent := startedIntent(f, "20")
	if err := f.intents.Create(ctx, intent); err != nil {
		t.Fatal(err)
	}
	out, err := f.txlog.Append(ctx, intent.OutTransaction())
	if err != nil {
		t.Fatal(err)
	}
	alice, _ := f.accounts.Get(ctx, "alice")
	if _, err := f.accounts.CompareAndUpdate(ctx, "alice", alice.Version, func(a *domain.Account) error { return a.Apply(out) }); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Minute)
	recoverer := usecase.NewRecoverer(f.ledger, usecase.RecoveryConfig{}, discardLogger())
	stats, err := recoverer.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 {
		t.Fatalf("stats=%+v", stats)
	}
	assertBalance(t, f.balance(t, "alice"), "30")
	assertBalance(t, f.balance(t, "bob"), "20")

	// 再跑一次不會重複入帳
	f.clock.Advance(time.Minute)
	if _, err := recoverer.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	assertBalance(t, f.balance(t, "bob"), "20")
	f.assertReconciles(t, "alice")
	f.assertReconciles(t, "bob")
}

func TestRecovererRecordsFailedAttempts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "Alice")
	f.register(t, "bob", "bob@example.com", "Bob")
	f.apply(t, "alice", domain.Deposit("50"))
	ctx := context.Background()

	f.accounts.failCAS("bob", domain.ErrStoreUnavailable)
	if _, err := f.ledger.Apply(ctx, "alice", domain.Transfer("10", "bob@example.com")); err == nil {
		t.Fatal("expected incomplete transfer")
	}

	f.clock.Advance(time.Minute)
	recoverer := usecase.NewRecoverer(f.ledger, usecase.RecoveryConfig{}, discardLogger())
	stats, err := recoverer.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Errors != 1 || stats.Completed != 0 {
		t.Fatalf("stats=%+v", stats)
	}
	pending, _ := f.intents.ListIncomplete(ctx, f.clock.Now().Add(time.Second), 10)
	if len(pending) != 1 || pending[0].Attempts != 2 || pending[0].State != domain.IntentSenderApplied {
		t.Fatalf("intents=%+v", pending)
	}
}

func TestRecovererStartStopsWithContext(t *testing.T) {
	f := newFixture(t)
	recoverer := usecase.NewRecoverer(f.ledger, usecase.RecoveryConfig{Interval: time.Millisecond}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		recoverer.Start(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
