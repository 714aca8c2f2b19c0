package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

func TestAccountServiceRegister(t *testing.T) {
	store, _ := memory.NewAccountStore(nil)
	id := usecase.Identity{AccountID: "u-1", Email: "  Alice@Example.COM "}
	svc := usecase.NewAccountService(store, staticIdentity{id: id, ok: true}, 0, discardLogger())
	ctx := context.Background()

	account, err := svc.Register(ctx, id, "Alice", "Liu")
	if err != nil {
		t.Fatal(err)
	}
	if account.Email != "alice@example.com" {
		t.Fatalf("email=%q", account.Email)
	}
	if !account.Balance.IsZero() || len(account.TransactionRefs) != 0 {
		t.Fatalf("new account must be empty: %+v", account)
	}

	// 第二次登入回傳既有帳戶，不覆寫名稱
	again, err := svc.Register(ctx, id, "Someone", "Else")
	if err != nil {
		t.Fatal(err)
	}
	if again.FirstName != "Alice" {
		t.Fatalf("first name=%q", again.FirstName)
	}

	current, err := svc.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != "u-1" {
		t.Fatalf("current=%s", current.ID)
	}
}

func TestAccountServiceUnauthenticated(t *testing.T) {
	store, _ := memory.NewAccountStore(nil)
	svc := usecase.NewAccountService(store, staticIdentity{}, 0, discardLogger())

	if _, err := svc.Current(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.Register(context.Background(), usecase.Identity{}, "A", "B"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("err=%v", err)
	}
}

func TestCoreUseCaseSummary(t *testing.T) {
	f := newFixture(t)
	id := usecase.Identity{AccountID: "alice", Email: "alice@example.com"}
	identity := staticIdentity{id: id, ok: true}
	accounts := usecase.NewAccountService(f.accounts, identity, 0, discardLogger())
	history := usecase.NewHistoryReader(f.accounts, f.txlog, f.pending, 0, discardLogger())
	core := usecase.NewCoreUseCase(identity, accounts, f.ledger, history, f.reconciler())
	ctx := context.Background()

	if _, err := core.Register(ctx, "Alice", "Liu"); err != nil {
		t.Fatal(err)
	}
	if _, err := core.Apply(ctx, domain.Deposit("1234.5")); err != nil {
		t.Fatal(err)
	}
	if _, err := core.Apply(ctx, domain.Withdrawal("12.5")); err != nil {
		t.Fatal(err)
	}

	summary, err := core.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.BalanceFormatted != "$1,222.00" {
		t.Fatalf("balance=%q", summary.BalanceFormatted)
	}
	if len(summary.Entries) != 2 || summary.Entries[0].Amount != "-$12.50" || summary.Entries[1].Amount != "$1,234.50" {
		t.Fatalf("entries=%+v", summary.Entries)
	}

	report, err := core.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Consistent() {
		t.Fatalf("report=%+v", report)
	}
}
