package mysql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/mysql"
)

// 需要真實 MySQL，例如
// LEDGER_TEST_MYSQL_DSN="root:root@tcp(127.0.0.1:3306)/ledger_test?charset=utf8mb4&parseTime=True&loc=UTC"
func newTestClient(t *testing.T) *mysql.Client {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_MYSQL_DSN not set")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := mysql.NewClient(context.Background(), mysql.Config{RawDSN: dsn, ConnectRetries: 1, LogLevel: "silent"}, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := AutoMigrate(context.Background(), client.DB()); err != nil {
		t.Fatal(err)
	}
	return client
}

func TestMySQLAccountStore(t *testing.T) {
	client := newTestClient(t)
	store := NewAccountStore(client)
	txlog := NewTransactionLog(client, nil, nil)
	ctx := context.Background()

	id := "it-" + uuid.NewString()
	email := id + "@example.com"
	if err := store.Create(ctx, domain.NewAccount(id, email, "Alice", "")); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, domain.NewAccount(id, email, "Alice", "")); !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("err=%v want ErrAccountExists", err)
	}

	tx, err := txlog.Append(ctx, &domain.Transaction{ID: uuid.New(), AccountID: id, Type: domain.TransactionTypeDeposit, Amount: decimal.RequireFromString("12.34")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := txlog.Append(ctx, tx); !errors.Is(err, domain.ErrTransactionExists) {
		t.Fatalf("err=%v want ErrTransactionExists", err)
	}

	updated, err := store.CompareAndUpdate(ctx, id, 0, func(a *domain.Account) error { return a.Apply(tx) })
	if err != nil {
		t.Fatal(err)
	}
	if updated.Version != 1 {
		t.Fatalf("version=%d", updated.Version)
	}
	if _, err := store.CompareAndUpdate(ctx, id, 0, func(*domain.Account) error { return nil }); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err=%v want ErrVersionConflict", err)
	}

	got, err := store.FindByEmail(ctx, email)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("12.34")) || len(got.TransactionRefs) != 1 || got.TransactionRefs[0] != tx.ID {
		t.Fatalf("got=%+v", got)
	}

	listed, err := txlog.ListByAccount(ctx, append(got.TransactionRefs, uuid.New()))
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || !listed[0].Timestamp.Equal(tx.Timestamp) {
		t.Fatalf("listed=%+v", listed)
	}
}

func TestMySQLLedgerScenario(t *testing.T) {
	client := newTestClient(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := NewAccountStore(client)
	txlog := NewTransactionLog(client, nil, logger)
	intents := NewIntentStore(client)
	ledger := usecase.NewLedgerService(accounts, txlog, intents, usecase.WithLogger(logger))
	ctx := context.Background()

	alice, bob := "it-"+uuid.NewString(), "it-"+uuid.NewString()
	_ = accounts.Create(ctx, domain.NewAccount(alice, alice+"@example.com", "Alice", ""))
	_ = accounts.Create(ctx, domain.NewAccount(bob, bob+"@example.com", "Bob", ""))

	for _, op := range []domain.Operation{
		domain.Deposit("100"),
		domain.Withdrawal("30"),
		domain.Transfer("50", bob+"@example.com"),
	} {
		if _, err := ledger.Apply(ctx, alice, op); err != nil {
			t.Fatalf("%s: %v", op.Kind, err)
		}
	}
	if _, err := ledger.Apply(ctx, alice, domain.Withdrawal("25")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err=%v", err)
	}

	reconciler := usecase.NewReconciler(accounts, txlog, 0, logger)
	for id, want := range map[string]string{alice: "20", bob: "50"} {
		report, err := reconciler.Reconcile(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if !report.Consistent() || !report.Balance.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("%s report=%+v", id, report)
		}
	}

	pending, err := intents.ListIncomplete(ctx, time.Now().Add(time.Hour), 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range pending {
		if i.SenderID == alice {
			t.Fatalf("transfer left incomplete: %+v", i)
		}
	}
}
