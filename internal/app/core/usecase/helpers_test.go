package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock 測試用可控時間
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// faultyAccounts 可以針對特定帳戶注入 CompareAndUpdate 錯誤
type faultyAccounts struct {
	usecase.AccountStore
	mu     sync.Mutex
	casErr map[string]error
}

func (f *faultyAccounts) failCAS(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casErr == nil {
		f.casErr = make(map[string]error)
	}
	if err == nil {
		delete(f.casErr, id)
		return
	}
	f.casErr[id] = err
}

func (f *faultyAccounts) CompareAndUpdate(ctx context.Context, id string, version int64, mutate func(*domain.Account) error) (*domain.Account, error) {
	f.mu.Lock()
	err := f.casErr[id]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.AccountStore.CompareAndUpdate(ctx, id, version, mutate)
}

type staticIdentity struct {
	id usecase.Identity
	ok bool
}

func (s staticIdentity) CurrentIdentity(context.Context) (usecase.Identity, bool) {
	return s.id, s.ok
}

type fixture struct {
	accounts *faultyAccounts
	txlog    *memory.TransactionLog
	intents  *memory.IntentStore
	pending  *usecase.PendingCache
	clock    *fakeClock
	ledger   *usecase.LedgerService
}

func newFixture(t *testing.T, opts ...usecase.LedgerOption) *fixture {
	t.Helper()
	store, err := memory.NewAccountStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	txlog, err := memory.NewTransactionLog(memory.WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}
	intents, err := memory.NewIntentStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		accounts: &faultyAccounts{AccountStore: store},
		txlog:    txlog,
		intents:  intents,
		pending:  usecase.NewPendingCache(time.Minute),
		clock:    newFakeClock(),
	}
	base := []usecase.LedgerOption{
		usecase.WithLogger(discardLogger()),
		usecase.WithPendingCache(f.pending),
		usecase.WithNow(f.clock.Now),
	}
	f.ledger = usecase.NewLedgerService(f.accounts, f.txlog, f.intents, append(base, opts...)...)
	return f
}

func (f *fixture) register(t *testing.T, id, email, firstName string) *domain.Account {
	t.Helper()
	account := domain.NewAccount(id, email, firstName, "")
	if err := f.accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	return account
}

func (f *fixture) apply(t *testing.T, id string, op domain.Operation) *usecase.Result {
	t.Helper()
	res, err := f.ledger.Apply(context.Background(), id, op)
	if err != nil {
		t.Fatalf("apply %s %s: %v", op.Kind, op.Amount, err)
	}
	return res
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return account.Balance
}

func (f *fixture) reconciler() *usecase.Reconciler {
	return usecase.NewReconciler(f.accounts, f.txlog, 0, discardLogger())
}

// assertReconciles balance == Σ 引用交易的帶號金額
func (f *fixture) assertReconciles(t *testing.T, id string) *usecase.Report {
	t.Helper()
	report, err := f.reconciler().Reconcile(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Consistent() {
		t.Fatalf("account %s does not reconcile: %+v", id, report)
	}
	return report
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalance(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("balance=%s want %s", got, want)
	}
}
