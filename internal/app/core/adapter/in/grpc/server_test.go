package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts, err := memory.NewAccountStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	txlog, err := memory.NewTransactionLog(memory.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	intents, err := memory.NewIntentStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	pending := usecase.NewPendingCache(usecase.DefaultPendingTTL)
	identity := MetadataIdentity{}
	ledger := usecase.NewLedgerService(accounts, txlog, intents, usecase.WithPendingCache(pending), usecase.WithLogger(logger))
	core := usecase.NewCoreUseCase(
		identity,
		usecase.NewAccountService(accounts, identity, 0, logger),
		ledger,
		usecase.NewHistoryReader(accounts, txlog, pending, 0, logger),
		usecase.NewReconciler(accounts, txlog, 0, logger),
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLoggingInterceptor(logger)))
	RegisterLedgerServer(srv, NewGrpcServer(core, logger))
	reflection.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func as(id string) context.Context {
	return WithIdentity(context.Background(), id, id+"@example.com")
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("code=%s want %s (err=%v)", got, code, err)
	}
}

func TestLedgerOverGRPC(t *testing.T) {
	c := newTestClient(t)
	alice, bob := as("alice"), as("bob")

	acc, err := c.Register(alice, &RegisterRequest{FirstName: "Alice", LastName: "Liddell"})
	if err != nil {
		t.Fatal(err)
	}
	if acc.AccountID != "alice" || acc.Balance != "0.00" {
		t.Fatalf("account=%+v", acc)
	}
	if _, err := c.Register(bob, &RegisterRequest{FirstName: "Bob"}); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Deposit(alice, &AmountRequest{Amount: "100"}); err != nil {
		t.Fatal(err)
	}
	r, err := c.Withdraw(alice, &AmountRequest{Amount: "30.5"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Balance != "69.50" || r.Type != "withdrawal" {
		t.Fatalf("reply=%+v", r)
	}

	reqID := uuid.NewString()
	for i := 0; i < 2; i++ {
		r, err = c.Transfer(alice, &TransferRequest{Amount: "50", RecipientEmail: "BOB@example.com", RequestID: reqID})
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if r.Balance != "19.50" || r.Counterparty != "Bob" {
			t.Fatalf("attempt %d reply=%+v", i, r)
		}
	}

	summary, err := c.Summary(alice, &SummaryRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Balance != "$19.50" || len(summary.Entries) != 3 {
		t.Fatalf("summary=%+v", summary)
	}
	if summary.Entries[0].Amount != "-$50.00" || summary.Entries[0].Type != "transfer_out" {
		t.Fatalf("newest entry=%+v", summary.Entries[0])
	}

	bobSummary, err := c.Summary(bob, &SummaryRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if bobSummary.Balance != "$50.00" {
		t.Fatalf("bob=%+v", bobSummary)
	}

	report, err := c.Reconcile(alice, &ReconcileRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Consistent || report.Balance != "19.5" {
		t.Fatalf("report=%+v", report)
	}
}

func TestStatusCodes(t *testing.T) {
	c := newTestClient(t)
	alice := as("alice")
	if _, err := c.Register(alice, &RegisterRequest{FirstName: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Deposit(alice, &AmountRequest{Amount: "10"}); err != nil {
		t.Fatal(err)
	}

	_, err := c.Deposit(context.Background(), &AmountRequest{Amount: "10"})
	wantCode(t, err, codes.Unauthenticated)

	_, err = c.Deposit(alice, &AmountRequest{Amount: "abc"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Deposit(alice, &AmountRequest{Amount: "1", RequestID: "nope"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Withdraw(alice, &AmountRequest{Amount: "10.01"})
	wantCode(t, err, codes.FailedPrecondition)
	if status.Convert(err).Message() != domain.ErrInsufficientFunds.Error() {
		t.Fatalf("message=%q", status.Convert(err).Message())
	}

	_, err = c.Transfer(alice, &TransferRequest{Amount: "1", RecipientEmail: "nobody@example.com"})
	wantCode(t, err, codes.NotFound)

	_, err = c.Transfer(alice, &TransferRequest{Amount: "1", RecipientEmail: "alice@example.com"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Summary(as("ghost"), &SummaryRequest{})
	wantCode(t, err, codes.NotFound)

	md := metadata.Pairs(MetadataAccountID, "alice")
	_, err = c.Summary(metadata.NewOutgoingContext(context.Background(), md), &SummaryRequest{})
	wantCode(t, err, codes.Unauthenticated)
}

func TestStatusCodeMapping(t *testing.T) {
	s := NewGrpcServer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	cases := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{fmt.Errorf("apply: %w", domain.ErrTransientConflict), codes.Aborted, domain.ErrTransientConflict.Error()},
		{fmt.Errorf("get: %w: dial tcp: refused", domain.ErrStoreUnavailable), codes.Unavailable, domain.ErrStoreUnavailable.Error()},
		{domain.ErrDuplicateRequest, codes.AlreadyExists, domain.ErrDuplicateRequest.Error()},
		{fmt.Errorf("intent 42: %w", domain.ErrTransferIncomplete), codes.Internal, "internal error"},
		{fmt.Errorf("%w: two accounts", domain.ErrStoreCorruption), codes.Internal, "internal error"},
		{errors.New("boom"), codes.Internal, "internal error"},
	}
	for _, tc := range cases {
		st := status.Convert(s.toStatus(context.Background(), "Test", tc.err))
		if st.Code() != tc.code || st.Message() != tc.msg {
			t.Errorf("%v: got %s %q want %s %q", tc.err, st.Code(), st.Message(), tc.code, tc.msg)
		}
	}
}

func TestMetadataIdentity(t *testing.T) {
	var p MetadataIdentity
	if _, ok := p.CurrentIdentity(context.Background()); ok {
		t.Fatal("no metadata should not authenticate")
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataAccountEmail, " carol@example.com "))
	id, ok := p.CurrentIdentity(ctx)
	if !ok || id.AccountID != "carol@example.com" || id.Email != "carol@example.com" {
		t.Fatalf("id=%+v ok=%v", id, ok)
	}
}
