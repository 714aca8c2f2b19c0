package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-account-ledger/pkg/grpc"
)

// 對伺服器做併發轉帳壓測：所有帳戶互相轉帳，結束後檢查總額不變且每個帳戶對帳一致
func main() {
	addr := flag.String("addr", "localhost:50051", "ledger server address")
	users := flag.Int("users", 10, "number of accounts")
	total := flag.Int("count", 10000, "number of transfers")
	concurrency := flag.Int("concurrency", 100, "concurrent requests")
	seed := flag.String("seed", "1000", "initial deposit per account")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	pool := grpcpool.NewPool(grpcpool.WithInterceptor(retryAborted(3)))
	defer pool.Close()

	conn, err := pool.GetConnection(*addr)
	if err != nil {
		logger.Error("did not connect", "error", err)
		os.Exit(1)
	}
	c := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	run := uuid.NewString()[:8]
	ids := make([]string, *users)
	for i := range ids {
		ids[i] = fmt.Sprintf("load-%s-%d", run, i)
		uctx := as(ctx, ids[i])
		if _, err := c.Register(uctx, &grpc_adapter.RegisterRequest{FirstName: fmt.Sprintf("User%d", i)}); err != nil {
			logger.Error("register failed", "account_id", ids[i], "error", err)
			os.Exit(1)
		}
		if _, err := c.Deposit(uctx, &grpc_adapter.AmountRequest{Amount: *seed, RequestID: uuid.NewString()}); err != nil {
			logger.Error("seed deposit failed", "account_id", ids[i], "error", err)
			os.Exit(1)
		}
	}

	var wg sync.WaitGroup
	var failed atomic.Int64
	sem := make(chan struct{}, *concurrency)
	start := time.Now()
	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			from := ids[idx%len(ids)]
			to := ids[(idx+1+idx/len(ids))%len(ids)]
			if from == to {
				to = ids[(idx+1)%len(ids)]
			}
			_, err := c.Transfer(as(ctx, from), &grpc_adapter.TransferRequest{
				Amount:         "1.25",
				RecipientEmail: to + "@load.test",
				RequestID:      uuid.NewString(),
			})
			if err != nil {
				failed.Add(1)
				if idx%1000 == 0 {
					logger.Warn("transfer failed", "idx", idx, "error", err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	sum := decimal.Zero
	inconsistent := 0
	for _, id := range ids {
		report, err := c.Reconcile(as(ctx, id), &grpc_adapter.ReconcileRequest{})
		if err != nil {
			logger.Error("reconcile failed", "account_id", id, "error", err)
			os.Exit(1)
		}
		if !report.Consistent {
			inconsistent++
			logger.Warn("account not consistent", "account_id", id, "missing", report.Missing, "orphans", report.Orphans)
		}
		sum = sum.Add(decimal.RequireFromString(report.Balance))
	}

	want := decimal.RequireFromString(*seed).Mul(decimal.NewFromInt(int64(len(ids))))
	fmt.Printf("Completed %d transfers in %v (%d failed)\n", *total, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
	fmt.Printf("Total balance: %s (want %s), inconsistent accounts: %d\n", sum, want, inconsistent)
	if !sum.Equal(want) || inconsistent > 0 {
		os.Exit(2)
	}
}

func as(ctx context.Context, id string) context.Context {
	return grpc_adapter.WithIdentity(ctx, id, id+"@load.test")
}

// retryAborted 伺服器回 Aborted (版本衝突重試用完) 時重送，RequestID 不變所以不會重複入帳
func retryAborted(attempts int) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var err error
		for i := 0; i < attempts; i++ {
			if err = invoker(ctx, method, req, reply, cc, opts...); status.Code(err) != codes.Aborted {
				return err
			}
			time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
		}
		return err
	}
}
