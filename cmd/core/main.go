package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/in/grpc"
	memory_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/postgres"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/internal/config"
	"github.com/JoeShih716/go-account-ledger/pkg/mysql"
	"github.com/JoeShih716/go-account-ledger/pkg/postgres"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

// stores 三個 output port 與對應的關閉函式
type stores struct {
	accounts usecase.AccountStore
	txlog    usecase.TransactionLog
	intents  usecase.IntentStore
	closers  []func() error
}

func (s *stores) Close(logger *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Error("close store", "error", err)
		}
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger, err := cfg.NewLogger(os.Stdout)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化儲存層
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer st.Close(logger)
	logger.Info("stores ready", "backend", cfg.Store.Backend)

	// 3. 初始化 UseCase
	identity := grpc_adapter.MetadataIdentity{}
	pending := usecase.NewPendingCache(cfg.History.PendingTTL)
	ledger := usecase.NewLedgerService(st.accounts, st.txlog, st.intents,
		usecase.WithMaxAttempts(cfg.Ledger.MaxAttempts),
		usecase.WithStoreTimeout(cfg.Ledger.StoreTimeout),
		usecase.WithPendingCache(pending),
		usecase.WithLogger(logger),
	)
	coreUseCase := usecase.NewCoreUseCase(
		identity,
		usecase.NewAccountService(st.accounts, identity, cfg.Ledger.StoreTimeout, logger),
		ledger,
		usecase.NewHistoryReader(st.accounts, st.txlog, pending, cfg.Ledger.StoreTimeout, logger),
		usecase.NewReconciler(st.accounts, st.txlog, cfg.Ledger.StoreTimeout, logger),
	)

	// 4. 背景補完未完成的轉帳
	recoverer := usecase.NewRecoverer(ledger, usecase.RecoveryConfig{
		Interval:    cfg.Recovery.Interval,
		GracePeriod: cfg.Recovery.GracePeriod,
		BatchSize:   cfg.Recovery.BatchSize,
	}, logger)
	recoveryDone := make(chan struct{})
	go func() {
		defer close(recoveryDone)
		recoverer.Start(ctx)
	}()

	// 5. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Server.Listen, "error", err)
		os.Exit(1)
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc_adapter.UnaryLoggingInterceptor(logger)))
	grpc_adapter.RegisterLedgerServer(s, grpc_adapter.NewGrpcServer(coreUseCase, logger))
	reflection.Register(s) // ledger.v1 descriptor 已註冊，grpcurl 可直接查服務

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting gRPC server", "addr", cfg.Server.Listen)
		serveErr <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serveErr:
		logger.Error("gRPC server stopped", "error", err)
	}
	stop()

	// GracefulStop 等進行中的請求做完，超時就強制關閉
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		s.Stop()
	}
	<-recoveryDone
	logger.Info("server exited")
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	clock := domain.NewMonotonicClock(time.Now)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return openMemory(cfg, clock, logger)
	case config.BackendMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, logger)
		if err != nil {
			return nil, err
		}
		if err := mysql_adapter.AutoMigrate(ctx, client.DB()); err != nil {
			_ = client.Close()
			return nil, err
		}
		return &stores{
			accounts: mysql_adapter.NewAccountStore(client),
			txlog:    mysql_adapter.NewTransactionLog(client, clock, logger),
			intents:  mysql_adapter.NewIntentStore(client),
			closers:  []func() error{client.Close},
		}, nil
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres_adapter.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &stores{
			accounts: postgres_adapter.NewAccountStore(pool),
			txlog:    postgres_adapter.NewTransactionLog(pool, clock, logger),
			intents:  postgres_adapter.NewIntentStore(pool),
			closers:  []func() error{func() error { pool.Close(); return nil }},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openMemory DataDir 有設定時每個 store 各自一個 WAL 檔，啟動時重播
func openMemory(cfg *config.Config, clock *domain.MonotonicClock, logger *slog.Logger) (_ *stores, err error) {
	st := &stores{}
	defer func() {
		if err != nil {
			st.Close(logger)
		}
	}()

	openWAL := func(name string) (*wal.WAL, error) {
		if cfg.Store.DataDir == "" {
			return nil, nil
		}
		w, err := wal.NewWAL(filepath.Join(cfg.Store.DataDir, name))
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, w.Close)
		return w, nil
	}
	if cfg.Store.DataDir != "" {
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	} else {
		logger.Warn("memory backend without data_dir, balances are lost on restart")
	}

	accountsWAL, err := openWAL("accounts.wal")
	if err != nil {
		return nil, err
	}
	if st.accounts, err = memory_adapter.NewAccountStore(accountsWAL); err != nil {
		return nil, err
	}

	txWAL, err := openWAL("transactions.wal")
	if err != nil {
		return nil, err
	}
	if st.txlog, err = memory_adapter.NewTransactionLog(
		memory_adapter.WithWAL(txWAL),
		memory_adapter.WithClock(clock),
		memory_adapter.WithLogger(logger),
		memory_adapter.WithVisibilityDelay(cfg.Store.VisibilityDelay),
	); err != nil {
		return nil, err
	}

	intentsWAL, err := openWAL("intents.wal")
	if err != nil {
		return nil, err
	}
	if st.intents, err = memory_adapter.NewIntentStore(intentsWAL); err != nil {
		return nil, fmt.Errorf("open intent store: %w", err)
	}
	return st, nil
}
