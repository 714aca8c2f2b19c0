package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

var errSenderNotDebited = errors.New("sender debit never applied")

// RecoveryConfig Recoverer 設定
type RecoveryConfig struct {
	// Interval 掃描間隔
	Interval time.Duration
	// GracePeriod 意圖閒置超過這段時間才處理，避免和進行中的請求搶做
	GracePeriod time.Duration
	// BatchSize 每次掃描最多處理幾筆
	BatchSize int
}

// RecoveryStats 一次掃描的結果
type RecoveryStats struct {
	Scanned   int
	Completed int
	Failed    int
	Errors    int
}

// Recoverer 背景掃描未完成的轉帳意圖並補完
//
// 只往前推進，不做沖正：
//
//	Started:       付款方已引用 TransferOut -> SenderApplied；否則 -> Failed
//	SenderApplied: 寫入 TransferIn、入帳收款方 -> Completed
type Recoverer struct {
	ledger  *LedgerService
	intents IntentStore
	cfg     RecoveryConfig
	logger  *slog.Logger
}

// NewRecoverer 建立 Recoverer，與 LedgerService 共用儲存層與重試設定
func NewRecoverer(ledger *LedgerService, cfg RecoveryConfig, logger *slog.Logger) *Recoverer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recoverer{
		ledger:  ledger,
		intents: ledger.intents,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start 依 Interval 持續掃描，直到 ctx 結束
func (r *Recoverer) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("recovery sweep failed", "error", err)
			}
		}
	}
}

// RunOnce 執行一次掃描
func (r *Recoverer) RunOnce(ctx context.Context) (RecoveryStats, error) {
	var stats RecoveryStats
	before := r.ledger.now().UTC().Add(-r.cfg.GracePeriod)

	cctx, cancel := r.ledger.storeCtx(ctx)
	pending, err := r.intents.ListIncomplete(cctx, before, r.cfg.BatchSize)
	cancel()
	if err != nil {
		return stats, fmt.Errorf("list incomplete intents: %w", err)
	}

	for _, intent := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Scanned++
		state, err := r.recover(ctx, intent)
		if err != nil {
			stats.Errors++
			r.ledger.recordAttempt(ctx, intent, err)
			r.logger.Error("transfer recovery attempt failed",
				"intent_id", intent.ID,
				"state", intent.State.String(),
				"attempts", intent.Attempts,
				"error", err,
			)
			continue
		}
		switch state {
		case domain.IntentCompleted:
			stats.Completed++
		case domain.IntentFailed:
			stats.Failed++
		}
	}
	if stats.Scanned > 0 {
		r.logger.Info("recovery sweep finished",
			"scanned", stats.Scanned,
			"completed", stats.Completed,
			"failed", stats.Failed,
			"errors", stats.Errors,
		)
	}
	return stats, nil
}

func (r *Recoverer) recover(ctx context.Context, intent *domain.TransferIntent) (domain.IntentState, error) {
	if intent.State == domain.IntentStarted {
		sender, err := r.ledger.getAccount(ctx, intent.SenderID)
		if err != nil {
			return intent.State, err
		}
		if !sender.References(intent.OutTransactionID()) {
			r.ledger.setIntentState(ctx, intent, domain.IntentFailed, errSenderNotDebited)
			r.logger.Warn("transfer intent abandoned before sender debit", "intent_id", intent.ID)
			return domain.IntentFailed, nil
		}
		r.ledger.setIntentState(ctx, intent, domain.IntentSenderApplied, nil)
	}

	if intent.State != domain.IntentSenderApplied {
		return intent.State, nil
	}
	if err := r.ledger.creditRecipient(ctx, intent); err != nil {
		return intent.State, err
	}
	r.logger.Info("transfer completed by recovery", "intent_id", intent.ID, "recipient_id", intent.RecipientID)
	return domain.IntentCompleted, nil
}
