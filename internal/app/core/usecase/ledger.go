package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

const (
	// DefaultMaxAttempts compare-and-update 預設最多嘗試次數
	DefaultMaxAttempts = 3
	// DefaultStoreTimeout 單次儲存層呼叫的預設逾時
	DefaultStoreTimeout = 2 * time.Second
)

// Result Apply 的結果
//
// Transaction 為呼叫端帳戶上的交易 (轉帳時為 TransferOut)
// Account 為套用後的帳戶狀態
type Result struct {
	Transaction *domain.Transaction
	Account     *domain.Account
}

// LedgerService 帳務核心：驗證並套用存款、提款、轉帳
//
// 是 AccountStore 與 TransactionLog 唯一的寫入者
// 不持有任何跨儲存層呼叫的鎖，併發安全由 CompareAndUpdate 保證
type LedgerService struct {
	accounts AccountStore
	txlog    TransactionLog
	intents  IntentStore
	pending  *PendingCache
	logger   *slog.Logger

	maxAttempts  int
	storeTimeout time.Duration
	now          func() time.Time
}

// LedgerOption 設定 LedgerService 的選項函數
type LedgerOption func(*LedgerService)

// WithMaxAttempts 設定版本衝突時的最多嘗試次數 (含第一次)
func WithMaxAttempts(n int) LedgerOption {
	return func(s *LedgerService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithStoreTimeout 設定單次儲存層呼叫逾時，0 代表不另設逾時
func WithStoreTimeout(d time.Duration) LedgerOption {
	return func(s *LedgerService) { s.storeTimeout = d }
}

// WithPendingCache 套用成功後把交易記到 read-your-writes 快取
func WithPendingCache(c *PendingCache) LedgerOption {
	return func(s *LedgerService) { s.pending = c }
}

// WithLogger 指定 logger
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(s *LedgerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow 指定意圖時間戳使用的時間來源 (測試用)
func WithNow(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

// NewLedgerService 建立帳務核心
//
// 參數:
//
//	accounts: 帳戶儲存
//	txlog: 交易紀錄
//	intents: 轉帳意圖儲存
//	opts: 其他選項
//
// 回傳:
//
//	*LedgerService: 帳務核心實例
func NewLedgerService(accounts AccountStore, txlog TransactionLog, intents IntentStore, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		accounts:     accounts,
		txlog:        txlog,
		intents:      intents,
		logger:       slog.Default(),
		maxAttempts:  DefaultMaxAttempts,
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply 對 accountID 套用一個操作
//
// 驗證順序: 金額 -> 餘額 -> 收款人；任何持久化寫入之前驗證全部完成
//
// 回傳:
//
//	*Result: 呼叫端帳戶上的交易與更新後的帳戶
//	error: 驗證錯誤 (domain.IsRejection) 或系統錯誤
func (s *LedgerService) Apply(ctx context.Context, accountID string, op domain.Operation) (*Result, error) {
	amount, err := domain.ParseAmount(op.Amount)
	if err != nil {
		return nil, err
	}

	var result *Result
	switch op.Kind {
	case domain.OperationDeposit:
		result, err = s.applySingle(ctx, accountID, domain.TransactionTypeDeposit, amount, op)
	case domain.OperationWithdrawal:
		result, err = s.applySingle(ctx, accountID, domain.TransactionTypeWithdrawal, amount, op)
	case domain.OperationTransfer:
		result, err = s.transfer(ctx, accountID, amount, op)
	default:
		return nil, fmt.Errorf("unknown operation kind %d", op.Kind)
	}
	if err != nil {
		if domain.IsRejection(err) {
			s.logger.Debug("operation rejected", "account_id", accountID, "kind", op.Kind.String(), "reason", err.Error())
		}
		return nil, err
	}

	if s.pending != nil {
		s.pending.Record(accountID, result.Transaction)
	}
	s.logger.Info("operation applied",
		"account_id", accountID,
		"kind", op.Kind.String(),
		"transaction_id", result.Transaction.ID,
		"amount", amount.String(),
	)
	return result, nil
}

// applySingle 存款/提款: 先寫交易，再更新帳戶
func (s *LedgerService) applySingle(ctx context.Context, accountID string, txType domain.TransactionType, amount decimal.Decimal, op domain.Operation) (*Result, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	txID := op.TransactionID(accountID)
	if account.References(txID) {
		// 同一個 request 重送，回傳原本的結果
		tx, err := s.getTransaction(ctx, txID)
		if err != nil {
			return nil, err
		}
		return &Result{Transaction: tx, Account: account}, nil
	}

	if txType.Debit() && amount.GreaterThan(account.Balance) {
		return nil, domain.ErrInsufficientFunds
	}
	if !txType.Debit() {
		if err := domain.CheckBalance(account.Balance.Add(amount)); err != nil {
			return nil, err
		}
	}

	tx, err := s.appendOrLoad(ctx, &domain.Transaction{
		ID:        txID,
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.applyTransaction(ctx, account, tx)
	if err != nil {
		return nil, err
	}
	return &Result{Transaction: tx, Account: updated}, nil
}

// transfer 轉帳
//
// 流程:
//  1. 寫入 TransferIntent (Started)
//  2. 寫入 TransferOut，扣付款方 (SenderApplied)
//  3. 寫入 TransferIn，入帳收款方 (Completed)
//
// 步驟 3 失敗時意圖停在 SenderApplied，由 Recoverer 補完
func (s *LedgerService) transfer(ctx context.Context, senderID string, amount decimal.Decimal, op domain.Operation) (*Result, error) {
	sender, err := s.getAccount(ctx, senderID)
	if err != nil {
		return nil, err
	}

	intentID := op.IntentID(senderID)
	if op.RequestID != uuid.Nil {
		existing, err := s.getIntent(ctx, intentID)
		switch {
		case err == nil:
			return s.replayTransfer(ctx, existing)
		case !errors.Is(err, domain.ErrIntentNotFound):
			return nil, err
		}
	}

	if amount.GreaterThan(sender.Balance) {
		return nil, domain.ErrInsufficientFunds
	}

	recipient, err := s.findRecipient(ctx, op.RecipientEmail)
	if err != nil {
		return nil, err
	}
	if recipient.ID == sender.ID {
		return nil, domain.ErrSameAccount
	}
	if err := domain.CheckBalance(recipient.Balance.Add(amount)); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	intent := &domain.TransferIntent{
		ID:            intentID,
		SenderID:      sender.ID,
		RecipientID:   recipient.ID,
		SenderName:    sender.DisplayName(),
		RecipientName: recipient.DisplayName(),
		Amount:        amount,
		State:         domain.IntentStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.createIntent(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrIntentExists) {
			existing, getErr := s.getIntent(ctx, intentID)
			if getErr != nil {
				return nil, getErr
			}
			return s.replayTransfer(ctx, existing)
		}
		return nil, err
	}

	// 付款方
	outTx, err := s.appendOrLoad(ctx, intent.OutTransaction())
	if err != nil {
		s.recordAttempt(ctx, intent, err)
		return nil, err
	}
	senderAfter, err := s.applyTransaction(ctx, sender, outTx)
	if err != nil {
		if domain.IsRejection(err) {
			s.setIntentState(ctx, intent, domain.IntentFailed, err)
		} else {
			// 扣款結果未知，留在 Started 交給 Recoverer 判斷
			s.recordAttempt(ctx, intent, err)
		}
		return nil, err
	}
	s.setIntentState(ctx, intent, domain.IntentSenderApplied, nil)

	// 收款方
	if err := s.creditRecipient(ctx, intent); err != nil {
		s.recordAttempt(ctx, intent, err)
		s.logger.Error("transfer left incomplete, waiting for recovery",
			"intent_id", intent.ID,
			"sender_id", intent.SenderID,
			"recipient_id", intent.RecipientID,
			"amount", intent.Amount.String(),
			"error", err,
		)
		if s.pending != nil {
			s.pending.Record(senderID, outTx)
		}
		return nil, fmt.Errorf("%w: intent %s: %v", domain.ErrTransferIncomplete, intent.ID, err)
	}
	return &Result{Transaction: outTx, Account: senderAfter}, nil
}

// replayTransfer 相同 request 的轉帳意圖已存在
func (s *LedgerService) replayTransfer(ctx context.Context, intent *domain.TransferIntent) (*Result, error) {
	switch intent.State {
	case domain.IntentCompleted:
		tx, err := s.getTransaction(ctx, intent.OutTransactionID())
		if err != nil {
			return nil, err
		}
		sender, err := s.getAccount(ctx, intent.SenderID)
		if err != nil {
			return nil, err
		}
		return &Result{Transaction: tx, Account: sender}, nil
	case domain.IntentFailed:
		return nil, fmt.Errorf("%w: transfer %s failed: %s", domain.ErrDuplicateRequest, intent.ID, intent.LastError)
	default:
		return nil, fmt.Errorf("%w: intent %s is %s", domain.ErrTransferIncomplete, intent.ID, intent.State)
	}
}

// creditRecipient 寫入 TransferIn 並入帳收款方，成功後意圖標記 Completed
// 全部步驟皆可重複執行 (交易 ID 由意圖推導，Apply 依引用去重)
func (s *LedgerService) creditRecipient(ctx context.Context, intent *domain.TransferIntent) error {
	inTx, err := s.appendOrLoad(ctx, intent.InTransaction())
	if err != nil {
		return err
	}
	recipient, err := s.getAccount(ctx, intent.RecipientID)
	if err != nil {
		return err
	}
	if _, err := s.applyTransaction(ctx, recipient, inTx); err != nil {
		return err
	}
	s.setIntentState(ctx, intent, domain.IntentCompleted, nil)
	return nil
}

// applyTransaction 以 compare-and-update 把交易套用到帳戶
//
// 版本衝突時重新讀取帳戶並重新驗證，最多 maxAttempts 次
func (s *LedgerService) applyTransaction(ctx context.Context, account *domain.Account, tx *domain.Transaction) (*domain.Account, error) {
	for attempt := 1; ; attempt++ {
		if account.References(tx.ID) {
			return account, nil
		}
		updated, err := s.compareAndUpdate(ctx, account.ID, account.Version, func(a *domain.Account) error {
			if a.References(tx.ID) {
				return nil
			}
			if tx.Type.Debit() && tx.Amount.GreaterThan(a.Balance) {
				return domain.ErrInsufficientFunds
			}
			return a.Apply(tx)
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		if attempt >= s.maxAttempts {
			return nil, fmt.Errorf("%w: account %s after %d attempts", domain.ErrTransientConflict, account.ID, attempt)
		}
		s.logger.Debug("account version conflict, retrying", "account_id", account.ID, "attempt", attempt)
		if account, err = s.getAccount(ctx, account.ID); err != nil {
			return nil, err
		}
	}
}

// appendOrLoad 寫入交易；ID 已存在時讀回既有紀錄 (重試路徑)
func (s *LedgerService) appendOrLoad(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	cctx, cancel := s.storeCtx(ctx)
	stored, err := s.txlog.Append(cctx, tx)
	cancel()
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, domain.ErrTransactionExists) {
		return nil, err
	}
	existing, err := s.getTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if existing.AccountID != tx.AccountID || existing.Type != tx.Type || !existing.Amount.Equal(tx.Amount) {
		return nil, fmt.Errorf("%w: transaction %s already recorded with different content", domain.ErrDuplicateRequest, tx.ID)
	}
	return existing, nil
}

func (s *LedgerService) findRecipient(ctx context.Context, email string) (*domain.Account, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	recipient, err := s.accounts.FindByEmail(cctx, email)
	switch {
	case err == nil:
		return recipient, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil, domain.ErrRecipientNotFound
	case errors.Is(err, domain.ErrAmbiguousEmail):
		s.logger.Error("email resolves to more than one account", "email", domain.NormalizeEmail(email))
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreCorruption, err)
	default:
		return nil, err
	}
}

// setIntentState 更新意圖狀態；寫入失敗只記錄 log，Recoverer 會依帳戶引用重新推導
func (s *LedgerService) setIntentState(ctx context.Context, intent *domain.TransferIntent, state domain.IntentState, cause error) {
	intent.State = state
	if cause != nil {
		intent.LastError = cause.Error()
	}
	intent.UpdatedAt = s.now().UTC()
	if err := s.updateIntent(ctx, intent); err != nil {
		s.logger.Warn("failed to update transfer intent", "intent_id", intent.ID, "state", state.String(), "error", err)
	}
}

// recordAttempt 記錄失敗的嘗試，狀態不變
func (s *LedgerService) recordAttempt(ctx context.Context, intent *domain.TransferIntent, cause error) {
	intent.Attempts++
	intent.LastError = cause.Error()
	intent.UpdatedAt = s.now().UTC()
	if err := s.updateIntent(ctx, intent); err != nil {
		s.logger.Warn("failed to record transfer attempt", "intent_id", intent.ID, "error", err)
	}
}

// storeCtx 每次儲存層呼叫各自的逾時
func (s *LedgerService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *LedgerService) getAccount(ctx context.Context, id string) (*domain.Account, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.accounts.Get(cctx, id)
}

func (s *LedgerService) compareAndUpdate(ctx context.Context, id string, version int64, mutate func(*domain.Account) error) (*domain.Account, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.accounts.CompareAndUpdate(cctx, id, version, mutate)
}

func (s *LedgerService) getTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.txlog.Get(cctx, id)
}

func (s *LedgerService) createIntent(ctx context.Context, intent *domain.TransferIntent) error {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.intents.Create(cctx, intent)
}

func (s *LedgerService) getIntent(ctx context.Context, id uuid.UUID) (*domain.TransferIntent, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.intents.Get(cctx, id)
}

func (s *LedgerService) updateIntent(ctx context.Context, intent *domain.TransferIntent) error {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.intents.Update(cctx, intent)
}
