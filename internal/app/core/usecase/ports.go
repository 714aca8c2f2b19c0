package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// AccountStore 帳戶儲存
//
// 所有回傳的 *domain.Account 都是拷貝，呼叫端可以自由修改
type AccountStore interface {
	// Create 建立帳戶，已存在回傳 domain.ErrAccountExists
	Create(ctx context.Context, account *domain.Account) error
	// Get 依 ID 取得帳戶，不存在回傳 domain.ErrAccountNotFound
	Get(ctx context.Context, id string) (*domain.Account, error)
	// FindByEmail 依 email 取得帳戶，多筆符合回傳 domain.ErrAmbiguousEmail
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// CompareAndUpdate 只有在目前版本等於 expectedVersion 時才套用 mutate 並寫入
	// 版本不符回傳 domain.ErrVersionConflict；成功後版本 +1 並回傳新狀態
	CompareAndUpdate(ctx context.Context, id string, expectedVersion int64, mutate func(*domain.Account) error) (*domain.Account, error)
}

// TransactionLog 只能追加的交易紀錄
type TransactionLog interface {
	// Append 寫入交易並分配 Timestamp；ID 已存在回傳 domain.ErrTransactionExists，不會修改既有紀錄
	Append(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	// Get 依 ID 取得交易，不存在回傳 domain.ErrTransactionNotFound
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// ListByAccount 依帳戶的交易引用取得交易，順序同 refs
	// 找不到的 ID 會記錄 log 並略過，不會讓整個讀取失敗
	ListByAccount(ctx context.Context, refs []uuid.UUID) ([]*domain.Transaction, error)
	// ListByOwner 取得某帳戶擁有的所有交易 (對帳用)
	ListByOwner(ctx context.Context, accountID string) ([]*domain.Transaction, error)
}

// IntentStore 轉帳意圖儲存
type IntentStore interface {
	// Create 寫入新意圖，ID 已存在回傳 domain.ErrIntentExists
	Create(ctx context.Context, intent *domain.TransferIntent) error
	// Get 依 ID 取得意圖，不存在回傳 domain.ErrIntentNotFound
	Get(ctx context.Context, id uuid.UUID) (*domain.TransferIntent, error)
	// Update 覆寫意圖狀態 (State/Attempts/LastError/UpdatedAt)
	Update(ctx context.Context, intent *domain.TransferIntent) error
	// ListIncomplete 列出 UpdatedAt 早於 before 且尚未結束 (Started/SenderApplied) 的意圖
	ListIncomplete(ctx context.Context, before time.Time, limit int) ([]*domain.TransferIntent, error)
}

// Identity 已登入的呼叫端
type Identity struct {
	AccountID string
	Email     string
}

// IdentityProvider 由外部 (登入系統) 提供目前呼叫端的身分
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (Identity, bool)
}
