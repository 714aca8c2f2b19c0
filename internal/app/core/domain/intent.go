package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentState 轉帳意圖狀態
type IntentState uint8

const (
	// IntentStarted 已寫入意圖，雙方都還沒套用
	IntentStarted IntentState = 1
	// IntentSenderApplied 付款方已扣款，收款方還沒入帳
	IntentSenderApplied IntentState = 2
	// IntentCompleted 雙方都完成
	IntentCompleted IntentState = 3
	// IntentFailed 付款方扣款沒有成功，整筆轉帳作廢
	IntentFailed IntentState = 4
)

func (s IntentState) String() string {
	switch s {
	case IntentStarted:
		return "started"
	case IntentSenderApplied:
		return "sender_applied"
	case IntentCompleted:
		return "completed"
	case IntentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 是否已經是最終狀態
func (s IntentState) Terminal() bool {
	return s == IntentCompleted || s == IntentFailed
}

// TransferIntent 轉帳意圖，在任何一邊寫入之前先持久化
// recovery sweep 依此把未完成的轉帳補完
type TransferIntent struct {
	ID            uuid.UUID       `json:"id"`
	SenderID      string          `json:"sender_id"`
	RecipientID   string          `json:"recipient_id"`
	SenderName    string          `json:"sender_name"`
	RecipientName string          `json:"recipient_name"`
	Amount        decimal.Decimal `json:"amount"`
	State         IntentState     `json:"state"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// 轉帳兩邊交易 ID 的命名空間
var (
	transferOutNamespace = uuid.MustParse("8f1c7a52-3b0e-4c7e-9a55-2f0d6c1e4b01")
	transferInNamespace  = uuid.MustParse("d2a4e6b8-5c3f-4e1a-8b7d-9c0e1f2a3b02")
)

// OutTransactionID 付款方 TransferOut 的交易 ID (由 intent ID 推導，重試時不變)
func (i *TransferIntent) OutTransactionID() uuid.UUID {
	return uuid.NewSHA1(transferOutNamespace, i.ID[:])
}

// InTransactionID 收款方 TransferIn 的交易 ID
func (i *TransferIntent) InTransactionID() uuid.UUID {
	return uuid.NewSHA1(transferInNamespace, i.ID[:])
}

// OutTransaction 組裝付款方的 TransferOut 交易 (Timestamp 由儲存層分配)
func (i *TransferIntent) OutTransaction() *Transaction {
	return &Transaction{
		ID:               i.OutTransactionID(),
		AccountID:        i.SenderID,
		Type:             TransactionTypeTransferOut,
		Amount:           i.Amount,
		CounterpartyName: i.RecipientName,
		OperationID:      i.ID,
	}
}

// InTransaction 組裝收款方的 TransferIn 交易
func (i *TransferIntent) InTransaction() *Transaction {
	return &Transaction{
		ID:               i.InTransactionID(),
		AccountID:        i.RecipientID,
		Type:             TransactionTypeTransferIn,
		Amount:           i.Amount,
		CounterpartyName: i.SenderName,
		OperationID:      i.ID,
	}
}

// Clone 回傳值拷貝
func (i *TransferIntent) Clone() *TransferIntent {
	cp := *i
	return &cp
}
