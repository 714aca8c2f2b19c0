package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdrawal TransactionType = 2
	// 轉入
	TransactionTypeTransferIn TransactionType = 3
	// 轉出
	TransactionTypeTransferOut TransactionType = 4
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdrawal:
		return "withdrawal"
	case TransactionTypeTransferIn:
		return "transfer_in"
	case TransactionTypeTransferOut:
		return "transfer_out"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid 是否為已知的交易類型
func (t TransactionType) Valid() bool {
	return t >= TransactionTypeDeposit && t <= TransactionTypeTransferOut
}

// Debit 是否為扣款 (提款、轉出)
func (t TransactionType) Debit() bool {
	return t == TransactionTypeWithdrawal || t == TransactionTypeTransferOut
}

// IsTransfer 是否為轉帳的一邊
func (t TransactionType) IsTransfer() bool {
	return t == TransactionTypeTransferIn || t == TransactionTypeTransferOut
}

// Transaction 交易紀錄，寫入後不可變
//
// Amount 永遠是正數，正負號由 Type 決定
type Transaction struct {
	// ID: 由 LedgerService 在寫入前分配
	ID uuid.UUID `json:"id"`
	// AccountID: 這筆交易所屬的帳戶
	AccountID string          `json:"account_id"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	// Timestamp: 寫入時由儲存層分配，同一個 store 內單調遞增
	Timestamp time.Time `json:"timestamp"`
	// CounterpartyName: 轉帳當下對方的顯示名稱 (只有轉帳有)
	CounterpartyName string `json:"counterparty_name,omitempty"`
	// OperationID: 轉帳的兩筆交易共用同一個 intent ID
	OperationID uuid.UUID `json:"operation_id"`
}

// SignedAmount 依交易類型回傳帶正負號的金額
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type.Debit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Clone 回傳值拷貝
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}
