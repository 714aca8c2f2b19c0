package domain

import "github.com/google/uuid"

// OperationKind 使用者操作類型
type OperationKind uint8

const (
	OperationDeposit OperationKind = iota + 1
	OperationWithdrawal
	OperationTransfer
)

func (k OperationKind) String() string {
	switch k {
	case OperationDeposit:
		return "deposit"
	case OperationWithdrawal:
		return "withdrawal"
	case OperationTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Operation 對帳戶的一個操作請求
//
// Amount 保留使用者輸入的字串，由 LedgerService 驗證
// RequestID 可選；相同 RequestID 重送不會重複套用
type Operation struct {
	Kind           OperationKind
	Amount         string
	RecipientEmail string
	RequestID      uuid.UUID
}

// Deposit 存款
func Deposit(amount string) Operation {
	return Operation{Kind: OperationDeposit, Amount: amount}
}

// Withdrawal 提款
func Withdrawal(amount string) Operation {
	return Operation{Kind: OperationWithdrawal, Amount: amount}
}

// Transfer 轉帳給 recipientEmail 對應的帳戶
func Transfer(amount, recipientEmail string) Operation {
	return Operation{Kind: OperationTransfer, Amount: amount, RecipientEmail: recipientEmail}
}

// WithRequestID 設定冪等用的 request id
func (o Operation) WithRequestID(id uuid.UUID) Operation {
	o.RequestID = id
	return o
}

var (
	requestNamespace = uuid.MustParse("3e9b1f04-7d2a-4c68-b5e1-0a9f8c7d6e03")
	intentNamespace  = uuid.MustParse("6a7c2e19-0f4b-4d83-a1c6-5b8e9d0f1a04")
)

// TransactionID 存款/提款的交易 ID：有 RequestID 時由它推導，否則隨機產生
func (o Operation) TransactionID(accountID string) uuid.UUID {
	if o.RequestID == uuid.Nil {
		return uuid.New()
	}
	return uuid.NewSHA1(requestNamespace, append([]byte(accountID+"/"), o.RequestID[:]...))
}

// IntentID 轉帳意圖 ID，推導方式同 TransactionID
func (o Operation) IntentID(senderID string) uuid.UUID {
	if o.RequestID == uuid.Nil {
		return uuid.New()
	}
	return uuid.NewSHA1(intentNamespace, append([]byte(senderID+"/"), o.RequestID[:]...))
}
