package domain

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account 帳戶
//
// 不變量: Balance == 所有 TransactionRefs 對應交易的 SignedAmount 總和
type Account struct {
	// ID 由 Identity Provider 分配，不可變
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Balance decimal.Decimal `json:"balance"`
	// TransactionRefs 依套用順序排列
	TransactionRefs []uuid.UUID `json:"transaction_refs"`

	// Version 樂觀鎖版本號，每次 compare-and-update 成功 +1
	Version int64 `json:"version"`
}

// NewAccount 建立一個餘額為 0 的新帳戶
func NewAccount(id, email, firstName, lastName string) *Account {
	return &Account{
		ID:        id,
		Email:     NormalizeEmail(email),
		FirstName: firstName,
		LastName:  lastName,
		Balance:   decimal.Zero,
	}
}

// NormalizeEmail email 一律去空白、轉小寫後才儲存與查詢
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayName 轉帳時記錄給對方看的名稱
func (a *Account) DisplayName() string {
	if a.FirstName != "" {
		return a.FirstName
	}
	return a.Email
}

// References 帳戶是否已引用該交易
func (a *Account) References(txID uuid.UUID) bool {
	return slices.Contains(a.TransactionRefs, txID)
}

// Apply 套用一筆交易：同時更新餘額與交易引用
// 已引用過的交易不會重複套用
func (a *Account) Apply(tx *Transaction) error {
	if tx.AccountID != a.ID {
		return ErrStoreCorruption
	}
	if a.References(tx.ID) {
		return nil
	}
	a.Balance = a.Balance.Add(tx.SignedAmount())
	a.TransactionRefs = append(a.TransactionRefs, tx.ID)
	return nil
}

// Clone 深拷貝 (TransactionRefs 另外複製)
func (a *Account) Clone() *Account {
	cp := *a
	cp.TransactionRefs = slices.Clone(a.TransactionRefs)
	return &cp
}
