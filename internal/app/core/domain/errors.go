package domain

import "errors"

// 驗證錯誤 (Rejection)：直接回給呼叫端，不視為系統故障
var (
	// ErrInvalidAmount 金額必須為有限正數
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRecipientNotFound 收款人沒有帳戶
	ErrRecipientNotFound = errors.New("recipient has no account")

	// ErrSameAccount 不能轉帳給自己
	ErrSameAccount = errors.New("cannot transfer to the same account")
)

// 帳戶相關
var (
	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists 帳戶已存在
	ErrAccountExists = errors.New("account already exists")

	// ErrAmbiguousEmail 同一個 email 對應多個帳戶 (資料完整性錯誤)
	ErrAmbiguousEmail = errors.New("email matches more than one account")

	// ErrVersionConflict compare-and-update 時版本不符
	ErrVersionConflict = errors.New("account version conflict")

	// ErrUnauthenticated 呼叫端未登入
	ErrUnauthenticated = errors.New("unauthenticated")
)

// 交易紀錄與轉帳意圖
var (
	// ErrTransactionNotFound 找不到交易
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionExists 交易 ID 已寫入過 (交易不可變)
	ErrTransactionExists = errors.New("transaction already exists")

	// ErrIntentNotFound 找不到轉帳意圖
	ErrIntentNotFound = errors.New("transfer intent not found")

	// ErrIntentExists 轉帳意圖已存在
	ErrIntentExists = errors.New("transfer intent already exists")

	// ErrDuplicateRequest 相同 request id 的請求先前已失敗
	ErrDuplicateRequest = errors.New("request already processed")
)

// 系統錯誤 (System Fault)：記錄給維運處理，呼叫端只看到通用失敗
var (
	// ErrTransientConflict 重試次數用完仍然版本衝突
	ErrTransientConflict = errors.New("transient conflict, retry later")

	// ErrTransferIncomplete 扣款已完成但入帳未完成，等待 recovery
	ErrTransferIncomplete = errors.New("transfer incomplete")

	// ErrStoreUnavailable 儲存層無法使用
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreCorruption 儲存層資料不一致
	ErrStoreCorruption = errors.New("store corruption")
)

// IsRejection 判斷是否為驗證錯誤 (使用者錯誤，而非系統錯誤)
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrRecipientNotFound) ||
		errors.Is(err, ErrSameAccount)
}
