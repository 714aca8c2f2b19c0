// Package presenter 把帳戶狀態轉成顯示用的字串，不持有任何狀態
package presenter

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

const (
	timestampLayout         = "Jan 2, 3:04 PM"
	timestampLayoutWithYear = "Jan 2, 2006, 3:04 PM"
)

// Entry 一筆交易的顯示內容
type Entry struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Timestamp     string `json:"timestamp"`
	// Amount 帶號金額，例如 "-$12.50"
	Amount       string `json:"amount"`
	Counterparty string `json:"counterparty,omitempty"`
}

// Summary 帳戶顯示摘要
type Summary struct {
	AccountID        string  `json:"account_id"`
	Email            string  `json:"email"`
	Name             string  `json:"name"`
	BalanceFormatted string  `json:"balance"`
	Entries          []Entry `json:"entries"`
}

// Summarize 組出帳戶摘要
//
// 參數:
//
//	account: 帳戶
//	history: 交易歷史，已排序 (新到舊)
//	now: 目前時間，決定時間戳要不要帶年份，也決定顯示時區
func Summarize(account *domain.Account, history []*domain.Transaction, now time.Time) Summary {
	s := Summary{
		AccountID:        account.ID,
		Email:            account.Email,
		Name:             strings.TrimSpace(account.FirstName + " " + account.LastName),
		BalanceFormatted: FormatAmount(account.Balance),
		Entries:          make([]Entry, 0, len(history)),
	}
	for _, tx := range history {
		s.Entries = append(s.Entries, Entry{
			TransactionID: tx.ID.String(),
			Type:          tx.Type.String(),
			Timestamp:     FormatTimestamp(tx.Timestamp, now),
			Amount:        FormatAmount(tx.SignedAmount()),
			Counterparty:  CounterpartyLabel(tx),
		})
	}
	return s
}

// FormatAmount 千分位、兩位小數，負數加 "-" 前綴
//
//	-12.5  -> "-$12.50"
//	1234.5 -> "$1,234.50"
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatTimestamp 同一年省略年份
func FormatTimestamp(t, now time.Time) string {
	t = t.In(now.Location())
	if t.Year() == now.Year() {
		return t.Format(timestampLayout)
	}
	return t.Format(timestampLayoutWithYear)
}

// CounterpartyLabel 轉出 "to <name>"，轉入 "from <name>"，其他為空
func CounterpartyLabel(tx *domain.Transaction) string {
	switch tx.Type {
	case domain.TransactionTypeTransferOut:
		return "to " + tx.CounterpartyName
	case domain.TransactionTypeTransferIn:
		return "from " + tx.CounterpartyName
	default:
		return ""
	}
}
