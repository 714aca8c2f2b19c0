package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale 金額與餘額最多的小數位數，對應 SQL 欄位 decimal(38,8)
const AmountScale = 8

// maxIntegerDigits decimal(38,8) 整數部分最多 30 位
const maxIntegerDigits = 38 - AmountScale

// MaxAmount 金額與餘額的上限 (不含)
var MaxAmount = decimal.New(1, maxIntegerDigits)

// ParseAmount 解析使用者輸入的金額字串
//
// 必須是有限的正數，小數最多 AmountScale 位且小於 MaxAmount；
// 0、負數、NaN、Inf、超出範圍或無法解析都回傳 ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if err := checkRange(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// checkRange 只看位數與指數判斷，避免 1e20000000 這種輸入觸發大數運算
func checkRange(amount decimal.Decimal) error {
	digits := amount.NumDigits()
	exp := int(amount.Exponent())
	if digits+exp > maxIntegerDigits {
		return fmt.Errorf("%w: must be less than %s", ErrInvalidAmount, MaxAmount)
	}
	if exp < -AmountScale {
		// 非零係數最多 digits-1 個尾數 0，不夠抵銷多出來的小數位
		if -exp-AmountScale >= digits || !amount.Equal(amount.Truncate(AmountScale)) {
			return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, AmountScale)
		}
	}
	return nil
}

// CheckBalance 餘額必須落在可儲存的範圍內
func CheckBalance(balance decimal.Decimal) error {
	if balance.Abs().Cmp(MaxAmount) >= 0 {
		return fmt.Errorf("%w: balance would reach %s", ErrInvalidAmount, MaxAmount)
	}
	return nil
}
