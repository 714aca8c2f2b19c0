package presenter

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"-12.5", "-$12.50"},
		{"1234.5", "$1,234.50"},
		{"0", "$0.00"},
		{"999.999", "$1,000.00"},
		{"1234567.891", "$1,234,567.89"},
		{"-1000000", "-$1,000,000.00"},
		{"-0.001", "$0.00"},
		{"100", "$100.00"},
	}
	for _, c := range cases {
		got := FormatAmount(decimal.RequireFromString(c.in))
		if got != c.want {
			t.Errorf("FormatAmount(%s)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	sameYear := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	if got, want := FormatTimestamp(sameYear, now), "Mar 5, 2:07 PM"; got != want {
		t.Fatalf("same year=%q want %q", got, want)
	}

	lastYear := time.Date(2023, 12, 31, 9, 30, 0, 0, time.UTC)
	if got, want := FormatTimestamp(lastYear, now), "Dec 31, 2023, 9:30 AM"; got != want {
		t.Fatalf("other year=%q want %q", got, want)
	}
}

func TestFormatTimestampUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, loc)
	// 2023-12-31 20:00 UTC 在 UTC+8 已經是 2024 年
	ts := time.Date(2023, 12, 31, 20, 0, 0, 0, time.UTC)
	if got, want := FormatTimestamp(ts, now), "Jan 1, 4:00 AM"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	account := &domain.Account{
		ID:        "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Liu",
		Balance:   decimal.RequireFromString("20"),
	}
	history := []*domain.Transaction{
		{
			ID:               uuid.New(),
			AccountID:        "alice",
			Type:             domain.TransactionTypeTransferOut,
			Amount:           decimal.RequireFromString("50"),
			Timestamp:        time.Date(2024, 6, 15, 11, 0, 0, 0, time.UTC),
			CounterpartyName: "Bob",
		},
		{
			ID:               uuid.New(),
			AccountID:        "alice",
			Type:             domain.TransactionTypeTransferIn,
			Amount:           decimal.RequireFromString("5"),
			Timestamp:        time.Date(2024, 6, 14, 11, 0, 0, 0, time.UTC),
			CounterpartyName: "Carol",
		},
		{
			ID:        uuid.New(),
			AccountID: "alice",
			Type:      domain.TransactionTypeWithdrawal,
			Amount:    decimal.RequireFromString("30"),
			Timestamp: time.Date(2024, 6, 13, 11, 0, 0, 0, time.UTC),
		},
	}

	s := Summarize(account, history, now)
	if s.BalanceFormatted != "$20.00" {
		t.Fatalf("balance=%q", s.BalanceFormatted)
	}
	if s.Name != "Alice Liu" {
		t.Fatalf("name=%q", s.Name)
	}
	if len(s.Entries) != 3 {
		t.Fatalf("entries=%d", len(s.Entries))
	}
	want := []struct{ amount, counterparty, ts string }{
		{"-$50.00", "to Bob", "Jun 15, 11:00 AM"},
		{"$5.00", "from Carol", "Jun 14, 11:00 AM"},
		{"-$30.00", "", "Jun 13, 11:00 AM"},
	}
	for i, w := range want {
		e := s.Entries[i]
		if e.Amount != w.amount || e.Counterparty != w.counterparty || e.Timestamp != w.ts {
			t.Errorf("entry %d = %+v, want %+v", i, e, w)
		}
	}
}
