// Package postgres 以 pgx/v5 實作帳戶、交易紀錄與轉帳意圖儲存
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

//go:embed schema.sql
var schema string

// Migrate 建立資料表 (可重複執行)
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// uniqueViolation PostgreSQL unique_violation
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %v", domain.ErrStoreUnavailable, op, err)
}

// NUMERIC 一律以文字進出，避免經過 float
func parseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: numeric %q: %v", domain.ErrStoreCorruption, s, err)
	}
	return d, nil
}

func refsToText(refs []uuid.UUID) []string {
	out := make([]string, len(refs))
	for i, id := range refs {
		out[i] = id.String()
	}
	return out
}

func refsFromText(refs []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(refs))
	for _, s := range refs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction ref %q: %v", domain.ErrStoreCorruption, s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// scanner 同時符合 pgx.Row 與 pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}
