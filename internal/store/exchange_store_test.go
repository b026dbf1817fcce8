package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"donorcrm/internal/models"
)

func TestExchangeStoreGetExact(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	store := NewExchangeStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM exchange_rates") || !strings.Contains(query, "date = $3") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "USD" || args[1] != "ILS" || args[2] != "2024-03-15" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.ExchangeRate) = models.ExchangeRate{ID: "rate-1", Rate: decimal.RequireFromString("3.7")}
			return nil
		},
	})
	row, err := store.GetExact(ctx, "USD", "ILS", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "rate-1" || !row.Rate.Equal(decimal.RequireFromString("3.7")) {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestExchangeStoreGetExactNotFound(t *testing.T) {
	store := NewExchangeStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			return sql.ErrNoRows
		},
	})
	_, err := store.GetExact(context.Background(), "USD", "ILS", time.Now())
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestExchangeStoreGetLatestBetween(t *testing.T) {
	from := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	store := NewExchangeStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY date DESC") || !strings.Contains(query, "date <= $4") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[2] != "2024-02-14" || args[3] != "2024-03-15" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.ExchangeRate) = models.ExchangeRate{ID: "rate-2"}
			return nil
		},
	})
	row, err := store.GetLatestBetween(context.Background(), "USD", "ILS", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "rate-2" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestExchangeStoreUpsert(t *testing.T) {
	ctx := context.Background()
	calls := 0
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "ON CONFLICT (base_currency, target_currency, date)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 6 || args[3] != "3.70000000" || args[4] != "2024-03-15" || args[5] != RateSourceManual {
				t.Fatalf("unexpected args: %#v", args)
			}
			if args[0] == "" {
				t.Fatalf("expected generated id")
			}
			calls++
			return stubResult{rows: 1}, nil
		},
	}
	store := NewExchangeStore(stubDB{})
	err := store.Upsert(ctx, execer, models.ExchangeRate{
		BaseCurrency:   "USD",
		TargetCurrency: "ILS",
		Rate:           decimal.RequireFromString("3.7"),
		Date:           time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 insert, got %d", calls)
	}
}
