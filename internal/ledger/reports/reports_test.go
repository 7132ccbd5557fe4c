package reports

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openbooks/openbooks/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func activity(code string, t ledger.AccountType, opening, debit, credit string) AccountActivity {
	return AccountActivity{
		Code:    code,
		Name:    "account " + code,
		Type:    t,
		Opening: dec(opening),
		Debit:   dec(debit),
		Credit:  dec(credit),
	}
}

func TestBuildTrialBalanceColumns(t *testing.T) {
	tb := BuildTrialBalance([]AccountActivity{
		activity("1010", ledger.AccountTypeAsset, "1000.00", "500.00", "200.00"),
		activity("2010", ledger.AccountTypeLiability, "0.00", "0.00", "300.00"),
		activity("3010", ledger.AccountTypeEquity, "1000.00", "0.00", "0.00"),
		activity("9999", ledger.AccountTypeAsset, "0.00", "0.00", "0.00"),
	})

	// The idle account is omitted.
	require.Len(t, tb.Rows, 3)
	require.Equal(t, "1010", tb.Rows[0].Code)
	require.True(t, tb.Rows[0].DebitBalance.Equal(dec("1300.00")))
	require.True(t, tb.Rows[0].CreditBalance.IsZero())
	require.True(t, tb.Rows[1].CreditBalance.Equal(dec("300.00")))
	require.True(t, tb.Rows[2].CreditBalance.Equal(dec("1000.00")))
	require.True(t, tb.TotalDebit.Equal(dec("1300.00")))
	require.True(t, tb.TotalCredit.Equal(dec("1300.00")))
	require.True(t, tb.IsBalanced)
}

func TestBuildTrialBalanceNegativeBalanceFlipsColumn(t *testing.T) {
	tb := BuildTrialBalance([]AccountActivity{
		// An overdrawn asset account shows as a credit balance.
		activity("1010", ledger.AccountTypeAsset, "100.00", "0.00", "250.00"),
	})
	require.True(t, tb.Rows[0].DebitBalance.IsZero())
	require.True(t, tb.Rows[0].CreditBalance.Equal(dec("150.00")), "got %s", tb.Rows[0].CreditBalance)
}

func TestBuildTrialBalanceFromBalancedJournalsIsBalanced(t *testing.T) {
	// Mirrors a ledger built from balanced journal entries only.
	tb := BuildTrialBalance([]AccountActivity{
		activity("1010", ledger.AccountTypeAsset, "0.00", "900.00", "100.00"),
		activity("2010", ledger.AccountTypeLiability, "0.00", "100.00", "400.00"),
		activity("4010", ledger.AccountTypeRevenue, "0.00", "0.00", "500.00"),
	})
	require.True(t, tb.IsBalanced)
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
}

func TestBuildBalanceSheetEquation(t *testing.T) {
	bs := BuildBalanceSheet([]AccountActivity{
		activity("1010", ledger.AccountTypeAsset, "1000.00", "500.00", "0.00"),
		activity("2010", ledger.AccountTypeLiability, "0.00", "0.00", "700.00"),
		activity("3010", ledger.AccountTypeEquity, "500.00", "0.00", "0.00"),
		activity("4010", ledger.AccountTypeRevenue, "0.00", "0.00", "400.00"),
		activity("5010", ledger.AccountTypeExpense, "0.00", "100.00", "0.00"),
	})

	require.True(t, bs.Assets.Total.Equal(dec("1500.00")))
	require.True(t, bs.Liabilities.Total.Equal(dec("700.00")))
	require.True(t, bs.RetainedEarnings.Equal(dec("300.00")), "got %s", bs.RetainedEarnings)
	require.True(t, bs.TotalEquity.Equal(dec("800.00")))
	require.True(t, bs.IsBalanced)
}

func TestBuildBalanceSheetRevenueOpeningIgnored(t *testing.T) {
	// Retained earnings derive from flows only; a stray opening balance on a
	// revenue account must not leak in.
	bs := BuildBalanceSheet([]AccountActivity{
		activity("4010", ledger.AccountTypeRevenue, "999.00", "0.00", "100.00"),
	})
	require.True(t, bs.RetainedEarnings.Equal(dec("100.00")), "got %s", bs.RetainedEarnings)
}

func TestBuildIncomeStatement(t *testing.T) {
	is := BuildIncomeStatement([]AccountActivity{
		activity("4010", ledger.AccountTypeRevenue, "123.00", "50.00", "800.00"),
		activity("5010", ledger.AccountTypeExpense, "0.00", "300.00", "20.00"),
		activity("1010", ledger.AccountTypeAsset, "0.00", "500.00", "0.00"),
		activity("4020", ledger.AccountTypeRevenue, "0.00", "0.00", "0.00"),
	})

	require.Len(t, is.Revenue, 1)
	require.Len(t, is.Expenses, 1)
	require.True(t, is.TotalRevenue.Equal(dec("750.00")))
	require.True(t, is.TotalExpenses.Equal(dec("280.00")))
	require.True(t, is.NetIncome.Equal(dec("470.00")))
}

func TestBuildPeriodClose(t *testing.T) {
	pc := BuildPeriodClose([]AccountActivity{
		activity("4010", ledger.AccountTypeRevenue, "0.00", "0.00", "1000.00"),
		activity("5010", ledger.AccountTypeExpense, "0.00", "400.00", "0.00"),
	})
	require.True(t, pc.TotalRevenue.Equal(dec("1000.00")))
	require.True(t, pc.TotalExpenses.Equal(dec("400.00")))
	require.True(t, pc.NetIncome.Equal(dec("600.00")))
}

type countingActivity struct {
	calls int
	rows  []AccountActivity
}

func (c *countingActivity) FetchActivity(ctx context.Context, dateFrom, dateTo *time.Time) ([]AccountActivity, error) {
	c.calls++
	return c.rows, nil
}

func testService(t *testing.T, repo ActivityPort, ttl time.Duration) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, client, ttl), mr
}

func TestTrialBalanceMemoized(t *testing.T) {
	repo := &countingActivity{rows: []AccountActivity{
		activity("1010", ledger.AccountTypeAsset, "100.00", "0.00", "0.00"),
	}}
	svc, mr := testService(t, repo, time.Minute)

	first, err := svc.TrialBalance(context.Background(), nil, nil)
	require.NoError(t, err)
	second, err := svc.TrialBalance(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)
	require.True(t, first.TotalDebit.Equal(second.TotalDebit))

	// The memo expires; the next call recomputes to the same result.
	mr.FastForward(2 * time.Minute)
	third, err := svc.TrialBalance(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
	require.True(t, first.TotalDebit.Equal(third.TotalDebit))
}

func TestTrialBalanceWindowsCachedSeparately(t *testing.T) {
	repo := &countingActivity{rows: []AccountActivity{
		activity("1010", ledger.AccountTypeAsset, "100.00", "0.00", "0.00"),
	}}
	svc, _ := testService(t, repo, time.Minute)

	_, err := svc.TrialBalance(context.Background(), nil, nil)
	require.NoError(t, err)

	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	_, err = svc.TrialBalance(context.Background(), nil, &to)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestReportsWithoutCacheClient(t *testing.T) {
	repo := &countingActivity{rows: []AccountActivity{
		activity("1010", ledger.AccountTypeAsset, "100.00", "0.00", "0.00"),
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, repo, nil, 0)

	_, err := svc.TrialBalance(context.Background(), nil, nil)
	require.NoError(t, err)
	_, err = svc.TrialBalance(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestClosePeriodNeverCached(t *testing.T) {
	repo := &countingActivity{rows: []AccountActivity{
		activity("4010", ledger.AccountTypeRevenue, "0.00", "0.00", "250.00"),
	}}
	svc, _ := testService(t, repo, time.Minute)

	through := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	pc, err := svc.ClosePeriod(context.Background(), through)
	require.NoError(t, err)
	require.True(t, pc.NetIncome.Equal(dec("250.00")))

	_, err = svc.ClosePeriod(context.Background(), through)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}
