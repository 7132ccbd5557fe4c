package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBalanceSignFor(t *testing.T) {
	require.Equal(t, DebitIncreases, BalanceSignFor(AccountTypeAsset))
	require.Equal(t, DebitIncreases, BalanceSignFor(AccountTypeExpense))
	require.Equal(t, CreditIncreases, BalanceSignFor(AccountTypeLiability))
	require.Equal(t, CreditIncreases, BalanceSignFor(AccountTypeEquity))
	require.Equal(t, CreditIncreases, BalanceSignFor(AccountTypeRevenue))
}

func TestApply(t *testing.T) {
	balance := Apply(DebitIncreases, dec("1000.00"), dec("300.00"), decimal.Zero)
	require.True(t, balance.Equal(dec("1300.00")))

	balance = Apply(DebitIncreases, balance, decimal.Zero, dec("100.00"))
	require.True(t, balance.Equal(dec("1200.00")))

	balance = Apply(CreditIncreases, dec("500.00"), dec("200.00"), decimal.Zero)
	require.True(t, balance.Equal(dec("300.00")))
}

// addLine seeds a flat entry directly, bypassing the service, so tests control
// ids and dates precisely.
func (r *memoryLedgerRepo) addLine(accountID int64, date time.Time, debit, credit string) int64 {
	id := r.nextLineID()
	r.transactions[id] = LedgerLine{
		ID:        id,
		Source:    SourceTransaction,
		AccountID: accountID,
		Date:      date,
		Debit:     dec(debit),
		Credit:    dec(credit),
	}
	return id
}

func (r *memoryLedgerRepo) addJournalLine(accountID int64, date time.Time, debit, credit string) int64 {
	r.journalSeq++
	journalID := r.journalSeq
	r.journals[journalID] = JournalEntry{ID: journalID, Date: date}
	id := r.nextLineID()
	r.items[journalID] = append(r.items[journalID], LedgerLine{
		ID:        id,
		Source:    SourceJournal,
		JournalID: &journalID,
		AccountID: accountID,
		Date:      date,
		Debit:     dec(debit),
		Credit:    dec(credit),
	})
	return id
}

func recalcAll(t *testing.T, repo *memoryLedgerRepo, accountID int64, from time.Time) int {
	t.Helper()
	var lines int
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		lines, err = NewRecalculator().RecalculateFrom(ctx, tx, accountID, from)
		return err
	})
	require.NoError(t, err)
	return lines
}

func runningBalance(t *testing.T, repo *memoryLedgerRepo, id int64) decimal.Decimal {
	t.Helper()
	if line, ok := repo.transactions[id]; ok {
		return line.RunningBalance
	}
	for _, items := range repo.items {
		for _, item := range items {
			if item.ID == id {
				return item.RunningBalance
			}
		}
	}
	t.Fatalf("line %d not found", id)
	return decimal.Zero
}

func TestRecalculateForwardWalk(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.addAccount(1, "1010", AccountTypeAsset, "1000.00", true)
	a := repo.addLine(1, day(10), "500.00", "0")
	b := repo.addLine(1, day(11), "0", "200.00")

	lines := recalcAll(t, repo, 1, time.Time{})
	require.Equal(t, 2, lines)
	require.True(t, runningBalance(t, repo, a).Equal(dec("1500.00")))
	require.True(t, runningBalance(t, repo, b).Equal(dec("1300.00")))
}

func TestRecalculateSameDateOrdersByID(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.addAccount(1, "1010", AccountTypeAsset, "1000.00", true)

	// Two movements on the same date across both entry shapes. Insertion
	// order decides: the flat entry got the lower id, so the debit lands
	// first and the running balances read 1300.00 then 1200.00.
	first := repo.addLine(1, day(10), "300.00", "0")
	second := repo.addJournalLine(1, day(10), "0", "100.00")

	recalcAll(t, repo, 1, time.Time{})
	require.True(t, runningBalance(t, repo, first).Equal(dec("1300.00")), "got %s", runningBalance(t, repo, first))
	require.True(t, runningBalance(t, repo, second).Equal(dec("1200.00")), "got %s", runningBalance(t, repo, second))
}

func TestRecalculateIsIdempotent(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.addAccount(1, "1010", AccountTypeAsset, "0.00", true)
	a := repo.addLine(1, day(10), "100.00", "0")
	b := repo.addLine(1, day(12), "0", "40.00")

	recalcAll(t, repo, 1, time.Time{})
	firstA, firstB := runningBalance(t, repo, a), runningBalance(t, repo, b)

	recalcAll(t, repo, 1, time.Time{})
	require.True(t, runningBalance(t, repo, a).Equal(firstA))
	require.True(t, runningBalance(t, repo, b).Equal(firstB))
}

func TestRecalculateLeavesEarlierLinesUntouched(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.addAccount(1, "1010", AccountTypeAsset, "0.00", true)
	old := repo.addLine(1, day(5), "100.00", "0")
	recent := repo.addLine(1, day(15), "50.00", "0")

	// Poison the early line's cached balance, then recompute from day 10
	// only. The stale value must survive: lines before the start date are
	// out of scope, their sum feeds the walk instead.
	line := repo.transactions[old]
	line.RunningBalance = dec("999.99")
	repo.transactions[old] = line

	lines := recalcAll(t, repo, 1, day(10))
	require.Equal(t, 1, lines)
	require.True(t, runningBalance(t, repo, old).Equal(dec("999.99")))
	require.True(t, runningBalance(t, repo, recent).Equal(dec("150.00")), "got %s", runningBalance(t, repo, recent))
}

func TestRecalculateCreditNormalAccount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.addAccount(2, "2010", AccountTypeLiability, "500.00", true)
	a := repo.addLine(2, day(10), "0", "200.00")
	b := repo.addLine(2, day(11), "150.00", "0")

	recalcAll(t, repo, 2, time.Time{})
	require.True(t, runningBalance(t, repo, a).Equal(dec("700.00")))
	require.True(t, runningBalance(t, repo, b).Equal(dec("550.00")))
}

func TestRecalculateUnknownAccount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := NewRecalculator().RecalculateFrom(ctx, tx, 42, time.Time{})
		return err
	})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestRecalculatorObserver(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.addAccount(1, "1010", AccountTypeAsset, "0.00", true)
	repo.addLine(1, day(10), "10.00", "0")
	repo.addLine(1, day(11), "10.00", "0")

	var observed int
	recalc := NewRecalculator()
	recalc.WithObserver(func(lines int, _ time.Duration) { observed = lines })

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := recalc.RecalculateFrom(ctx, tx, 1, time.Time{})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 2, observed)
}
