package ledger

import (
	"context"
	"time"
)

// Recalculator rewrites cached running balances for one account forward from
// a date. It always runs inside the mutation transaction that triggered it:
// the account row is locked for update first, so two recalculations on the
// same account cannot interleave, while different accounts proceed
// independently.
type Recalculator struct {
	observe func(lines int, elapsed time.Duration)
}

// NewRecalculator constructs a Recalculator.
func NewRecalculator() *Recalculator {
	return &Recalculator{}
}

// WithObserver installs a hook receiving the number of rewritten lines and
// the walk duration, used for metrics.
func (r *Recalculator) WithObserver(fn func(lines int, elapsed time.Duration)) {
	if fn != nil {
		r.observe = fn
	}
}

// RecalculateFrom recomputes running balances for every line of the account
// dated on or after from, in (date asc, id asc) order across both entry
// shapes. Lines before the date are never touched; the balance carried into
// the walk is opening balance plus the signed activity before the date, which
// is order-free because Apply is additive.
//
// The walk is idempotent and O(n) in the lines at or after the date: a
// backdated correction costs proportionally to how far back it reaches.
func (r *Recalculator) RecalculateFrom(ctx context.Context, tx TxRepository, accountID int64, from time.Time) (int, error) {
	start := time.Now()

	acct, err := tx.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return 0, err
	}
	sign := BalanceSignFor(acct.Type)

	debit, credit, err := tx.SumAccountActivityBefore(ctx, accountID, from)
	if err != nil {
		return 0, err
	}
	balance := Apply(sign, acct.OpeningBalance, debit, credit)

	lines, err := tx.ListAccountLinesFrom(ctx, accountID, from)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		balance = Apply(sign, balance, line.Debit, line.Credit)
		if err := tx.SetRunningBalance(ctx, line.Source, line.ID, balance); err != nil {
			return 0, err
		}
	}

	if r.observe != nil {
		r.observe(len(lines), time.Since(start))
	}
	return len(lines), nil
}
