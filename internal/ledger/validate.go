package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineInput describes one journal line as submitted by a caller.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// JournalValidation is the collected outcome of validating a journal posting.
// Errors holds every problem found, not just the first.
type JournalValidation struct {
	Valid       bool
	Errors      []error
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
}

// ValidateLine enforces the single-line double-entry invariant: exactly one of
// debit/credit must be positive.
func ValidateLine(debit, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return ErrNegativeAmount
	}
	if debit.IsZero() && credit.IsZero() {
		return ErrNeitherAmount
	}
	if debit.IsPositive() && credit.IsPositive() {
		return ErrBothAmounts
	}
	return nil
}

// ValidateJournalLines checks a journal posting against the accounts it
// references. It collects all per-line errors, verifies each account exists
// and is active, and finally checks the debit/credit totals within Epsilon.
func ValidateJournalLines(lines []LineInput, accounts map[int64]AccountRef) JournalValidation {
	res := JournalValidation{
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	if len(lines) < 2 {
		res.Errors = append(res.Errors, ErrTooFewLines)
	}
	for idx, line := range lines {
		if err := ValidateLine(line.Debit, line.Credit); err != nil {
			res.Errors = append(res.Errors, &LineError{Index: idx, Err: err})
		}
		acct, ok := accounts[line.AccountID]
		if !ok {
			res.Errors = append(res.Errors, &LineError{Index: idx, Err: fmt.Errorf("%w: id %d", ErrAccountNotFound, line.AccountID)})
		} else if !acct.Active {
			res.Errors = append(res.Errors, &LineError{Index: idx, Err: fmt.Errorf("%w: %s", ErrAccountInactive, acct.Code)})
		}
		res.TotalDebit = res.TotalDebit.Add(line.Debit)
		res.TotalCredit = res.TotalCredit.Add(line.Credit)
	}
	res.Difference = res.TotalDebit.Sub(res.TotalCredit).Abs()
	if res.Difference.GreaterThanOrEqual(Epsilon) {
		res.Errors = append(res.Errors, &UnbalancedError{
			TotalDebit:  res.TotalDebit,
			TotalCredit: res.TotalCredit,
			Difference:  res.Difference,
		})
	}
	res.Valid = len(res.Errors) == 0
	return res
}
