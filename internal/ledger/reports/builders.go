// Package reports derives trial balance, balance sheet and income statement
// figures from per-account activity aggregates. Builders are pure; the
// service wraps them with fetching and caching.
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
)

// AccountActivity is one account's aggregate slice of the ledger: an opening
// balance (already sign-adjusted) plus windowed debit/credit activity.
type AccountActivity struct {
	ID      int64
	Code    string
	Name    string
	Type    ledger.AccountType
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// Closing folds the windowed activity into the opening balance per the
// balance-sign rule.
func (a AccountActivity) Closing() decimal.Decimal {
	return ledger.Apply(ledger.BalanceSignFor(a.Type), a.Opening, a.Debit, a.Credit)
}

func (a AccountActivity) idle() bool {
	return a.Opening.IsZero() && a.Debit.IsZero() && a.Credit.IsZero()
}

// TrialBalanceRow is one account in the trial balance with its closing
// balance split into the debit or credit column.
type TrialBalanceRow struct {
	AccountID     int64
	Code          string
	Name          string
	Type          ledger.AccountType
	Opening       decimal.Decimal
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	DebitBalance  decimal.Decimal
	CreditBalance decimal.Decimal
}

// TrialBalance lists every account with activity and the column totals.
type TrialBalance struct {
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	IsBalanced  bool
}

// BuildTrialBalance splits each account's closing balance into a debit or
// credit column per the balance-sign rule. Accounts with no opening balance
// and no activity are omitted.
func BuildTrialBalance(accounts []AccountActivity) TrialBalance {
	tb := TrialBalance{
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, acc := range accounts {
		if acc.idle() {
			continue
		}
		row := TrialBalanceRow{
			AccountID:     acc.ID,
			Code:          acc.Code,
			Name:          acc.Name,
			Type:          acc.Type,
			Opening:       acc.Opening,
			Debit:         acc.Debit,
			Credit:        acc.Credit,
			DebitBalance:  decimal.Zero,
			CreditBalance: decimal.Zero,
		}
		closing := acc.Closing()
		debitNormal := ledger.BalanceSignFor(acc.Type) == ledger.DebitIncreases
		// A negative balance flips to the opposite column.
		switch {
		case debitNormal && !closing.IsNegative():
			row.DebitBalance = closing
		case debitNormal:
			row.CreditBalance = closing.Neg()
		case !closing.IsNegative():
			row.CreditBalance = closing
		default:
			row.DebitBalance = closing.Neg()
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.DebitBalance)
		tb.TotalCredit = tb.TotalCredit.Add(row.CreditBalance)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	tb.IsBalanced = ledger.WithinEpsilon(tb.TotalDebit, tb.TotalCredit)
	return tb
}

// BalanceSheetRow is one account and its balance within a section.
type BalanceSheetRow struct {
	Code    string
	Name    string
	Balance decimal.Decimal
}

// BalanceSheetSection groups accounts of one classification.
type BalanceSheetSection struct {
	Rows  []BalanceSheetRow
	Total decimal.Decimal
}

// BalanceSheet is the statement of financial position as of a date.
// RetainedEarnings is the accumulated revenue-minus-expense result through
// the date; it is included in TotalEquity.
type BalanceSheet struct {
	Assets           BalanceSheetSection
	Liabilities      BalanceSheetSection
	Equity           BalanceSheetSection
	RetainedEarnings decimal.Decimal
	TotalEquity      decimal.Decimal
	IsBalanced       bool
}

// BuildBalanceSheet aggregates closing balances into assets, liabilities and
// equity. Revenue and expense accounts contribute only their activity (not
// opening balances) to retained earnings.
func BuildBalanceSheet(accounts []AccountActivity) BalanceSheet {
	bs := BalanceSheet{
		Assets:           BalanceSheetSection{Total: decimal.Zero},
		Liabilities:      BalanceSheetSection{Total: decimal.Zero},
		Equity:           BalanceSheetSection{Total: decimal.Zero},
		RetainedEarnings: decimal.Zero,
	}
	addRow := func(section *BalanceSheetSection, acc AccountActivity) {
		balance := acc.Closing()
		section.Rows = append(section.Rows, BalanceSheetRow{Code: acc.Code, Name: acc.Name, Balance: balance})
		section.Total = section.Total.Add(balance)
	}
	for _, acc := range accounts {
		if acc.idle() {
			continue
		}
		switch acc.Type {
		case ledger.AccountTypeAsset:
			addRow(&bs.Assets, acc)
		case ledger.AccountTypeLiability:
			addRow(&bs.Liabilities, acc)
		case ledger.AccountTypeEquity:
			addRow(&bs.Equity, acc)
		case ledger.AccountTypeRevenue:
			bs.RetainedEarnings = bs.RetainedEarnings.Add(acc.Credit.Sub(acc.Debit))
		case ledger.AccountTypeExpense:
			bs.RetainedEarnings = bs.RetainedEarnings.Sub(acc.Debit.Sub(acc.Credit))
		}
	}
	for _, section := range []*BalanceSheetSection{&bs.Assets, &bs.Liabilities, &bs.Equity} {
		sort.Slice(section.Rows, func(i, j int) bool { return section.Rows[i].Code < section.Rows[j].Code })
	}
	bs.TotalEquity = bs.Equity.Total.Add(bs.RetainedEarnings)
	bs.IsBalanced = ledger.WithinEpsilon(bs.Assets.Total, bs.Liabilities.Total.Add(bs.TotalEquity))
	return bs
}

// IncomeStatementRow is one revenue or expense account's period flow.
type IncomeStatementRow struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// IncomeStatement reports period flows only: opening balances never apply to
// revenue or expense accounts.
type IncomeStatement struct {
	Revenue       []IncomeStatementRow
	Expenses      []IncomeStatementRow
	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// BuildIncomeStatement sums revenue (credit minus debit) and expense (debit
// minus credit) flows from windowed activity.
func BuildIncomeStatement(accounts []AccountActivity) IncomeStatement {
	is := IncomeStatement{
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, acc := range accounts {
		if acc.Debit.IsZero() && acc.Credit.IsZero() {
			continue
		}
		switch acc.Type {
		case ledger.AccountTypeRevenue:
			amount := acc.Credit.Sub(acc.Debit)
			is.Revenue = append(is.Revenue, IncomeStatementRow{Code: acc.Code, Name: acc.Name, Amount: amount})
			is.TotalRevenue = is.TotalRevenue.Add(amount)
		case ledger.AccountTypeExpense:
			amount := acc.Debit.Sub(acc.Credit)
			is.Expenses = append(is.Expenses, IncomeStatementRow{Code: acc.Code, Name: acc.Name, Amount: amount})
			is.TotalExpenses = is.TotalExpenses.Add(amount)
		}
	}
	sort.Slice(is.Revenue, func(i, j int) bool { return is.Revenue[i].Code < is.Revenue[j].Code })
	sort.Slice(is.Expenses, func(i, j int) bool { return is.Expenses[i].Code < is.Expenses[j].Code })
	is.NetIncome = is.TotalRevenue.Sub(is.TotalExpenses)
	return is
}

// PeriodClose summarizes the retained-earnings transfer a period close would
// post: total revenue and expense flows through the close date and the
// resulting net income. No closing entries are written.
type PeriodClose struct {
	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// BuildPeriodClose computes the close summary from activity through the
// close date.
func BuildPeriodClose(accounts []AccountActivity) PeriodClose {
	is := BuildIncomeStatement(accounts)
	return PeriodClose{
		TotalRevenue:  is.TotalRevenue,
		TotalExpenses: is.TotalExpenses,
		NetIncome:     is.NetIncome,
	}
}
