// Package view assembles per-entity ledger displays: every movement touching
// an account, customer or employee, merged across both entry shapes into one
// chronological sequence with running balances.
package view

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/search"

	"github.com/openbooks/openbooks/internal/ledger"
)

// FKKind selects which foreign key the ledger is built over.
type FKKind string

const (
	KindAccount  FKKind = "account"
	KindCustomer FKKind = "customer"
	KindEmployee FKKind = "employee"
)

// Valid reports whether the kind is known.
func (k FKKind) Valid() bool {
	return k == KindAccount || k == KindCustomer || k == KindEmployee
}

// Row is one display line. Opening marks the synthesized opening-balance
// pseudo-row, which carries no movement of its own.
type Row struct {
	Line    ledger.LedgerLine
	Balance decimal.Decimal
	Opening bool
}

// Result is a fully accumulated ledger display.
type Result struct {
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	Count          int
	Rows           []Row
}

// Params drives one Build call. Opening is the entity's all-time opening
// balance (zero for customer/employee ledgers, which have no such notion).
type Params struct {
	Sign        ledger.BalanceSign
	Opening     decimal.Decimal
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      string
	NewestFirst bool
}

// Build merges the given lines into one chronological ledger. Filters apply
// before accumulation: lines removed by the text search never influence any
// balance, and lines before the window fold into the opening balance instead
// of appearing as rows. Accumulation always proceeds in (date asc, id asc)
// order; NewestFirst only reverses the finished rows for display.
func Build(lines []ledger.LedgerLine, p Params) Result {
	sorted := append([]ledger.LedgerLine(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	match := matcherFor(p.Search)

	res := Result{
		OpeningBalance: p.Opening,
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
	}
	for _, line := range sorted {
		if match != nil && !match(line) {
			continue
		}
		if p.DateFrom != nil && line.Date.Before(*p.DateFrom) {
			res.OpeningBalance = ledger.Apply(p.Sign, res.OpeningBalance, line.Debit, line.Credit)
			continue
		}
		if p.DateTo != nil && line.Date.After(*p.DateTo) {
			continue
		}
		res.Rows = append(res.Rows, Row{Line: line})
	}

	balance := res.OpeningBalance
	for i := range res.Rows {
		line := res.Rows[i].Line
		balance = ledger.Apply(p.Sign, balance, line.Debit, line.Credit)
		res.Rows[i].Balance = balance
		res.TotalDebit = res.TotalDebit.Add(line.Debit)
		res.TotalCredit = res.TotalCredit.Add(line.Credit)
	}
	res.ClosingBalance = balance
	res.Count = len(res.Rows)

	if p.DateFrom != nil || !res.OpeningBalance.IsZero() {
		opening := Row{Balance: res.OpeningBalance, Opening: true}
		opening.Line.Description = "Opening Balance"
		if p.DateFrom != nil {
			opening.Line.Date = *p.DateFrom
		}
		res.Rows = append([]Row{opening}, res.Rows...)
	}

	if p.NewestFirst {
		for i, j := 0, len(res.Rows)-1; i < j; i, j = i+1, j-1 {
			res.Rows[i], res.Rows[j] = res.Rows[j], res.Rows[i]
		}
	}
	return res
}

// matcherFor folds case and diacritics, so "Café" matches "cafe".
func matcherFor(needle string) func(ledger.LedgerLine) bool {
	if needle == "" {
		return nil
	}
	pattern := search.New(language.Und, search.Loose).CompileString(needle)
	return func(line ledger.LedgerLine) bool {
		if start, _ := pattern.IndexString(line.Description); start >= 0 {
			return true
		}
		start, _ := pattern.IndexString(line.Reference)
		return start >= 0
	}
}
