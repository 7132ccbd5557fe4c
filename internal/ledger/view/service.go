package view

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
)

// LinesPort supplies the raw material for a ledger display.
type LinesPort interface {
	// EntityLines returns every line referencing the entity, both shapes,
	// in any order.
	EntityLines(ctx context.Context, kind FKKind, entityID int64) ([]ledger.LedgerLine, error)
	GetAccountRef(ctx context.Context, id int64) (ledger.AccountRef, error)
}

// Query selects the entity and display options for one ledger.
type Query struct {
	Kind        FKKind
	EntityID    int64
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      string
	NewestFirst bool
}

// Service builds entity ledgers. It is read-only: balances shown here are
// replayed in memory and never written back.
type Service struct {
	repo LinesPort
}

func NewService(repo LinesPort) *Service {
	return &Service{repo: repo}
}

// EntityLedger builds the ledger for one account, customer or employee.
// Account ledgers start from the account's opening balance and follow its
// balance-sign rule; customer and employee ledgers have no opening notion and
// accumulate debits minus credits.
func (s *Service) EntityLedger(ctx context.Context, q Query) (Result, error) {
	if !q.Kind.Valid() {
		return Result{}, fmt.Errorf("view: unknown entity kind %q", q.Kind)
	}

	params := Params{
		Sign:        ledger.DebitIncreases,
		Opening:     decimal.Zero,
		DateFrom:    q.DateFrom,
		DateTo:      q.DateTo,
		Search:      q.Search,
		NewestFirst: q.NewestFirst,
	}
	if q.Kind == KindAccount {
		acct, err := s.repo.GetAccountRef(ctx, q.EntityID)
		if err != nil {
			return Result{}, err
		}
		params.Sign = ledger.BalanceSignFor(acct.Type)
		params.Opening = acct.OpeningBalance
	}

	lines, err := s.repo.EntityLines(ctx, q.Kind, q.EntityID)
	if err != nil {
		return Result{}, err
	}
	return Build(lines, params), nil
}
