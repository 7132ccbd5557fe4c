package accounts

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openbooks/openbooks/internal/ledger"
)

type memoryLine struct {
	date   time.Time
	debit  decimal.Decimal
	credit decimal.Decimal
}

type memoryAccountRepo struct {
	accounts map[int64]Account
	lines    map[int64][]memoryLine
	nextID   int64
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{
		accounts: make(map[int64]Account),
		lines:    make(map[int64][]memoryLine),
	}
}

func (r *memoryAccountRepo) Insert(ctx context.Context, a Account) (Account, error) {
	for _, existing := range r.accounts {
		if existing.Code == a.Code {
			return Account{}, ledger.ErrDuplicateCode
		}
	}
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.accounts[a.ID] = a
	return a, nil
}

func (r *memoryAccountRepo) Get(ctx context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryAccountRepo) Update(ctx context.Context, id int64, patch Patch) error {
	a, ok := r.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if patch.Code != nil {
		for otherID, existing := range r.accounts {
			if otherID != id && existing.Code == *patch.Code {
				return ledger.ErrDuplicateCode
			}
		}
		a.Code = *patch.Code
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.ClearParent {
		a.ParentID = nil
	} else if patch.ParentID != nil {
		a.ParentID = patch.ParentID
	}
	if patch.OpeningBalance != nil {
		a.OpeningBalance = *patch.OpeningBalance
	}
	if patch.Description != nil {
		a.Description = *patch.Description
	}
	if patch.Active != nil {
		a.Active = *patch.Active
	}
	r.accounts[id] = a
	return nil
}

func (r *memoryAccountRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.accounts[id]; !ok {
		return ledger.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *memoryAccountRepo) List(ctx context.Context, q ListQuery) ([]Account, int, error) {
	var out []Account
	for _, a := range r.accounts {
		if q.Type != nil && a.Type != *q.Type {
			continue
		}
		if q.Active != nil && a.Active != *q.Active {
			continue
		}
		if q.Search != "" && !strings.Contains(a.Code, q.Search) && !strings.Contains(a.Name, q.Search) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, len(out), nil
}

func (r *memoryAccountRepo) HasLines(ctx context.Context, accountID int64) (bool, error) {
	return len(r.lines[accountID]) > 0, nil
}

func (r *memoryAccountRepo) SumActivityThrough(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range r.lines[accountID] {
		if asOf != nil && line.date.After(*asOf) {
			continue
		}
		debit = debit.Add(line.debit)
		credit = credit.Add(line.credit)
	}
	return debit, credit, nil
}

func (r *memoryAccountRepo) addLine(accountID int64, date time.Time, debit, credit string) {
	r.lines[accountID] = append(r.lines[accountID], memoryLine{
		date:   date,
		debit:  decimal.RequireFromString(debit),
		credit: decimal.RequireFromString(credit),
	})
}

func newTestService(repo *memoryAccountRepo) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, nil)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }

func seedAccount(t *testing.T, svc *Service, code string, accType ledger.AccountType, opening string, parent *int64) Account {
	t.Helper()
	a, err := svc.Create(context.Background(), CreateAccountInput{
		Code:           code,
		Name:           "account " + code,
		Type:           accType,
		ParentID:       parent,
		OpeningBalance: dec(opening),
		Active:         true,
	})
	require.NoError(t, err)
	return a
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	seedAccount(t, svc, "1010", ledger.AccountTypeAsset, "0", nil)
	_, err := svc.Create(context.Background(), CreateAccountInput{
		Code: "1010", Name: "dup", Type: ledger.AccountTypeAsset, Active: true,
	})
	require.ErrorIs(t, err, ledger.ErrDuplicateCode)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := newTestService(newMemoryAccountRepo())
	_, err := svc.Create(context.Background(), CreateAccountInput{
		Code: "1010", Name: "x", Type: "piggybank", Active: true,
	})
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestCreateRejectsInactiveParent(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	parent := seedAccount(t, svc, "1000", ledger.AccountTypeAsset, "0", nil)
	inactive := false
	_, err := svc.Update(context.Background(), parent.ID, Patch{Active: &inactive})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateAccountInput{
		Code: "1010", Name: "child", Type: ledger.AccountTypeAsset, ParentID: &parent.ID, Active: true,
	})
	require.ErrorIs(t, err, ledger.ErrAccountInactive)
}

func TestValidateParentSelf(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)
	a := seedAccount(t, svc, "1000", ledger.AccountTypeAsset, "0", nil)

	require.ErrorIs(t, svc.ValidateParent(context.Background(), a.ID, a.ID), ledger.ErrSelfParent)
}

func TestValidateParentCycle(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	root := seedAccount(t, svc, "1000", ledger.AccountTypeAsset, "0", nil)
	mid := seedAccount(t, svc, "1100", ledger.AccountTypeAsset, "0", &root.ID)
	leaf := seedAccount(t, svc, "1110", ledger.AccountTypeAsset, "0", &mid.ID)

	// Hanging the root under its own grandchild closes a cycle.
	err := svc.ValidateParent(context.Background(), root.ID, leaf.ID)
	require.ErrorIs(t, err, ledger.ErrCircularParent)

	// A sibling subtree stays legal.
	other := seedAccount(t, svc, "1200", ledger.AccountTypeAsset, "0", &root.ID)
	require.NoError(t, svc.ValidateParent(context.Background(), other.ID, mid.ID))
}

func TestValidateParentSurvivesCorruptChain(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	a := seedAccount(t, svc, "1000", ledger.AccountTypeAsset, "0", nil)
	b := seedAccount(t, svc, "1100", ledger.AccountTypeAsset, "0", &a.ID)
	c := seedAccount(t, svc, "1200", ledger.AccountTypeAsset, "0", nil)

	// Corrupt the stored chain into a pre-existing loop a -> b -> a.
	stored := repo.accounts[a.ID]
	stored.ParentID = &b.ID
	repo.accounts[a.ID] = stored

	// The visited set stops the walk instead of spinning forever.
	err := svc.ValidateParent(context.Background(), c.ID, a.ID)
	require.ErrorIs(t, err, ledger.ErrCircularParent)
}

func TestUpdateParentValidated(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	root := seedAccount(t, svc, "1000", ledger.AccountTypeAsset, "0", nil)
	child := seedAccount(t, svc, "1100", ledger.AccountTypeAsset, "0", &root.ID)

	_, err := svc.Update(context.Background(), root.ID, Patch{ParentID: &child.ID})
	require.ErrorIs(t, err, ledger.ErrCircularParent)
}

func TestUpdateTypeChangeRejectedOncePosted(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	a := seedAccount(t, svc, "1010", ledger.AccountTypeAsset, "0", nil)
	repo.addLine(a.ID, day(10), "500.00", "0")

	liability := ledger.AccountTypeLiability
	_, err := svc.Update(context.Background(), a.ID, Patch{Type: &liability})
	require.ErrorIs(t, err, ErrTypeHasLines)

	// The account keeps its original sign rule.
	current, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.AccountTypeAsset, current.Type)
}

func TestUpdateTypeChangeAllowedWithoutLines(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	a := seedAccount(t, svc, "1010", ledger.AccountTypeAsset, "0", nil)

	expense := ledger.AccountTypeExpense
	updated, err := svc.Update(context.Background(), a.ID, Patch{Type: &expense})
	require.NoError(t, err)
	require.Equal(t, ledger.AccountTypeExpense, updated.Type)

	// Restating the same type on a posted account is a no-op, not a change.
	repo.addLine(a.ID, day(10), "500.00", "0")
	_, err = svc.Update(context.Background(), a.ID, Patch{Type: &expense})
	require.NoError(t, err)
}

func TestCurrentBalanceDebitNormal(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	a := seedAccount(t, svc, "1010", ledger.AccountTypeAsset, "1000.00", nil)
	repo.addLine(a.ID, day(1), "500.00", "0")
	repo.addLine(a.ID, day(2), "0", "200.00")

	asOf := day(2)
	balance, err := svc.CurrentBalance(context.Background(), a.ID, &asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("1300.00")), "got %s", balance)

	// Cut the window before the credit.
	asOf = day(1)
	balance, err = svc.CurrentBalance(context.Background(), a.ID, &asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("1500.00")), "got %s", balance)
}

func TestCurrentBalanceCreditNormal(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	a := seedAccount(t, svc, "4010", ledger.AccountTypeRevenue, "0.00", nil)
	repo.addLine(a.ID, day(1), "0", "800.00")
	repo.addLine(a.ID, day(2), "100.00", "0")

	balance, err := svc.CurrentBalance(context.Background(), a.ID, nil)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("700.00")), "got %s", balance)
}

func TestDeleteWithoutLinesHardDeletes(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	a := seedAccount(t, svc, "1010", ledger.AccountTypeAsset, "0", nil)
	_, deactivated, err := svc.Delete(context.Background(), a.ID)
	require.NoError(t, err)
	require.False(t, deactivated)

	_, err = svc.Get(context.Background(), a.ID)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestDeleteWithLinesDeactivates(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := newTestService(repo)

	a := seedAccount(t, svc, "1010", ledger.AccountTypeAsset, "0", nil)
	repo.addLine(a.ID, day(1), "10.00", "0")

	after, deactivated, err := svc.Delete(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, deactivated)
	require.False(t, after.Active)

	// The account row survives so history stays reconstructible.
	kept, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, "1010", kept.Code)
}
