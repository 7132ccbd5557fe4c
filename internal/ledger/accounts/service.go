package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
	"github.com/openbooks/openbooks/internal/shared"
)

// RepositoryPort abstracts account persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, a Account) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	Update(ctx context.Context, id int64, patch Patch) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q ListQuery) ([]Account, int, error)
	HasLines(ctx context.Context, accountID int64) (bool, error)
	SumActivityThrough(ctx context.Context, accountID int64, asOf *time.Time) (debit, credit decimal.Decimal, err error)
}

// AuditPort records account events, fire-and-forget.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ErrInvalidType rejects an unknown account category.
var ErrInvalidType = errors.New("accounts: unknown account type")

// ErrTypeHasLines rejects a type change once the account has posted lines.
// Changing the type flips the balance-sign rule, which would invalidate every
// stored running balance on the account.
var ErrTypeHasLines = errors.New("accounts: cannot change type of an account with posted lines")

// Service owns chart-of-accounts rules: code uniqueness, parent acyclicity
// and the deactivate-instead-of-delete guard.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  AuditPort
}

func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

// CreateAccountInput groups the fields for a new account.
type CreateAccountInput struct {
	Code           string
	Name           string
	Type           ledger.AccountType
	ParentID       *int64
	OpeningBalance decimal.Decimal
	Description    string
	Active         bool
	CreatedBy      int64
}

func (s *Service) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if in.ParentID != nil {
		// A new account has no descendants, so only existence and
		// activation of the parent matter here.
		parent, err := s.repo.Get(ctx, *in.ParentID)
		if err != nil {
			return Account{}, err
		}
		if !parent.Active {
			return Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountInactive, parent.Code)
		}
	}
	created, err := s.repo.Insert(ctx, Account{
		Code:           in.Code,
		Name:           in.Name,
		Type:           in.Type,
		ParentID:       in.ParentID,
		OpeningBalance: in.OpeningBalance,
		Description:    in.Description,
		Active:         in.Active,
		CreatedBy:      in.CreatedBy,
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.create", created.ID, nil, snapshot(created))
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]Account, int, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Account, error) {
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return Account{}, fmt.Errorf("%w: %q", ErrInvalidType, *patch.Type)
	}
	if patch.Type != nil && *patch.Type != before.Type {
		hasLines, err := s.repo.HasLines(ctx, id)
		if err != nil {
			return Account{}, err
		}
		if hasLines {
			return Account{}, ErrTypeHasLines
		}
	}
	if patch.ParentID != nil {
		if err := s.ValidateParent(ctx, id, *patch.ParentID); err != nil {
			return Account{}, err
		}
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return Account{}, err
	}
	after, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.update", id, snapshot(before), snapshot(after))
	return after, nil
}

// Delete removes an account that has never been posted to. Once lines exist
// the account is deactivated instead, so history stays reconstructible.
// The returned account is zero-valued on a hard delete.
func (s *Service) Delete(ctx context.Context, id int64) (Account, bool, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, false, err
	}
	hasLines, err := s.repo.HasLines(ctx, id)
	if err != nil {
		return Account{}, false, err
	}
	if hasLines {
		inactive := false
		if err := s.repo.Update(ctx, id, Patch{Active: &inactive}); err != nil {
			return Account{}, false, err
		}
		after, err := s.repo.Get(ctx, id)
		if err != nil {
			return Account{}, false, err
		}
		s.record(ctx, "account.deactivate", id, snapshot(current), snapshot(after))
		return after, true, nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return Account{}, false, err
	}
	s.record(ctx, "account.delete", id, snapshot(current), nil)
	return Account{}, false, nil
}

// ValidateParent checks a parent assignment: no self-reference, parent must
// exist and be active, and the assignment must not close a cycle. The walk
// climbs from the candidate upward with a visited set, so it terminates even
// on already-corrupt chains.
func (s *Service) ValidateParent(ctx context.Context, accountID, candidateParentID int64) error {
	if candidateParentID == accountID {
		return ledger.ErrSelfParent
	}
	candidate, err := s.repo.Get(ctx, candidateParentID)
	if err != nil {
		return err
	}
	if !candidate.Active {
		return fmt.Errorf("%w: %s", ledger.ErrAccountInactive, candidate.Code)
	}

	visited := map[int64]struct{}{candidateParentID: {}}
	current := candidate
	for current.ParentID != nil {
		next := *current.ParentID
		if next == accountID {
			return ledger.ErrCircularParent
		}
		if _, seen := visited[next]; seen {
			return ledger.ErrCircularParent
		}
		visited[next] = struct{}{}
		current, err = s.repo.Get(ctx, next)
		if err != nil {
			return err
		}
	}
	return nil
}

// CurrentBalance computes the account balance as of a date (inclusive), or
// over the whole history when asOf is nil: opening balance plus sign-adjusted
// activity per the balance-sign rule.
func (s *Service) CurrentBalance(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, error) {
	acct, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	debit, credit, err := s.repo.SumActivityThrough(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.Apply(ledger.BalanceSignFor(acct.Type), acct.OpeningBalance, debit, credit), nil
}

func (s *Service) record(ctx context.Context, action string, id int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.PrincipalFromContext(ctx),
		Action:   action,
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", id),
		Before:   before,
		After:    after,
		At:       time.Now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func snapshot(a Account) map[string]any {
	m := map[string]any{
		"id":              a.ID,
		"code":            a.Code,
		"name":            a.Name,
		"type":            string(a.Type),
		"opening_balance": a.OpeningBalance.StringFixed(2),
		"is_active":       a.Active,
	}
	if a.ParentID != nil {
		m["parent_id"] = *a.ParentID
	}
	return m
}
