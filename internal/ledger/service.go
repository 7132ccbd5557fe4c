package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/shared"
)

// RepositoryPort abstracts the ledger entry store.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (LedgerLine, error)
	GetJournal(ctx context.Context, id int64) (JournalEntry, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]LedgerLine, int, error)
	ListJournals(ctx context.Context, q EntryQuery) ([]JournalEntry, int, error)
}

// TxRepository exposes transactional operations over both entry shapes.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, id int64) (AccountRef, error)
	GetAccountRefs(ctx context.Context, ids []int64) (map[int64]AccountRef, error)
	InsertTransaction(ctx context.Context, line LedgerLine) (LedgerLine, error)
	GetTransaction(ctx context.Context, id int64) (LedgerLine, error)
	UpdateTransaction(ctx context.Context, id int64, patch EntryPatch) error
	DeleteTransaction(ctx context.Context, id int64) error
	InsertJournal(ctx context.Context, entry JournalEntry, lines []LineInput) (JournalEntry, error)
	GetJournal(ctx context.Context, id int64) (JournalEntry, error)
	UpdateJournalHeader(ctx context.Context, id int64, patch JournalPatch) error
	ReplaceJournalItems(ctx context.Context, journalID int64, lines []LineInput) ([]LedgerLine, error)
	DeleteJournal(ctx context.Context, id int64) error
	SumAccountActivityBefore(ctx context.Context, accountID int64, before time.Time) (debit, credit decimal.Decimal, err error)
	ListAccountLinesFrom(ctx context.Context, accountID int64, from time.Time) ([]LedgerLine, error)
	SetRunningBalance(ctx context.Context, source EntrySource, id int64, balance decimal.Decimal) error
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// AuditPort records ledger events. Implementations must be non-blocking;
// recording failures never fail the mutation.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates every ledger mutation: validation, persistence and
// balance recalculation run inside one transaction; if any step fails the
// whole unit is rolled back and no partial state is visible.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	recalc *Recalculator
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the ledger service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, recalc *Recalculator) *Service {
	if recalc == nil {
		recalc = NewRecalculator()
	}
	return &Service{repo: repo, audit: audit, recalc: recalc, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateEntryInput groups the fields for posting a flat entry.
type CreateEntryInput struct {
	AccountID   int64
	Date        time.Time
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	Reference   string
	CustomerID  *int64
	EmployeeID  *int64
	CreatedBy   int64
}

// CreateJournalInput groups the fields for posting a journal entry.
type CreateJournalInput struct {
	Date        time.Time
	Description string
	Reference   string
	CustomerID  *int64
	EmployeeID  *int64
	CreatedBy   int64
	Lines       []LineInput
}

// EntryPatch lists the mutable fields of a flat entry; nil means unchanged.
type EntryPatch struct {
	Date        *time.Time
	AccountID   *int64
	CustomerID  *int64
	EmployeeID  *int64
	Description *string
	Debit       *decimal.Decimal
	Credit      *decimal.Decimal
	Reference   *string
}

// JournalPatch lists the mutable fields of a journal entry. A non-nil Lines
// slice replaces every line item after re-validation.
type JournalPatch struct {
	Date        *time.Time
	Description *string
	Reference   *string
	CustomerID  *int64
	EmployeeID  *int64
	Lines       []LineInput
}

// JournalValidationError aggregates every validation failure collected for a
// rejected journal posting.
type JournalValidationError struct {
	Result JournalValidation
}

func (e *JournalValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Errors))
	for _, err := range e.Result.Errors {
		msgs = append(msgs, err.Error())
	}
	return "ledger: journal entry rejected: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors for errors.Is matching.
func (e *JournalValidationError) Unwrap() []error { return e.Result.Errors }

// CreateEntry validates and persists a flat entry, then recomputes running
// balances for the account from the entry date forward.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput) (LedgerLine, error) {
	if err := ValidateLine(in.Debit, in.Credit); err != nil {
		return LedgerLine{}, err
	}
	var created LedgerLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acct, err := tx.GetAccountForUpdate(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if !acct.Active {
			return fmt.Errorf("%w: %s", ErrAccountInactive, acct.Code)
		}
		reference := in.Reference
		if reference == "" {
			reference, err = s.generateReference(ctx, tx, "TRX")
			if err != nil {
				return err
			}
		}
		created, err = tx.InsertTransaction(ctx, LedgerLine{
			Source:      SourceTransaction,
			AccountID:   in.AccountID,
			CustomerID:  in.CustomerID,
			EmployeeID:  in.EmployeeID,
			Date:        in.Date,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Description: in.Description,
			Reference:   reference,
			CreatedBy:   in.CreatedBy,
		})
		if err != nil {
			return err
		}
		if _, err := s.recalc.RecalculateFrom(ctx, tx, in.AccountID, in.Date); err != nil {
			return err
		}
		created, err = tx.GetTransaction(ctx, created.ID)
		return err
	})
	if err != nil {
		return LedgerLine{}, s.classify(err)
	}
	s.record(ctx, in.CreatedBy, "entry.create", "transaction", created.ID, nil, entrySnapshot(created))
	return created, nil
}

// CreateJournalEntry validates a multi-line posting, collecting every
// problem, then persists the header and items and recomputes each affected
// account from the entry date.
func (s *Service) CreateJournalEntry(ctx context.Context, in CreateJournalInput) (JournalEntry, error) {
	var created JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accountIDs := distinctAccountIDs(in.Lines)
		accounts, err := lockAccounts(ctx, tx, accountIDs)
		if err != nil {
			return err
		}
		validation := ValidateJournalLines(in.Lines, accounts)
		if !validation.Valid {
			return &JournalValidationError{Result: validation}
		}
		reference := in.Reference
		if reference == "" {
			reference, err = s.generateReference(ctx, tx, "JRN")
			if err != nil {
				return err
			}
		}
		created, err = tx.InsertJournal(ctx, JournalEntry{
			Date:        in.Date,
			Description: in.Description,
			Reference:   reference,
			CustomerID:  in.CustomerID,
			EmployeeID:  in.EmployeeID,
			TotalDebit:  validation.TotalDebit,
			TotalCredit: validation.TotalCredit,
			CreatedBy:   in.CreatedBy,
		}, in.Lines)
		if err != nil {
			return err
		}
		for _, accountID := range accountIDs {
			if _, err := s.recalc.RecalculateFrom(ctx, tx, accountID, in.Date); err != nil {
				return err
			}
		}
		created, err = tx.GetJournal(ctx, created.ID)
		return err
	})
	if err != nil {
		return JournalEntry{}, s.classify(err)
	}
	s.record(ctx, in.CreatedBy, "journal.create", "journal_entry", created.ID, nil, journalSnapshot(created))
	return created, nil
}

// UpdateEntry patches a flat entry. When the account or date moves, running
// balances are recomputed for the old account from the old date and for the
// new account from the new date.
func (s *Service) UpdateEntry(ctx context.Context, id int64, patch EntryPatch) (LedgerLine, error) {
	var before, after LedgerLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		before = current

		newAccountID := current.AccountID
		if patch.AccountID != nil {
			newAccountID = *patch.AccountID
		}
		newDate := current.Date
		if patch.Date != nil {
			newDate = *patch.Date
		}
		debit := current.Debit
		if patch.Debit != nil {
			debit = *patch.Debit
		}
		credit := current.Credit
		if patch.Credit != nil {
			credit = *patch.Credit
		}
		if err := ValidateLine(debit, credit); err != nil {
			return err
		}

		// Lock in sorted id order so concurrent cross-account moves
		// cannot deadlock.
		lockIDs := []int64{current.AccountID}
		if newAccountID != current.AccountID {
			lockIDs = append(lockIDs, newAccountID)
		}
		accounts, err := lockAccounts(ctx, tx, lockIDs)
		if err != nil {
			return err
		}
		acct, ok := accounts[newAccountID]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrAccountNotFound, newAccountID)
		}
		if !acct.Active {
			return fmt.Errorf("%w: %s", ErrAccountInactive, acct.Code)
		}

		if err := tx.UpdateTransaction(ctx, id, patch); err != nil {
			return err
		}
		if newAccountID != current.AccountID || !newDate.Equal(current.Date) {
			if _, err := s.recalc.RecalculateFrom(ctx, tx, current.AccountID, current.Date); err != nil {
				return err
			}
		}
		if _, err := s.recalc.RecalculateFrom(ctx, tx, newAccountID, newDate); err != nil {
			return err
		}
		after, err = tx.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return LedgerLine{}, s.classify(err)
	}
	s.record(ctx, shared.PrincipalFromContext(ctx), "entry.update", "transaction", id, entrySnapshot(before), entrySnapshot(after))
	return after, nil
}

// DeleteEntry removes a flat entry and recomputes the account from the
// deleted line's date forward.
func (s *Service) DeleteEntry(ctx context.Context, id int64) error {
	var deleted LedgerLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		deleted = current
		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		_, err = s.recalc.RecalculateFrom(ctx, tx, current.AccountID, current.Date)
		return err
	})
	if err != nil {
		return s.classify(err)
	}
	s.record(ctx, shared.PrincipalFromContext(ctx), "entry.delete", "transaction", id, entrySnapshot(deleted), nil)
	return nil
}

// UpdateJournalEntry patches a journal header and, when Lines is non-nil,
// replaces every line item after re-validation. All accounts touched by the
// old or new line set are recomputed.
func (s *Service) UpdateJournalEntry(ctx context.Context, id int64, patch JournalPatch) (JournalEntry, error) {
	var before, after JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournal(ctx, id)
		if err != nil {
			return err
		}
		before = current

		newDate := current.Date
		if patch.Date != nil {
			newDate = *patch.Date
		}
		recalcFrom := minDate(current.Date, newDate)

		affected := make(map[int64]struct{})
		for _, line := range current.Lines {
			affected[line.AccountID] = struct{}{}
		}
		if patch.Lines != nil {
			for _, line := range patch.Lines {
				affected[line.AccountID] = struct{}{}
			}
		}
		accountIDs := sortedIDs(affected)
		accounts, err := lockAccounts(ctx, tx, accountIDs)
		if err != nil {
			return err
		}

		if patch.Lines != nil {
			validation := ValidateJournalLines(patch.Lines, accounts)
			if !validation.Valid {
				return &JournalValidationError{Result: validation}
			}
		}
		if err := tx.UpdateJournalHeader(ctx, id, patch); err != nil {
			return err
		}
		if patch.Lines != nil {
			if _, err := tx.ReplaceJournalItems(ctx, id, patch.Lines); err != nil {
				return err
			}
		}
		for _, accountID := range accountIDs {
			if _, err := s.recalc.RecalculateFrom(ctx, tx, accountID, recalcFrom); err != nil {
				return err
			}
		}
		after, err = tx.GetJournal(ctx, id)
		return err
	})
	if err != nil {
		return JournalEntry{}, s.classify(err)
	}
	s.record(ctx, shared.PrincipalFromContext(ctx), "journal.update", "journal_entry", id, journalSnapshot(before), journalSnapshot(after))
	return after, nil
}

// DeleteJournalEntry removes a journal with its items and recomputes every
// affected account from the entry date forward.
func (s *Service) DeleteJournalEntry(ctx context.Context, id int64) error {
	var deleted JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournal(ctx, id)
		if err != nil {
			return err
		}
		deleted = current
		affected := make(map[int64]struct{})
		for _, line := range current.Lines {
			affected[line.AccountID] = struct{}{}
		}
		accountIDs := sortedIDs(affected)
		if _, err := lockAccounts(ctx, tx, accountIDs); err != nil {
			return err
		}
		if err := tx.DeleteJournal(ctx, id); err != nil {
			return err
		}
		for _, accountID := range accountIDs {
			if _, err := s.recalc.RecalculateFrom(ctx, tx, accountID, current.Date); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.classify(err)
	}
	s.record(ctx, shared.PrincipalFromContext(ctx), "journal.delete", "journal_entry", id, journalSnapshot(deleted), nil)
	return nil
}

// Recalculate runs a standalone forward recompute for one account inside its
// own transaction. The background worker uses it to offload recomputes for
// accounts with large histories; the correctness contract is identical to the
// in-mutation path.
func (s *Service) Recalculate(ctx context.Context, accountID int64, from time.Time) (int, error) {
	var lines int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lines, err = s.recalc.RecalculateFrom(ctx, tx, accountID, from)
		return err
	})
	if err != nil {
		return 0, s.classify(err)
	}
	return lines, nil
}

// ValidateJournal runs the double-entry checks against a proposed set of
// lines without persisting anything. Callers use it to surface every problem
// in one round trip before posting.
func (s *Service) ValidateJournal(ctx context.Context, lines []LineInput) (JournalValidation, error) {
	var result JournalValidation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.GetAccountRefs(ctx, distinctAccountIDs(lines))
		if err != nil {
			return err
		}
		result = ValidateJournalLines(lines, accounts)
		return nil
	})
	if err != nil {
		return JournalValidation{}, InfrastructureError(err)
	}
	return result, nil
}

// GetEntry fetches one flat entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (LedgerLine, error) {
	line, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return LedgerLine{}, s.classify(err)
	}
	return line, nil
}

// GetJournalEntry fetches one journal entry with its lines.
func (s *Service) GetJournalEntry(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := s.repo.GetJournal(ctx, id)
	if err != nil {
		return JournalEntry{}, s.classify(err)
	}
	return entry, nil
}

// ListEntries returns flat entries matching the query plus the total count.
func (s *Service) ListEntries(ctx context.Context, q EntryQuery) ([]LedgerLine, int, error) {
	lines, total, err := s.repo.ListEntries(ctx, q)
	if err != nil {
		return nil, 0, s.classify(err)
	}
	return lines, total, nil
}

// ListJournalEntries returns journal entries matching the query plus the
// total count.
func (s *Service) ListJournalEntries(ctx context.Context, q EntryQuery) ([]JournalEntry, int, error) {
	entries, total, err := s.repo.ListJournals(ctx, q)
	if err != nil {
		return nil, 0, s.classify(err)
	}
	return entries, total, nil
}

func (s *Service) generateReference(ctx context.Context, tx TxRepository, prefix string) (string, error) {
	for {
		candidate := fmt.Sprintf("%s-%s-%s", prefix, s.now().Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
		exists, err := tx.ReferenceExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Before:   before,
		After:    after,
		At:       s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

var validationSentinels = []error{
	ErrUnbalanced,
	ErrBothAmounts,
	ErrNeitherAmount,
	ErrNegativeAmount,
	ErrTooFewLines,
	ErrAccountNotFound,
	ErrAccountInactive,
	ErrEntryNotFound,
	ErrJournalNotFound,
	ErrDuplicateCode,
}

// classify keeps validation errors as-is and folds everything else into a
// single infrastructure error so callers can tell the two apart.
func (s *Service) classify(err error) error {
	if err == nil {
		return nil
	}
	var vErr *JournalValidationError
	if errors.As(err, &vErr) {
		return err
	}
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return InfrastructureError(err)
}

func lockAccounts(ctx context.Context, tx TxRepository, ids []int64) (map[int64]AccountRef, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	accounts := make(map[int64]AccountRef, len(sorted))
	for _, id := range sorted {
		acct, err := tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				// Missing accounts are reported by validation with
				// the line index attached.
				continue
			}
			return nil, err
		}
		accounts[id] = acct
	}
	return accounts, nil
}

func distinctAccountIDs(lines []LineInput) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		seen[line.AccountID] = struct{}{}
	}
	return sortedIDs(seen)
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func minDate(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func entrySnapshot(line LedgerLine) map[string]any {
	return map[string]any{
		"id":            line.ID,
		"account_id":    line.AccountID,
		"date":          line.Date.Format("2006-01-02"),
		"debit_amount":  line.Debit.StringFixed(2),
		"credit_amount": line.Credit.StringFixed(2),
		"description":   line.Description,
		"reference":     line.Reference,
	}
}

func journalSnapshot(entry JournalEntry) map[string]any {
	lines := make([]map[string]any, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		lines = append(lines, map[string]any{
			"account_id":    line.AccountID,
			"debit_amount":  line.Debit.StringFixed(2),
			"credit_amount": line.Credit.StringFixed(2),
		})
	}
	return map[string]any{
		"id":           entry.ID,
		"date":         entry.Date.Format("2006-01-02"),
		"description":  entry.Description,
		"reference":    entry.Reference,
		"total_debit":  entry.TotalDebit.StringFixed(2),
		"total_credit": entry.TotalCredit.StringFixed(2),
		"lines":        lines,
	}
}
