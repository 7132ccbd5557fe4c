package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/platform/db"
)

// Repository persists ledger entities in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries carries the SQL shared between pool-backed reads and transactional
// writes.
type queries struct {
	db dbtx
}

type txRepository struct {
	queries
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{queries: queries{db: tx}})
	})
}

// GetTransaction fetches one flat entry outside a transaction.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (LedgerLine, error) {
	return queries{db: r.pool}.GetTransaction(ctx, id)
}

// GetJournal fetches one journal entry with lines outside a transaction.
func (r *Repository) GetJournal(ctx context.Context, id int64) (JournalEntry, error) {
	return queries{db: r.pool}.GetJournal(ctx, id)
}

// ListEntries returns flat entries matching the query and the total count.
func (r *Repository) ListEntries(ctx context.Context, q EntryQuery) ([]LedgerLine, int, error) {
	return queries{db: r.pool}.ListEntries(ctx, q)
}

// ListJournals returns journal entries matching the query and the total count.
func (r *Repository) ListJournals(ctx context.Context, q EntryQuery) ([]JournalEntry, int, error) {
	return queries{db: r.pool}.ListJournals(ctx, q)
}

func (q queries) GetAccountForUpdate(ctx context.Context, id int64) (AccountRef, error) {
	var ref AccountRef
	err := q.db.QueryRow(ctx, `SELECT id, code, name, type, opening_balance, is_active FROM accounts WHERE id=$1 FOR UPDATE`, id).
		Scan(&ref.ID, &ref.Code, &ref.Name, &ref.Type, &ref.OpeningBalance, &ref.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRef{}, fmt.Errorf("%w: id %d", ErrAccountNotFound, id)
		}
		return AccountRef{}, err
	}
	return ref, nil
}

func (q queries) GetAccountRefs(ctx context.Context, ids []int64) (map[int64]AccountRef, error) {
	rows, err := q.db.Query(ctx, `SELECT id, code, name, type, opening_balance, is_active FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := make(map[int64]AccountRef, len(ids))
	for rows.Next() {
		var ref AccountRef
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.Name, &ref.Type, &ref.OpeningBalance, &ref.Active); err != nil {
			return nil, err
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

func (q queries) InsertTransaction(ctx context.Context, line LedgerLine) (LedgerLine, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO transactions (date, account_id, customer_id, employee_id, description, reference_number, debit_amount, credit_amount, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		line.Date, line.AccountID, line.CustomerID, line.EmployeeID, line.Description, nullString(line.Reference), line.Debit, line.Credit, line.CreatedBy)
	inserted := line
	inserted.Source = SourceTransaction
	if err := row.Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt); err != nil {
		return LedgerLine{}, err
	}
	return inserted, nil
}

func (q queries) GetTransaction(ctx context.Context, id int64) (LedgerLine, error) {
	var line LedgerLine
	var reference pgtype.Text
	err := q.db.QueryRow(ctx, `SELECT id, date, account_id, customer_id, employee_id, description, reference_number, debit_amount, credit_amount, running_balance, created_by, created_at, updated_at
FROM transactions WHERE id=$1`, id).
		Scan(&line.ID, &line.Date, &line.AccountID, &line.CustomerID, &line.EmployeeID, &line.Description, &reference, &line.Debit, &line.Credit, &line.RunningBalance, &line.CreatedBy, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerLine{}, ErrEntryNotFound
		}
		return LedgerLine{}, err
	}
	line.Source = SourceTransaction
	line.Reference = reference.String
	return line, nil
}

func (q queries) UpdateTransaction(ctx context.Context, id int64, patch EntryPatch) error {
	query := "UPDATE transactions SET updated_at = NOW()"
	var args []any
	argPos := 1

	set := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}
	if patch.Date != nil {
		set("date", *patch.Date)
	}
	if patch.AccountID != nil {
		set("account_id", *patch.AccountID)
	}
	if patch.CustomerID != nil {
		set("customer_id", *patch.CustomerID)
	}
	if patch.EmployeeID != nil {
		set("employee_id", *patch.EmployeeID)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Debit != nil {
		set("debit_amount", *patch.Debit)
	}
	if patch.Credit != nil {
		set("credit_amount", *patch.Credit)
	}
	if patch.Reference != nil {
		set("reference_number", nullString(*patch.Reference))
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	cmd, err := q.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (q queries) DeleteTransaction(ctx context.Context, id int64) error {
	cmd, err := q.db.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (q queries) InsertJournal(ctx context.Context, entry JournalEntry, lines []LineInput) (JournalEntry, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, description, reference_number, customer_id, employee_id, total_debit, total_credit, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		entry.Date, entry.Description, nullString(entry.Reference), entry.CustomerID, entry.EmployeeID, entry.TotalDebit, entry.TotalCredit, entry.CreatedBy)
	inserted := entry
	if err := row.Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	for _, line := range lines {
		if _, err := q.db.Exec(ctx, `INSERT INTO journal_entry_items (journal_entry_id, account_id, debit_amount, credit_amount, description)
VALUES ($1,$2,$3,$4,$5)`, inserted.ID, line.AccountID, line.Debit, line.Credit, line.Description); err != nil {
			return JournalEntry{}, err
		}
	}
	return inserted, nil
}

func (q queries) GetJournal(ctx context.Context, id int64) (JournalEntry, error) {
	var entry JournalEntry
	var reference pgtype.Text
	err := q.db.QueryRow(ctx, `SELECT id, entry_date, description, reference_number, customer_id, employee_id, total_debit, total_credit, created_by, created_at, updated_at
FROM journal_entries WHERE id=$1`, id).
		Scan(&entry.ID, &entry.Date, &entry.Description, &reference, &entry.CustomerID, &entry.EmployeeID, &entry.TotalDebit, &entry.TotalCredit, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	entry.Reference = reference.String
	rows, err := q.db.Query(ctx, `SELECT id, journal_entry_id, account_id, debit_amount, credit_amount, description, running_balance, created_at, updated_at
FROM journal_entry_items WHERE journal_entry_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line := LedgerLine{Source: SourceJournal, Date: entry.Date, Reference: entry.Reference}
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.Description, &line.RunningBalance, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (q queries) UpdateJournalHeader(ctx context.Context, id int64, patch JournalPatch) error {
	query := "UPDATE journal_entries SET updated_at = NOW()"
	var args []any
	argPos := 1

	set := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}
	if patch.Date != nil {
		set("entry_date", *patch.Date)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Reference != nil {
		set("reference_number", nullString(*patch.Reference))
	}
	if patch.CustomerID != nil {
		set("customer_id", *patch.CustomerID)
	}
	if patch.EmployeeID != nil {
		set("employee_id", *patch.EmployeeID)
	}
	if patch.Lines != nil {
		var debit, credit decimal.Decimal
		for _, line := range patch.Lines {
			debit = debit.Add(line.Debit)
			credit = credit.Add(line.Credit)
		}
		set("total_debit", debit)
		set("total_credit", credit)
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	cmd, err := q.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (q queries) ReplaceJournalItems(ctx context.Context, journalID int64, lines []LineInput) ([]LedgerLine, error) {
	if _, err := q.db.Exec(ctx, `DELETE FROM journal_entry_items WHERE journal_entry_id=$1`, journalID); err != nil {
		return nil, err
	}
	out := make([]LedgerLine, 0, len(lines))
	for _, line := range lines {
		var id int64
		err := q.db.QueryRow(ctx, `INSERT INTO journal_entry_items (journal_entry_id, account_id, debit_amount, credit_amount, description)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, journalID, line.AccountID, line.Debit, line.Credit, line.Description).Scan(&id)
		if err != nil {
			return nil, err
		}
		out = append(out, LedgerLine{
			ID:          id,
			Source:      SourceJournal,
			JournalID:   &journalID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out, nil
}

func (q queries) DeleteJournal(ctx context.Context, id int64) error {
	cmd, err := q.db.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

// unifiedLines merges both entry shapes into one stream; ids come from one
// sequence, so (date, id) ordering is total.
const unifiedLines = `
SELECT t.id, 'transaction' AS source, t.date AS line_date, t.account_id, t.debit_amount, t.credit_amount
FROM transactions t
WHERE t.account_id = $1
UNION ALL
SELECT i.id, 'journal' AS source, e.entry_date AS line_date, i.account_id, i.debit_amount, i.credit_amount
FROM journal_entry_items i
JOIN journal_entries e ON e.id = i.journal_entry_id
WHERE i.account_id = $1`

func (q queries) SumAccountActivityBefore(ctx context.Context, accountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0)
FROM (`+unifiedLines+`) lines WHERE line_date < $2`, accountID, before).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (q queries) ListAccountLinesFrom(ctx context.Context, accountID int64, from time.Time) ([]LedgerLine, error) {
	rows, err := q.db.Query(ctx, `SELECT id, source, line_date, account_id, debit_amount, credit_amount
FROM (`+unifiedLines+`) lines WHERE line_date >= $2 ORDER BY line_date ASC, id ASC`, accountID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerLine
	for rows.Next() {
		var line LedgerLine
		if err := rows.Scan(&line.ID, &line.Source, &line.Date, &line.AccountID, &line.Debit, &line.Credit); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (q queries) SetRunningBalance(ctx context.Context, source EntrySource, id int64, balance decimal.Decimal) error {
	table := "transactions"
	if source == SourceJournal {
		table = "journal_entry_items"
	}
	cmd, err := q.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET running_balance=$2, updated_at=NOW() WHERE id=$1`, table), id, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (q queries) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM transactions WHERE reference_number = $1
UNION
SELECT 1 FROM journal_entries WHERE reference_number = $1)`, reference).Scan(&exists)
	return exists, err
}

func (q queries) ListEntries(ctx context.Context, query EntryQuery) ([]LedgerLine, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	add := func(cond string, value any) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, value)
		argPos++
	}
	if query.AccountID != nil {
		add("account_id = $%d", *query.AccountID)
	}
	if query.CustomerID != nil {
		add("customer_id = $%d", *query.CustomerID)
	}
	if query.EmployeeID != nil {
		add("employee_id = $%d", *query.EmployeeID)
	}
	if query.DateFrom != nil {
		add("date >= $%d", *query.DateFrom)
	}
	if query.DateTo != nil {
		add("date <= $%d", *query.DateTo)
	}
	if query.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(description ILIKE $%d OR reference_number ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+query.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	var total int
	if err := q.db.QueryRow(ctx, "SELECT COUNT(*) FROM transactions "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortBy := SortByDate
	switch query.SortBy {
	case SortByDate, SortByDebit, SortByCredit, SortByReference, SortByCreatedAt:
		sortBy = query.SortBy
	}
	direction := "ASC"
	if query.SortDesc {
		direction = "DESC"
	}
	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sql := fmt.Sprintf(`SELECT id, date, account_id, customer_id, employee_id, description, reference_number, debit_amount, credit_amount, running_balance, created_by, created_at, updated_at
FROM transactions %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`, whereClause, sortBy, direction, direction, argPos, argPos+1)
	args = append(args, limit, query.Offset)

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var lines []LedgerLine
	for rows.Next() {
		var line LedgerLine
		var reference pgtype.Text
		if err := rows.Scan(&line.ID, &line.Date, &line.AccountID, &line.CustomerID, &line.EmployeeID, &line.Description, &reference, &line.Debit, &line.Credit, &line.RunningBalance, &line.CreatedBy, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, 0, err
		}
		line.Source = SourceTransaction
		line.Reference = reference.String
		lines = append(lines, line)
	}
	return lines, total, rows.Err()
}

func (q queries) ListJournals(ctx context.Context, query EntryQuery) ([]JournalEntry, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	add := func(cond string, value any) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, value)
		argPos++
	}
	if query.AccountID != nil {
		add("EXISTS (SELECT 1 FROM journal_entry_items i WHERE i.journal_entry_id = journal_entries.id AND i.account_id = $%d)", *query.AccountID)
	}
	if query.CustomerID != nil {
		add("customer_id = $%d", *query.CustomerID)
	}
	if query.EmployeeID != nil {
		add("employee_id = $%d", *query.EmployeeID)
	}
	if query.DateFrom != nil {
		add("entry_date >= $%d", *query.DateFrom)
	}
	if query.DateTo != nil {
		add("entry_date <= $%d", *query.DateTo)
	}
	if query.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(description ILIKE $%d OR reference_number ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+query.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	var total int
	if err := q.db.QueryRow(ctx, "SELECT COUNT(*) FROM journal_entries "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	direction := "ASC"
	if query.SortDesc {
		direction = "DESC"
	}
	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sql := fmt.Sprintf(`SELECT id, entry_date, description, reference_number, customer_id, employee_id, total_debit, total_credit, created_by, created_at, updated_at
FROM journal_entries %s ORDER BY entry_date %s, id %s LIMIT $%d OFFSET $%d`, whereClause, direction, direction, argPos, argPos+1)
	args = append(args, limit, query.Offset)

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var entry JournalEntry
		var reference pgtype.Text
		if err := rows.Scan(&entry.ID, &entry.Date, &entry.Description, &reference, &entry.CustomerID, &entry.EmployeeID, &entry.TotalDebit, &entry.TotalCredit, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, 0, err
		}
		entry.Reference = reference.String
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
