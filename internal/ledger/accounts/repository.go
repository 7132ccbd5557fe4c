package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openbooks/openbooks/internal/ledger"
)

// Repository persists accounts in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, code, name, type, parent_id, opening_balance, description, is_active, created_by, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.OpeningBalance, &a.Description, &a.Active, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, opening_balance, description, is_active, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+accountColumns,
		a.Code, a.Name, a.Type, a.ParentID, a.OpeningBalance, a.Description, a.Active, a.CreatedBy)
	inserted, err := scanAccount(row)
	if err != nil {
		return Account{}, mapPgError(err)
	}
	return inserted, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: id %d", ledger.ErrAccountNotFound, id)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *Repository) Update(ctx context.Context, id int64, patch Patch) error {
	query := "UPDATE accounts SET updated_at = NOW()"
	var args []any
	argPos := 1

	set := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}
	if patch.Code != nil {
		set("code", *patch.Code)
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Type != nil {
		set("type", *patch.Type)
	}
	if patch.ClearParent {
		query += ", parent_id = NULL"
	} else if patch.ParentID != nil {
		set("parent_id", *patch.ParentID)
	}
	if patch.OpeningBalance != nil {
		set("opening_balance", *patch.OpeningBalance)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Active != nil {
		set("is_active", *patch.Active)
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ledger.ErrAccountNotFound, id)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ledger.ErrAccountNotFound, id)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, q ListQuery) ([]Account, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	add := func(cond string, value any) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, value)
		argPos++
	}
	if q.Type != nil {
		add("type = $%d", *q.Type)
	}
	if q.Active != nil {
		add("is_active = $%d", *q.Active)
	}
	if q.ParentID != nil {
		add("parent_id = $%d", *q.ParentID)
	}
	if q.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+q.Search+"%")
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sql := fmt.Sprintf("SELECT "+accountColumns+" FROM accounts %s ORDER BY code ASC LIMIT $%d OFFSET $%d", whereClause, argPos, argPos+1)
	args = append(args, limit, q.Offset)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// HasLines reports whether any entry in either shape references the account.
func (r *Repository) HasLines(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM transactions WHERE account_id = $1
UNION
SELECT 1 FROM journal_entry_items WHERE account_id = $1)`, accountID).Scan(&exists)
	return exists, err
}

// SumActivityThrough totals debit and credit movements dated on or before
// asOf; a nil asOf covers the whole history.
func (r *Repository) SumActivityThrough(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	cutoff := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	if asOf != nil {
		cutoff = *asOf
	}
	var debit, credit decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0) FROM (
SELECT t.debit_amount, t.credit_amount FROM transactions t WHERE t.account_id = $1 AND t.date <= $2
UNION ALL
SELECT i.debit_amount, i.credit_amount FROM journal_entry_items i
JOIN journal_entries e ON e.id = i.journal_entry_id
WHERE i.account_id = $1 AND e.entry_date <= $2) lines`, accountID, cutoff).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ledger.ErrDuplicateCode
	}
	return err
}
