package sqlite

import (
	"context"
	"database/sql"
)

const accountBookColumns = `id, name, description, color, created_at, updated_at`

const categoryColumns = `id, name, icon, color, is_expense, created_at, updated_at`

const createAccountBook = `
INSERT INTO account_books (name, description, color, created_at, updated_at)
VALUES (?1, ?2, ?3, ?4, ?5)
RETURNING id`

type CreateAccountBookParams struct {
	Name        string
	Description sql.NullString
	Color       sql.NullInt64
	CreatedAt   string
	UpdatedAt   string
}

func (q *Queries) CreateAccountBook(ctx context.Context, arg CreateAccountBookParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createAccountBook,
		arg.Name, arg.Description, arg.Color, arg.CreatedAt, arg.UpdatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateAccountBook = `
UPDATE account_books
SET name = ?2, description = ?3, color = ?4, updated_at = ?5
WHERE id = ?1`

type UpdateAccountBookParams struct {
	ID          int64
	Name        string
	Description sql.NullString
	Color       sql.NullInt64
	UpdatedAt   string
}

func (q *Queries) UpdateAccountBook(ctx context.Context, arg UpdateAccountBookParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateAccountBook,
		arg.ID, arg.Name, arg.Description, arg.Color, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAccountBook = `DELETE FROM account_books WHERE id = ?1`

func (q *Queries) DeleteAccountBook(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAccountBook, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getAccountBook = `SELECT ` + accountBookColumns + ` FROM account_books WHERE id = ?1`

func (q *Queries) GetAccountBook(ctx context.Context, id int64) (AccountBook, error) {
	row := q.db.QueryRowContext(ctx, getAccountBook, id)
	var b AccountBook
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Color, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const listAccountBooks = `SELECT ` + accountBookColumns + ` FROM account_books ORDER BY created_at DESC, id DESC`

func (q *Queries) ListAccountBooks(ctx context.Context) ([]AccountBook, error) {
	rows, err := q.db.QueryContext(ctx, listAccountBooks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountBook
	for rows.Next() {
		var b AccountBook
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Color, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countAccountBooks = `SELECT COUNT(*) FROM account_books`

func (q *Queries) CountAccountBooks(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countAccountBooks)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const accountBookExists = `SELECT EXISTS(SELECT 1 FROM account_books WHERE id = ?1)`

func (q *Queries) AccountBookExists(ctx context.Context, id int64) (bool, error) {
	row := q.db.QueryRowContext(ctx, accountBookExists, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const createCategory = `
INSERT INTO categories (name, icon, color, is_expense, created_at, updated_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6)
RETURNING id`

type CreateCategoryParams struct {
	Name      string
	Icon      sql.NullString
	Color     int64
	IsExpense bool
	CreatedAt string
	UpdatedAt string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createCategory,
		arg.Name, arg.Icon, arg.Color, arg.IsExpense, arg.CreatedAt, arg.UpdatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateCategory = `
UPDATE categories
SET name = ?2, icon = ?3, color = ?4, is_expense = ?5, updated_at = ?6
WHERE id = ?1`

type UpdateCategoryParams struct {
	ID        int64
	Name      string
	Icon      sql.NullString
	Color     int64
	IsExpense bool
	UpdatedAt string
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateCategory,
		arg.ID, arg.Name, arg.Icon, arg.Color, arg.IsExpense, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE id = ?1`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?1`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.IsExpense, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories ORDER BY is_expense ASC, name ASC, id ASC`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	return q.queryCategories(ctx, listCategories)
}

const listCategoriesByType = `SELECT ` + categoryColumns + ` FROM categories WHERE is_expense = ?1 ORDER BY name ASC, id ASC`

func (q *Queries) ListCategoriesByType(ctx context.Context, isExpense bool) ([]Category, error) {
	return q.queryCategories(ctx, listCategoriesByType, isExpense)
}

func (q *Queries) queryCategories(ctx context.Context, query string, args ...interface{}) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.IsExpense, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const categoryExists = `SELECT EXISTS(SELECT 1 FROM categories WHERE name = ?1 AND is_expense = ?2)`

func (q *Queries) CategoryExists(ctx context.Context, name string, isExpense bool) (bool, error) {
	row := q.db.QueryRowContext(ctx, categoryExists, name, isExpense)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const categoryIDExists = `SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?1)`

func (q *Queries) CategoryIDExists(ctx context.Context, id int64) (bool, error) {
	row := q.db.QueryRowContext(ctx, categoryIDExists, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const createTransaction = `
INSERT INTO transactions (amount_cents, account_book_id, category_id, remark, transaction_date, created_at, updated_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7)
RETURNING id`

type CreateTransactionParams struct {
	AmountCents     int64
	AccountBookID   int64
	CategoryID      int64
	Remark          sql.NullString
	TransactionDate string
	CreatedAt       string
	UpdatedAt       string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.AmountCents, arg.AccountBookID, arg.CategoryID, arg.Remark,
		arg.TransactionDate, arg.CreatedAt, arg.UpdatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateTransaction = `
UPDATE transactions
SET amount_cents = ?2, account_book_id = ?3, category_id = ?4, remark = ?5,
    transaction_date = ?6, updated_at = ?7
WHERE id = ?1`

type UpdateTransactionParams struct {
	ID              int64
	AmountCents     int64
	AccountBookID   int64
	CategoryID      int64
	Remark          sql.NullString
	TransactionDate string
	UpdatedAt       string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.ID, arg.AmountCents, arg.AccountBookID, arg.CategoryID, arg.Remark,
		arg.TransactionDate, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?1`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransactionsByAccountBook = `DELETE FROM transactions WHERE account_book_id = ?1`

func (q *Queries) DeleteTransactionsByAccountBook(ctx context.Context, accountBookID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransactionsByAccountBook, accountBookID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransactionsByCategory = `DELETE FROM transactions WHERE category_id = ?1`

func (q *Queries) DeleteTransactionsByCategory(ctx context.Context, categoryID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransactionsByCategory, categoryID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getTransaction = `
SELECT id, amount_cents, account_book_id, category_id, remark, transaction_date, created_at, updated_at
FROM transactions WHERE id = ?1`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var t Transaction
	err := row.Scan(&t.ID, &t.AmountCents, &t.AccountBookID, &t.CategoryID, &t.Remark,
		&t.TransactionDate, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Zero/empty parameters disable the corresponding filter.
const listTransactions = `
SELECT t.id, t.amount_cents, t.account_book_id, t.category_id, t.remark, t.transaction_date, t.created_at, t.updated_at,
       c.id, c.name, c.icon, c.color, c.is_expense, c.created_at, c.updated_at
FROM transactions t
JOIN categories c ON c.id = t.category_id
WHERE (?1 = 0 OR t.account_book_id = ?1)
  AND (?2 = 0 OR t.category_id = ?2)
  AND (?3 = '' OR t.transaction_date >= ?3)
  AND (?4 = '' OR t.transaction_date <= ?4)
ORDER BY t.transaction_date DESC, t.id DESC`

type ListTransactionsParams struct {
	AccountBookID int64
	CategoryID    int64
	Start         string
	End           string
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]TransactionWithCategory, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.AccountBookID, arg.CategoryID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionWithCategory
	for rows.Next() {
		var i TransactionWithCategory
		if err := rows.Scan(
			&i.Transaction.ID, &i.Transaction.AmountCents, &i.Transaction.AccountBookID,
			&i.Transaction.CategoryID, &i.Transaction.Remark, &i.Transaction.TransactionDate,
			&i.Transaction.CreatedAt, &i.Transaction.UpdatedAt,
			&i.Category.ID, &i.Category.Name, &i.Category.Icon, &i.Category.Color,
			&i.Category.IsExpense, &i.Category.CreatedAt, &i.Category.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategoryTotals = `
SELECT c.id, c.name, c.icon, c.color, c.is_expense, c.created_at, c.updated_at,
       SUM(t.amount_cents) AS total_cents, COUNT(t.id) AS count
FROM transactions t
JOIN categories c ON c.id = t.category_id
WHERE t.account_book_id = ?1
  AND t.transaction_date BETWEEN ?2 AND ?3
  AND c.is_expense = ?4
GROUP BY c.id
ORDER BY total_cents DESC, c.name ASC, c.id ASC`

type GetCategoryTotalsParams struct {
	AccountBookID int64
	Start         string
	End           string
	IsExpense     bool
}

func (q *Queries) GetCategoryTotals(ctx context.Context, arg GetCategoryTotalsParams) ([]CategoryTotalRow, error) {
	rows, err := q.db.QueryContext(ctx, getCategoryTotals,
		arg.AccountBookID, arg.Start, arg.End, arg.IsExpense)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryTotalRow
	for rows.Next() {
		var i CategoryTotalRow
		if err := rows.Scan(
			&i.Category.ID, &i.Category.Name, &i.Category.Icon, &i.Category.Color,
			&i.Category.IsExpense, &i.Category.CreatedAt, &i.Category.UpdatedAt,
			&i.TotalCents, &i.Count,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransactionYears = `
SELECT DISTINCT CAST(strftime('%Y', transaction_date) AS INTEGER) AS year
FROM transactions
WHERE account_book_id = ?1
ORDER BY year DESC`

func (q *Queries) GetTransactionYears(ctx context.Context, accountBookID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, getTransactionYears, accountBookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var year int64
		if err := rows.Scan(&year); err != nil {
			return nil, err
		}
		items = append(items, year)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
