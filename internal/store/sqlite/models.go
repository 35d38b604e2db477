package sqlite

import "database/sql"

type AccountBook struct {
	ID          int64
	Name        string
	Description sql.NullString
	Color       sql.NullInt64
	CreatedAt   string
	UpdatedAt   string
}

type Category struct {
	ID        int64
	Name      string
	Icon      sql.NullString
	Color     int64
	IsExpense bool
	CreatedAt string
	UpdatedAt string
}

type Transaction struct {
	ID              int64
	AmountCents     int64
	AccountBookID   int64
	CategoryID      int64
	Remark          sql.NullString
	TransactionDate string
	CreatedAt       string
	UpdatedAt       string
}

type TransactionWithCategory struct {
	Transaction Transaction
	Category    Category
}

type CategoryTotalRow struct {
	Category   Category
	TotalCents int64
	Count      int64
}
