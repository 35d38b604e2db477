package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultCategoryColor is used for categories created without a color.
const DefaultCategoryColor Color = 0xFF1976D2

const (
	maxNameLength   = 100
	maxRemarkLength = 200
)

type (
	// Color is an ARGB display color, e.g. 0xFFF44336.
	Color uint32

	// AccountBook is a ledger partitioning transactions.
	AccountBook struct {
		ID          int64
		Name        string
		Description string // optional
		Color       Color  // optional, zero when unset
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Category struct {
		ID        int64
		Name      string
		Icon      string // optional icon reference
		Color     Color
		IsExpense bool // false means income
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Transaction is a single dated money movement. Amount is an unsigned
	// magnitude; the category decides whether it is income or expense.
	Transaction struct {
		ID            int64
		Amount        Money
		AccountBookID int64
		CategoryID    int64
		Remark        string // optional
		Date          time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// TransactionDetail is a transaction joined with its category.
	TransactionDetail struct {
		Transaction
		Category Category
	}
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = errors.New("name too long (max 100 characters)")
	ErrRemarkTooLong     = errors.New("remark too long (max 200 characters)")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidReference  = errors.New("invalid account book or category reference")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidPeriod     = errors.New("invalid period")
)

// IsExpense reports whether the transaction counts as an expense.
func (t TransactionDetail) IsExpense() bool {
	return t.Category.IsExpense
}

func (b AccountBook) Validate() error {
	return validateName(b.Name)
}

func (c Category) Validate() error {
	return validateName(c.Name)
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.AccountBookID <= 0 || t.CategoryID <= 0 {
		return ErrInvalidReference
	}
	if err := ValidateDate(t.Date); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Remark) > maxRemarkLength {
		return ErrRemarkTooLong
	}
	return nil
}

// ValidateDate accepts non-zero dates whose UTC year is within 1-9999.
func ValidateDate(d time.Time) error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if y := d.UTC().Year(); y < 1 || y > 9999 {
		return ErrInvalidDate
	}
	return nil
}

// NormalizeName trims surrounding whitespace from a user supplied name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

func validateName(name string) error {
	name = NormalizeName(name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}
