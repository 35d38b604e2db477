package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAccountBookValidate(t *testing.T) {
	cases := []struct {
		name string
		want error
	}{
		{"默认账本", nil},
		{"  travel  ", nil},
		{"", ErrEmptyName},
		{"   ", ErrEmptyName},
		{strings.Repeat("账", 101), ErrNameTooLong},
	}
	for i, tc := range cases {
		err := AccountBook{Name: tc.name}.Validate()
		if !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "餐饮", IsExpense: true}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: " "}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	good := Transaction{
		Amount:        Money{Cents: 10000},
		AccountBookID: 1,
		CategoryID:    1,
		Date:          now,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		tx   Transaction
		want error
	}{
		{Transaction{Amount: Money{Cents: 0}, AccountBookID: 1, CategoryID: 1, Date: now}, ErrInvalidAmount},
		{Transaction{Amount: Money{Cents: -100}, AccountBookID: 1, CategoryID: 1, Date: now}, ErrInvalidAmount},
		{Transaction{Amount: Money{Cents: 100}, AccountBookID: 0, CategoryID: 1, Date: now}, ErrInvalidReference},
		{Transaction{Amount: Money{Cents: 100}, AccountBookID: 1, CategoryID: 0, Date: now}, ErrInvalidReference},
		{Transaction{Amount: Money{Cents: 100}, AccountBookID: 1, CategoryID: 1}, ErrInvalidDate},
		{Transaction{Amount: Money{Cents: 100}, AccountBookID: 1, CategoryID: 1, Date: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}, ErrInvalidDate},
		{Transaction{Amount: Money{Cents: 100}, AccountBookID: 1, CategoryID: 1, Date: time.Date(0, 12, 31, 0, 0, 0, 0, time.UTC)}, ErrInvalidDate},
		{Transaction{Amount: Money{Cents: 100}, AccountBookID: 1, CategoryID: 1, Date: time.Date(-5, 6, 1, 0, 0, 0, 0, time.UTC)}, ErrInvalidDate},
		{Transaction{Amount: Money{Cents: 100}, AccountBookID: 1, CategoryID: 1, Date: now, Remark: strings.Repeat("x", 201)}, ErrRemarkTooLong},
	}
	for i, tc := range bads {
		if err := tc.tx.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}

	// the year is taken in UTC
	edge := time.Date(9999, 12, 31, 23, 0, 0, 0, time.FixedZone("UTC-2", -2*3600))
	if err := ValidateDate(edge); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for %v, got %v", edge, err)
	}
	if err := ValidateDate(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)); err != nil {
		t.Fatalf("expected last valid instant to pass, got %v", err)
	}
	if err := ValidateDate(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Hour)); err != nil {
		t.Fatalf("expected year 1 to pass, got %v", err)
	}
}
