// Package stats turns transactions and grouped totals into the aggregates
// shown on the statistics screen. Everything here is pure; store access lives
// in services.StatisticsService.
package stats

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"dailymoney/internal/core"
)

// Entry is the part of a transaction the monthly series needs.
type Entry struct {
	Date      time.Time
	Amount    core.Money
	IsExpense bool
}

// EntriesFrom classifies transactions by their category's IsExpense flag.
func EntriesFrom(details []core.TransactionDetail) []Entry {
	entries := make([]Entry, len(details))
	for i, d := range details {
		entries[i] = Entry{Date: d.Date, Amount: d.Amount, IsExpense: d.IsExpense()}
	}
	return entries
}

// MonthLabel returns the display label of a month, e.g. "03月".
func MonthLabel(month int) string {
	return fmt.Sprintf("%02d月", month)
}

// MonthlySeries sums entries of year into twelve expense and twelve income
// points. Months without entries are zero; entries of other years are
// ignored.
func MonthlySeries(year int, entries []Entry) core.MonthlySeries {
	var expense, income [12]core.Money
	for _, e := range entries {
		d := e.Date.UTC()
		if d.Year() != year {
			continue
		}
		m := int(d.Month()) - 1
		if e.IsExpense {
			expense[m] = expense[m].Add(e.Amount.Abs())
		} else {
			income[m] = income[m].Add(e.Amount)
		}
	}
	return seriesFrom(year, expense, income)
}

func seriesFrom(year int, expense, income [12]core.Money) core.MonthlySeries {
	s := core.MonthlySeries{
		Year:    year,
		Expense: make([]core.MonthPoint, 12),
		Income:  make([]core.MonthPoint, 12),
	}
	for i := 0; i < 12; i++ {
		label := MonthLabel(i + 1)
		s.Expense[i] = core.MonthPoint{Month: i + 1, Label: label, Total: expense[i]}
		s.Income[i] = core.MonthPoint{Month: i + 1, Label: label, Total: income[i]}
		s.TotalExpense = s.TotalExpense.Add(expense[i])
		s.TotalIncome = s.TotalIncome.Add(income[i])
	}
	return s
}

var hundred = decimal.NewFromInt(100)

// CategoryBreakdown computes each row's share of the rows' sum. Rows are
// expected to be of one type. The result is ordered by total (largest
// first), then category name and ID. An empty or zero-sum input yields 0%
// for every row.
func CategoryBreakdown(rows []core.CategoryTotal) []core.CategoryStatistics {
	var sum core.Money
	for _, r := range rows {
		sum = sum.Add(r.Total.Abs())
	}

	out := make([]core.CategoryStatistics, len(rows))
	for i, r := range rows {
		total := r.Total.Abs()
		var pct float64
		if !sum.IsZero() {
			pct = total.Decimal().Div(sum.Decimal()).Mul(hundred).InexactFloat64()
		}
		out[i] = core.CategoryStatistics{
			Category:   r.Category,
			Total:      total,
			Percentage: pct,
			Count:      r.Count,
		}
	}
	slices.SortStableFunc(out, func(a, b core.CategoryStatistics) int {
		if c := cmp.Compare(b.Total.Cents, a.Total.Cents); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Category.Name, b.Category.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Category.ID, b.Category.ID)
	})
	return out
}

// Period returns the closed range covering a calendar year (month 0) or one
// month of it, in UTC. end is the last instant at the store's millisecond
// precision.
func Period(year, month int) (start, end time.Time, err error) {
	if year < 1 || year > 9999 || month < 0 || month > 12 {
		return time.Time{}, time.Time{}, fmt.Errorf("year %d month %d: %w", year, month, core.ErrInvalidPeriod)
	}
	if month == 0 {
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0).Add(-time.Millisecond), nil
	}
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Millisecond), nil
}

// Combine builds the statistics of a period from the grouped expense and
// income totals. Category stats list expense categories first.
func Combine(year, month int, expense, income []core.CategoryTotal) core.PeriodStatistics {
	ps := core.PeriodStatistics{Year: year, Month: month}
	expenseStats := CategoryBreakdown(expense)
	incomeStats := CategoryBreakdown(income)
	for _, s := range expenseStats {
		ps.TotalExpense = ps.TotalExpense.Add(s.Total)
	}
	for _, s := range incomeStats {
		ps.TotalIncome = ps.TotalIncome.Add(s.Total)
	}
	ps.CategoryStats = make([]core.CategoryStatistics, 0, len(expenseStats)+len(incomeStats))
	ps.CategoryStats = append(ps.CategoryStats, expenseStats...)
	ps.CategoryStats = append(ps.CategoryStats, incomeStats...)
	return ps
}

var (
	mockExpense = [12]int64{1500, 1800, 2200, 1900, 2500, 2800, 3000, 2700, 2400, 2600, 2900, 3200}
	mockIncome  = [12]int64{8000, 9000, 8500, 9200, 8800, 9500, 9800, 10000, 9600, 10200, 9900, 11000}
)

// MockYear returns the fixed illustrative series shown when real data
// cannot be loaded.
func MockYear(year int) core.MonthlySeries {
	var expense, income [12]core.Money
	for i := range mockExpense {
		expense[i] = core.Money{Cents: mockExpense[i] * 100}
		income[i] = core.Money{Cents: mockIncome[i] * 100}
	}
	s := seriesFrom(year, expense, income)
	s.Mock = true
	return s
}
