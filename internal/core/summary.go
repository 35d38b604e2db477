package core

// CategoryTotal is a grouped sum of transactions for one category.
type CategoryTotal struct {
	Category Category
	Total    Money
	Count    int
}

// CategoryStatistics is a category total with its share of all categories of
// the same type in the period.
type CategoryStatistics struct {
	Category   Category
	Total      Money
	Percentage float64 // 0-100
	Count      int
}

// PeriodStatistics summarizes a calendar year (Month == 0) or a single month.
type PeriodStatistics struct {
	Year          int
	Month         int
	TotalIncome   Money
	TotalExpense  Money
	CategoryStats []CategoryStatistics // expense stats first, then income
}

// MonthPoint is one month of a monthly series.
type MonthPoint struct {
	Month int // 1-12
	Label string
	Total Money
}

// MonthlySeries holds the expense and income totals of every month of a year.
// Mock is set when the values are illustrative fallback data.
type MonthlySeries struct {
	Year         int
	Expense      []MonthPoint
	Income       []MonthPoint
	TotalExpense Money
	TotalIncome  Money
	Mock         bool
}

// IsMonth reports whether the statistics cover a single month.
func (p PeriodStatistics) IsMonth() bool {
	return p.Month != 0
}
