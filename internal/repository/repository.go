package repository

import "dailymoney/internal/store"

// Repositories groups the façades over one store. They share a Tracker so a
// cascade in one table refreshes views of another.
type Repositories struct {
	Tracker      *Tracker
	AccountBooks *AccountBookRepository
	Categories   *CategoryRepository
	Transactions *TransactionRepository
}

func New(s store.Store) *Repositories {
	t := NewTracker()
	return &Repositories{
		Tracker:      t,
		AccountBooks: NewAccountBookRepository(s, t),
		Categories:   NewCategoryRepository(s, t),
		Transactions: NewTransactionRepository(s, t),
	}
}
