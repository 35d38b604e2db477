package viewstate

import (
	"context"
	"slices"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/repository"
)

type AccountBooksState struct {
	Books []core.AccountBook
	// SelectedID is the current ledger; 0 when there is none.
	SelectedID int64
	Status
}

// Selected returns the selected book, or nil.
func (s AccountBooksState) Selected() *core.AccountBook {
	i := slices.IndexFunc(s.Books, func(b core.AccountBook) bool { return b.ID == s.SelectedID })
	if i < 0 {
		return nil
	}
	b := s.Books[i]
	return &b
}

// AccountBooks tracks the list of ledgers and which one is selected.
type AccountBooks struct {
	repo   *repository.AccountBookRepository
	logger *applog.Logger
	h      *holder[AccountBooksState]
}

func NewAccountBooks(repo *repository.AccountBookRepository, logger *applog.Logger) *AccountBooks {
	return &AccountBooks{
		repo:   repo,
		logger: logger.WithComponent(applog.ComponentViewState).With("coordinator", "account_books"),
		h:      newHolder(AccountBooksState{}, func(s *AccountBooksState) *Status { return &s.Status }),
	}
}

func (c *AccountBooks) State() AccountBooksState { return c.h.get() }

func (c *AccountBooks) Changes(ctx context.Context) <-chan AccountBooksState { return c.h.changes(ctx) }

// Start follows the book list until ctx is done. The newest book is selected
// when nothing (or a deleted book) is selected.
func (c *AccountBooks) Start(ctx context.Context) {
	books := c.repo.WatchAll(ctx)
	go func() {
		for list := range books {
			c.h.update(func(s *AccountBooksState) {
				s.Books = list
				if !slices.ContainsFunc(list, func(b core.AccountBook) bool { return b.ID == s.SelectedID }) {
					s.SelectedID = 0
					if len(list) > 0 {
						s.SelectedID = list[0].ID
					}
				}
			})
		}
	}()
}

// LoadDefault selects the newest book without waiting for the live view.
func (c *AccountBooks) LoadDefault(ctx context.Context) error {
	return c.h.run(ctx, c.logger, applog.OpLoad, MsgLoadDefaultBookFailed, func(ctx context.Context) error {
		first, err := c.repo.First(ctx)
		if err != nil {
			return err
		}
		if first == nil {
			return core.ErrNotFound
		}
		c.h.update(func(s *AccountBooksState) { s.SelectedID = first.ID })
		return nil
	})
}

// Select makes id the current ledger.
func (c *AccountBooks) Select(id int64) {
	c.h.update(func(s *AccountBooksState) { s.SelectedID = id })
}

func (c *AccountBooks) Create(ctx context.Context, name, description string, color core.Color) (int64, error) {
	b := core.AccountBook{Name: core.NormalizeName(name), Description: description, Color: color}
	if err := b.Validate(); err != nil {
		c.h.fail(Message(MsgCreateAccountBookFailed, err))
		return 0, err
	}
	var id int64
	err := c.h.run(ctx, c.logger, applog.OpCreate, MsgCreateAccountBookFailed, func(ctx context.Context) error {
		var err error
		id, err = c.repo.Create(ctx, b)
		return err
	})
	return id, err
}

func (c *AccountBooks) Update(ctx context.Context, b core.AccountBook) error {
	b.Name = core.NormalizeName(b.Name)
	if err := b.Validate(); err != nil {
		c.h.fail(Message(MsgUpdateAccountBookFailed, err))
		return err
	}
	return c.h.run(ctx, c.logger, applog.OpUpdate, MsgUpdateAccountBookFailed, func(ctx context.Context) error {
		return c.repo.Update(ctx, b)
	})
}

// Delete removes the book and its transactions.
func (c *AccountBooks) Delete(ctx context.Context, id int64) error {
	return c.h.run(ctx, c.logger, applog.OpDelete, MsgDeleteAccountBookFailed, func(ctx context.Context) error {
		return c.repo.Delete(ctx, id)
	})
}
