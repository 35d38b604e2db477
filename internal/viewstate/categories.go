package viewstate

import (
	"context"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
	"dailymoney/internal/repository"
)

type CategoriesState struct {
	Expense []core.Category
	Income  []core.Category
	Status
}

// Categories tracks the expense and income category lists.
type Categories struct {
	repo   *repository.CategoryRepository
	logger *applog.Logger
	h      *holder[CategoriesState]
}

func NewCategories(repo *repository.CategoryRepository, logger *applog.Logger) *Categories {
	return &Categories{
		repo:   repo,
		logger: logger.WithComponent(applog.ComponentViewState).With("coordinator", "categories"),
		h:      newHolder(CategoriesState{}, func(s *CategoriesState) *Status { return &s.Status }),
	}
}

func (c *Categories) State() CategoriesState { return c.h.get() }

func (c *Categories) Changes(ctx context.Context) <-chan CategoriesState { return c.h.changes(ctx) }

// Start follows both category lists until ctx is done.
func (c *Categories) Start(ctx context.Context) {
	expense := c.repo.WatchByType(ctx, true)
	income := c.repo.WatchByType(ctx, false)
	go func() {
		for list := range expense {
			c.h.update(func(s *CategoriesState) { s.Expense = list })
		}
	}()
	go func() {
		for list := range income {
			c.h.update(func(s *CategoriesState) { s.Income = list })
		}
	}()
}

// Create adds a category. A name already used by a category of the same type
// is rejected before the store is touched.
func (c *Categories) Create(ctx context.Context, name string, color core.Color, isExpense bool) (int64, error) {
	cat := core.Category{Name: core.NormalizeName(name), Color: color, IsExpense: isExpense}
	if err := cat.Validate(); err != nil {
		c.h.fail(Message(MsgCreateCategoryFailed, err))
		return 0, err
	}
	var id int64
	err := c.h.run(ctx, c.logger, applog.OpCreate, MsgCreateCategoryFailed, func(ctx context.Context) error {
		exists, err := c.repo.Exists(ctx, cat.Name, cat.IsExpense)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrDuplicateCategory
		}
		id, err = c.repo.Create(ctx, cat)
		return err
	})
	return id, err
}

func (c *Categories) Update(ctx context.Context, cat core.Category) error {
	cat.Name = core.NormalizeName(cat.Name)
	if err := cat.Validate(); err != nil {
		c.h.fail(Message(MsgUpdateCategoryFailed, err))
		return err
	}
	return c.h.run(ctx, c.logger, applog.OpUpdate, MsgUpdateCategoryFailed, func(ctx context.Context) error {
		return c.repo.Update(ctx, cat)
	})
}

// Delete removes the category and its transactions.
func (c *Categories) Delete(ctx context.Context, id int64) error {
	return c.h.run(ctx, c.logger, applog.OpDelete, MsgDeleteCategoryFailed, func(ctx context.Context) error {
		return c.repo.Delete(ctx, id)
	})
}

// Get looks up one category. A failed lookup sets the error message and
// returns nil.
func (c *Categories) Get(ctx context.Context, id int64) *core.Category {
	cat, err := c.repo.Get(ctx, id)
	if err != nil {
		c.logger.WarnContext(ctx, "Category lookup failed", applog.FieldCategoryID, id, applog.FieldError, err.Error())
		c.h.update(func(s *CategoriesState) { s.Error = MsgGetCategoryFailed })
		return nil
	}
	return cat
}
