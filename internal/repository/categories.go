package repository

import (
	"context"
	"errors"
	"fmt"

	"dailymoney/internal/core"
	"dailymoney/internal/store"
)

type CategoryRepository struct {
	store   store.CategoryStore
	tracker *Tracker
}

func NewCategoryRepository(s store.CategoryStore, t *Tracker) *CategoryRepository {
	return &CategoryRepository{store: s, tracker: t}
}

// WatchAll streams every category, income first, then by name.
func (r *CategoryRepository) WatchAll(ctx context.Context) <-chan []core.Category {
	return watch(ctx, r.tracker, "categories", r.store.ListCategories, TableCategories)
}

// WatchByType streams the expense or the income categories.
func (r *CategoryRepository) WatchByType(ctx context.Context, isExpense bool) <-chan []core.Category {
	load := func(ctx context.Context) ([]core.Category, error) {
		return r.store.ListCategoriesByType(ctx, isExpense)
	}
	return watch(ctx, r.tracker, "categories_by_type", load, TableCategories)
}

func (r *CategoryRepository) List(ctx context.Context) ([]core.Category, error) {
	return r.store.ListCategories(ctx)
}

func (r *CategoryRepository) ListByType(ctx context.Context, isExpense bool) ([]core.Category, error) {
	return r.store.ListCategoriesByType(ctx, isExpense)
}

// Get returns nil when the category does not exist.
func (r *CategoryRepository) Get(ctx context.Context, id int64) (*core.Category, error) {
	c, err := r.store.GetCategory(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Exists reports whether a category with the same name and type exists.
func (r *CategoryRepository) Exists(ctx context.Context, name string, isExpense bool) (bool, error) {
	return r.store.CategoryExists(ctx, core.NormalizeName(name), isExpense)
}

func (r *CategoryRepository) Create(ctx context.Context, c core.Category) (int64, error) {
	c.Name = core.NormalizeName(c.Name)
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("validate category: %w", err)
	}
	if c.Color == 0 {
		c.Color = core.DefaultCategoryColor
	}
	id, err := r.store.InsertCategory(ctx, c)
	if err != nil {
		return 0, err
	}
	r.tracker.Notify(ctx, TableCategories)
	return id, nil
}

// Update also refreshes transaction views, which carry the joined category.
func (r *CategoryRepository) Update(ctx context.Context, c core.Category) error {
	c.Name = core.NormalizeName(c.Name)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate category: %w", err)
	}
	if c.Color == 0 {
		c.Color = core.DefaultCategoryColor
	}
	if err := r.store.UpdateCategory(ctx, c); err != nil {
		return err
	}
	r.tracker.Notify(ctx, TableCategories, TableTransactions)
	return nil
}

// Delete removes the category and all of its transactions.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	if err := r.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	r.tracker.Notify(ctx, TableCategories, TableTransactions)
	return nil
}
