// Package repository wraps the store with one façade per entity and push
// based live views that re-emit a full snapshot after every write to a
// table they read from.
package repository

import (
	"context"
	"slices"
	"sync"

	applog "dailymoney/internal/log"
)

// Table names a persisted table for change tracking.
type Table string

const (
	TableAccountBooks Table = "account_books"
	TableCategories   Table = "categories"
	TableTransactions Table = "transactions"
)

// ChangeHook is called after a write commits, with the tables it touched.
type ChangeHook func(ctx context.Context, tables []Table)

type subscriber struct {
	tables []Table
	dirty  chan struct{}
}

// Tracker fans table invalidations out to live views and change hooks. One
// Tracker is shared by all repositories over the same store.
type Tracker struct {
	mu    sync.Mutex
	next  int
	subs  map[int]*subscriber
	hooks []ChangeHook
}

func NewTracker() *Tracker {
	return &Tracker{subs: make(map[int]*subscriber)}
}

// OnChange registers a hook run synchronously by Notify.
func (t *Tracker) OnChange(hook ChangeHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

// Notify marks tables as changed. Hooks run before views are signalled so
// that caches are purged before anyone re-reads.
func (t *Tracker) Notify(ctx context.Context, tables ...Table) {
	t.mu.Lock()
	hooks := slices.Clone(t.hooks)
	t.mu.Unlock()

	for _, h := range hooks {
		h(ctx, tables)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.subs {
		if !overlaps(s.tables, tables) {
			continue
		}
		// capacity 1: pending signals coalesce
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	}
}

func (t *Tracker) subscribe(tables ...Table) (<-chan struct{}, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	s := &subscriber{tables: tables, dirty: make(chan struct{}, 1)}
	t.subs[id] = s
	return s.dirty, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Subscribers returns the number of live views currently attached.
func (t *Tracker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func overlaps(a, b []Table) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

// watch starts a live view that runs load now and again after every change
// to tables. A reader that falls behind receives only the newest snapshot.
// The returned channel is closed when ctx is done.
func watch[T any](ctx context.Context, t *Tracker, name string, load func(context.Context) (T, error), tables ...Table) <-chan T {
	out := make(chan T)
	// subscribe before the first load so no write is missed
	dirty, unsubscribe := t.subscribe(tables...)

	go func() {
		defer close(out)
		defer unsubscribe()

		var (
			snapshot T
			pending  bool
		)
		reload := func() {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					applog.LogError(ctx, "Live view query failed", err, applog.ErrorTypeDatabase, applog.OpLoad, applog.LogFields{"view": name})
				}
				return
			}
			snapshot, pending = v, true
		}

		reload()
		for {
			var send chan<- T
			if pending {
				send = out
			}
			select {
			case send <- snapshot:
				pending = false
			case <-dirty:
				reload()
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
