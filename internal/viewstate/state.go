// Package viewstate holds the screen-level state of the ledger: the latest
// repository snapshots plus a loading flag and a user-facing error message.
// Each coordinator is safe for concurrent use. Slices inside a published
// state are never modified afterwards, so a State() copy can be read freely.
package viewstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"dailymoney/internal/core"
	applog "dailymoney/internal/log"
)

// Status is embedded in every coordinator state.
type Status struct {
	Loading bool
	// Error is a short message for the user; empty when the last operation
	// succeeded.
	Error string
}

// holder keeps one state value and fans changes out to observers.
type holder[S any] struct {
	mu     sync.Mutex
	state  S
	status func(*S) *Status
	next   int
	subs   map[int]chan S
	// active counts operations in flight; Loading stays set until it is zero
	active int
}

func newHolder[S any](initial S, status func(*S) *Status) *holder[S] {
	return &holder[S]{state: initial, status: status, subs: make(map[int]chan S)}
}

func (h *holder[S]) get() S {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// update applies fn and publishes the result. Observers that have not read
// the previous value only see the newest one.
func (h *holder[S]) update(fn func(*S)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.state)
	for _, ch := range h.subs {
		select {
		case ch <- h.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- h.state
		}
	}
}

// changes streams the current state and every later one until ctx is done.
func (h *holder[S]) changes(ctx context.Context) <-chan S {
	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan S, 1)
	ch <- h.state
	h.subs[id] = ch
	h.mu.Unlock()

	out := make(chan S)
	go func() {
		defer close(out)
		defer func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		}()
		for {
			var s S
			select {
			case s = <-ch:
			case <-ctx.Done():
				return
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// run wraps a user operation: loading on and error cleared, then fn, then
// the failure message (if any) before returning. Loading goes off when the
// last overlapping operation finishes.
func (h *holder[S]) run(ctx context.Context, logger *applog.Logger, op, failure string, fn func(context.Context) error) error {
	opLogger := logger.WithOperation(op, uuid.NewString())
	started := time.Now()

	h.update(func(s *S) {
		h.active++
		st := h.status(s)
		st.Loading = true
		st.Error = ""
	})

	err := fn(applog.NewContext(ctx, opLogger))

	h.update(func(s *S) {
		h.active--
		st := h.status(s)
		st.Loading = h.active > 0
		if err != nil {
			st.Error = Message(failure, err)
		}
	})

	if err != nil {
		opLogger.WarnContext(ctx, "Operation failed",
			applog.FieldError, err.Error(),
			applog.FieldDuration, time.Since(started).Milliseconds())
	} else {
		opLogger.DebugContext(ctx, "Operation completed",
			applog.FieldDuration, time.Since(started).Milliseconds())
	}
	return err
}

// fail reports a validation failure without running anything.
func (h *holder[S]) fail(msg string) {
	h.update(func(s *S) {
		st := h.status(s)
		st.Loading = h.active > 0
		st.Error = msg
	})
}

// Messages shown to the user.
const (
	MsgCreateAccountBookFailed = "创建账本失败"
	MsgUpdateAccountBookFailed = "更新账本失败"
	MsgDeleteAccountBookFailed = "删除账本失败"
	MsgLoadDefaultBookFailed   = "加载默认账本失败"

	MsgDuplicateCategory    = "分类名称已存在"
	MsgCreateCategoryFailed = "创建分类失败"
	MsgUpdateCategoryFailed = "更新分类失败"
	MsgDeleteCategoryFailed = "删除分类失败"
	MsgGetCategoryFailed    = "获取分类失败"

	MsgAddTransactionFailed    = "添加交易记录失败"
	MsgUpdateTransactionFailed = "更新交易记录失败"
	MsgDeleteTransactionFailed = "删除交易记录失败"

	MsgLoadStatisticsFailed        = "加载统计数据失败"
	MsgLoadMonthlyStatisticsFailed = "加载月度统计数据失败"
)

var reasons = []struct {
	err    error
	reason string
}{
	{core.ErrEmptyName, "名称不能为空"},
	{core.ErrNameTooLong, "名称过长"},
	{core.ErrRemarkTooLong, "备注过长"},
	{core.ErrInvalidAmount, "金额无效"},
	{core.ErrInvalidReference, "账本或分类不存在"},
	{core.ErrInvalidDate, "日期无效"},
	{core.ErrInvalidPeriod, "统计周期无效"},
	{core.ErrNotFound, "记录不存在"},
}

// Message builds the user-facing text for err. Known domain errors add a
// reason; anything else (driver errors included) shows only the failure.
func Message(failure string, err error) string {
	if errors.Is(err, core.ErrDuplicateCategory) {
		return MsgDuplicateCategory
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return failure + ": " + r.reason
		}
	}
	return failure
}
