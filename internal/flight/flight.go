// Package flight coordinates keyed single-flight execution: concurrent calls
// that share a key join one underlying execution and observe its outcome.
// It wraps golang.org/x/sync/singleflight with context-aware waiting and
// detached execution so the in-flight call outlives any individual caller.
package flight

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Group manages one in-flight call per key. The zero value is ready to use.
type Group struct {
	sf singleflight.Group
}

// Do executes fn under key, ensuring at most one execution is in flight for a
// given key at a time. Callers arriving while a call is in flight join it and
// receive the identical value and error; joined reports whether this caller
// joined rather than initiated. The key is cleared when the call settles,
// success or failure, so the next call always starts fresh.
//
// The underlying call runs on a context detached from the initiating caller's
// cancellation: one caller's deadline must not fail a result shared by
// others. Each caller's wait still honors its own ctx; abandoning the wait
// leaves the call running for the remaining joiners.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (v interface{}, joined bool, err error) {
	var owner atomic.Bool
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		owner.Store(true)
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Val, !owner.Load(), res.Err
	case <-ctx.Done():
		return nil, !owner.Load(), ctx.Err()
	}
}

// Forget drops the key so the next Do starts a new execution even if one is
// still in flight. Use sparingly; outstanding waiters keep the old outcome.
func (g *Group) Forget(key string) {
	g.sf.Forget(key)
}
