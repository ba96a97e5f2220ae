package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoDeduplication(t *testing.T) {
	g := &Group{}

	var calls int32
	gate := make(chan struct{})

	const workers = 10
	var wg sync.WaitGroup
	results := make([]interface{}, workers)
	joins := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, joined, err := g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				<-gate
				return "value", nil
			})
			if err != nil {
				t.Errorf("Do() error = %v, want nil", err)
			}
			results[i] = v
			joins[i] = joined
		}(i)
	}

	// Let all workers arrive at the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Function called %d times, want 1", n)
	}
	owners := 0
	for i := 0; i < workers; i++ {
		if results[i] != "value" {
			t.Errorf("worker %d got %v, want %q", i, results[i], "value")
		}
		if !joins[i] {
			owners++
		}
	}
	if owners != 1 {
		t.Errorf("got %d owners, want exactly 1", owners)
	}
}

func TestDoDistinctKeys(t *testing.T) {
	g := &Group{}

	var calls int32
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _, err := g.Do(context.Background(), key, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				<-gate
				return key, nil
			})
			if err != nil {
				t.Errorf("Do(%q) error = %v, want nil", key, err)
			}
		}(key)
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Function called %d times, want 2 for distinct keys", n)
	}
}

func TestDoErrorPropagation(t *testing.T) {
	g := &Group{}

	wantErr := errors.New("upstream unavailable")
	gate := make(chan struct{})

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
				<-gate
				return nil, wantErr
			})
			errs[i] = err
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Errorf("worker %d error = %v, want %v", i, err, wantErr)
		}
	}
}

func TestDoKeyClearedAfterCompletion(t *testing.T) {
	g := &Group{}

	var calls int32
	fn := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	if _, _, err := g.Do(context.Background(), "key", fn); err != nil {
		t.Fatalf("first Do() error = %v", err)
	}
	if _, _, err := g.Do(context.Background(), "key", fn); err != nil {
		t.Fatalf("second Do() error = %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Function called %d times, want 2 after first call settled", n)
	}
}

func TestDoKeyClearedAfterError(t *testing.T) {
	g := &Group{}

	var calls int32
	_, _, err := g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("first Do() error = nil, want error")
	}

	v, _, err := g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("second Do() error = %v, want nil", err)
	}
	if v != "recovered" {
		t.Errorf("second Do() = %v, want %q", v, "recovered")
	}

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Function called %d times, want 2; failures must not pin the key", n)
	}
}

func TestDoWaiterCancellation(t *testing.T) {
	g := &Group{}

	gate := make(chan struct{})
	started := make(chan struct{})

	go func() {
		g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-gate
			return "late", nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := g.Do(ctx, "key", func(ctx context.Context) (interface{}, error) {
		t.Error("joiner's function must not run")
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want %v", err, context.DeadlineExceeded)
	}

	// The flight keeps going for patient callers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		v, _, err := g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
			t.Error("joiner's function must not run")
			return nil, nil
		})
		if err != nil {
			t.Errorf("patient Do() error = %v, want nil", err)
		}
		if v != "late" {
			t.Errorf("patient Do() = %v, want %q", v, "late")
		}
	}()

	time.Sleep(20 * time.Millisecond)
	close(gate)
	<-done
}

func TestDoDetachedFromInitiatorCancel(t *testing.T) {
	g := &Group{}

	gate := make(chan struct{})
	started := make(chan struct{})
	var fnCtxErr atomic.Value

	initCtx, initCancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.Do(initCtx, "key", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-gate
			fnCtxErr.Store(ctx.Err() == nil)
			return "shared", nil
		})
	}()
	<-started

	wg.Add(1)
	var joinVal interface{}
	var joinErr error
	joinReady := make(chan struct{})
	go func() {
		defer wg.Done()
		close(joinReady)
		joinVal, _, joinErr = g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
			t.Error("joiner's function must not run")
			return nil, nil
		})
	}()
	<-joinReady
	time.Sleep(20 * time.Millisecond)

	// Cancelling the initiator must not take the shared call down with it.
	initCancel()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if joinErr != nil {
		t.Errorf("joiner Do() error = %v, want nil", joinErr)
	}
	if joinVal != "shared" {
		t.Errorf("joiner Do() = %v, want %q", joinVal, "shared")
	}
	if alive, ok := fnCtxErr.Load().(bool); !ok || !alive {
		t.Error("in-flight function saw a canceled context; execution must be detached")
	}
}

func TestForget(t *testing.T) {
	g := &Group{}

	var calls int32
	gate := make(chan struct{})
	started := make(chan struct{})

	go func() {
		g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(&calls, 1)
			close(started)
			<-gate
			return "old", nil
		})
	}()
	<-started

	g.Forget("key")

	v, _, err := g.Do(context.Background(), "key", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "new", nil
	})
	if err != nil {
		t.Fatalf("Do() after Forget error = %v", err)
	}
	if v != "new" {
		t.Errorf("Do() after Forget = %v, want %q", v, "new")
	}
	close(gate)

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Function called %d times, want 2 after Forget", n)
	}
}
