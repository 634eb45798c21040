// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"context"
	"sync"
)

// Future is a value settled once, possibly from another goroutine.
// A Call whose function returns a *Future suspends until it settles;
// cancelling the calling Task cancels the Future.
type Future struct {
	mu      sync.Mutex
	settled bool
	res     Result
	waiters []func(Result)
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewFuture returns an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and returns the Future of its outcome.
// Cancel cancels the context passed to fn.
func Go(fn func(ctx context.Context) (any, error)) *Future {
	f := NewFuture()
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer cancel()
		var r Result
		func() {
			defer func() {
				if p := recover(); p != nil {
					r = Result{Err: recoverError(p)}
				}
			}()
			v, err := fn(ctx)
			r = Result{Value: v, Err: err}
		}()
		f.settle(r)
	}()
	return f
}

// Resolve settles the Future with v.
func (f *Future) Resolve(v any) { f.settle(Result{Value: v}) }

// Reject settles the Future with err.
func (f *Future) Reject(err error) { f.settle(Result{Err: err}) }

// Cancel runs the Future's cancellation hook and settles it with
// ErrCancelled if it is still pending.
func (f *Future) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
	f.settle(Result{Err: ErrCancelled})
}

func (f *Future) settle(r Result) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.res = r
	waiters := f.waiters
	f.waiters = nil
	close(f.done)
	f.mu.Unlock()
	for _, w := range waiters {
		w(r)
	}
}

// poll returns the outcome if the Future has settled.
func (f *Future) poll() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, f.settled
}

// then registers w to run with the outcome, on the settling goroutine,
// or immediately when already settled.
func (f *Future) then(w func(Result)) {
	f.mu.Lock()
	if !f.settled {
		f.waiters = append(f.waiters, w)
		f.mu.Unlock()
		return
	}
	r := f.res
	f.mu.Unlock()
	w(r)
}

// Done is closed once the Future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the Future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		r, _ := f.poll()
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
