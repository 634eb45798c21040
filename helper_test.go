// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/saga"
)

// waitTask blocks until task terminates, failing the test after a timeout.
// Sagas that only wait on Emit run to suspension inside Run and Emit, so
// most tests need it only for timers and futures.
func waitTask(tb testing.TB, task *saga.Task) {
	tb.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		tb.Fatalf("task %s did not terminate, status %s", task, task.Status())
	}
}

// recorder collects dispatched messages and reported errors.
type recorder struct {
	mu     sync.Mutex
	msgs   []any
	errs   []error
	stacks []saga.Stack
}

func (r *recorder) dispatch(msg any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) onError(err error, stack saga.Stack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.stacks = append(r.stacks, stack)
}

func (r *recorder) messages() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs...)
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// newRuntime returns a runtime wired to a fresh recorder.
func newRuntime(opts ...saga.Option) (*saga.Runtime, *recorder) {
	r := &recorder{}
	opts = append([]saga.Option{saga.WithDispatch(r.dispatch), saga.WithErrorHandler(r.onError)}, opts...)
	return saga.New(opts...), r
}

// takeThen waits for pattern, then returns v.
func takeThen(pattern any, v any) saga.Saga {
	return func(...any) saga.Proc {
		return saga.Then(saga.Take(pattern), saga.Return(v))
	}
}

// never waits on a message nobody sends.
func never(...any) saga.Proc {
	return saga.Do(saga.Take("NEVER"), saga.Return)
}
