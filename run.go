// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"fmt"
	"sync"
	"time"
)

// runEffect interprets e on behalf of d and settles cb with its outcome,
// synchronously or later. Every pending effect leaves a cancel hook on cb.
func (rt *Runtime) runEffect(d *driver, e Effect, cb *callback) {
	switch e := e.(type) {
	case TakeEffect:
		rt.runTake(e, cb)
	case PutEffect:
		rt.runPut(e, cb)
	case CallEffect:
		rt.runCall(d, e, cb)
	case CPSEffect:
		rt.runCPS(e, cb)
	case ForkEffect:
		rt.runFork(d, e, cb)
	case JoinEffect:
		rt.runJoin(e, cb)
	case CancelEffect:
		rt.runCancel(d, e, cb)
	case SelectEffect:
		v, err := protect(func() (any, error) { return e.Selector(rt.getState(), e.Args...), nil })
		cb.settle(Result{Value: v, Err: err})
	case RaceEffect:
		rt.race(d, e.Effects, cb)
	case AllEffect:
		rt.all(len(e.Effects), e.Keys, func(i int, c *callback) { rt.runEffect(d, e.Effects[i], c) }, cb)
	case DelayEffect:
		rt.runDelay(e, cb)
	case GetContextEffect:
		v, _ := d.task.scope.lookup(e.Key)
		cb.settle(Result{Value: v})
	case SetContextEffect:
		d.task.scope = d.task.scope.with(e.Values)
		cb.settle(Result{})
	case ActionChannelEffect:
		rt.runActionChannel(d, e, cb)
	case FlushEffect:
		if e.Channel == nil {
			cb.settle(Result{Err: fmt.Errorf("%w: %s", ErrNilChannel, e)})
			return
		}
		e.Channel.Flush(func(msg any) { cb.settle(Result{Value: msg}) })
	case CancelledEffect:
		cb.settle(Result{Value: d.cancelled()})
	default:
		cb.settle(Result{Err: fmt.Errorf("%w: %T", ErrUnhandledEffect, e)})
	}
}

func (rt *Runtime) runTake(e TakeEffect, cb *callback) {
	t := &taker{fn: func(msg any) {
		if IsEnd(msg) && !e.Maybe {
			cb.settle(Result{Err: errTerminate})
			return
		}
		cb.settle(Result{Value: msg})
	}}
	ch := e.Channel
	if ch == nil {
		m, err := matcher(e.Pattern)
		if err != nil {
			cb.settle(Result{Err: err})
			return
		}
		t.match = guard(m)
		ch = rt.input
	}
	cb.cancel = t.cancel
	ch.take(t)
}

// guard makes a panicking predicate a non-match.
func guard(match func(any) bool) func(any) bool {
	return func(msg any) (ok bool) {
		defer func() {
			if p := recover(); p != nil {
				ok = false
			}
		}()
		return match(msg)
	}
}

// runPut dispatches on the scheduler, after the current unit of work.
func (rt *Runtime) runPut(e PutEffect, cb *callback) {
	if e.ToChannel && e.Channel == nil {
		cb.settle(Result{Err: fmt.Errorf("%w: %s", ErrNilChannel, e)})
		return
	}
	rt.sched.Asap(func() {
		if e.Channel != nil {
			if err := e.Channel.Put(e.Message); err != nil {
				cb.settle(Result{Err: err})
				return
			}
			cb.settle(Result{Value: e.Message})
			return
		}
		v, err := protect(func() (any, error) { return rt.dispatch(e.Message), nil })
		if err != nil {
			cb.settle(Result{Err: err})
			return
		}
		if f, ok := v.(*Future); ok && e.Resolve {
			rt.await(f, cb)
			return
		}
		cb.settle(Result{Value: v})
	})
}

func (rt *Runtime) runCall(d *driver, e CallEffect, cb *callback) {
	if e.Saga != nil {
		p, err := buildProc(e.Saga, e.Args)
		if err != nil {
			cb.settle(Result{Err: err})
			return
		}
		rt.callProc(d, p, cb)
		return
	}
	if e.Fn == nil {
		cb.settle(Result{Err: fmt.Errorf("%w: call of nil function", ErrUnhandledEffect)})
		return
	}
	v, err := protect(func() (any, error) { return e.Fn(e.Args...) })
	if err != nil {
		cb.settle(Result{Err: err})
		return
	}
	switch v := v.(type) {
	case *Future:
		rt.await(v, cb)
	case Proc:
		rt.callProc(d, v, cb)
	default:
		cb.settle(Result{Value: v})
	}
}

// callProc drives p as a nested step-sequence of d's Task. Interrupting
// the caller unwinds p first; the caller resumes once p has finished.
func (rt *Runtime) callProc(d *driver, p Proc, cb *callback) {
	nested := newDriver(d.task, p, cb.settle)
	cb.delegate = nested.interrupt
	cb.cancel = func() { nested.interrupt(errCancel) }
	nested.start()
}

// await settles cb with f's outcome on the runtime's loop.
func (rt *Runtime) await(f *Future, cb *callback) {
	if r, ok := f.poll(); ok {
		cb.settle(r)
		return
	}
	cb.cancel = f.Cancel
	f.then(func(r Result) {
		rt.post(func() { cb.settle(r) })
	})
}

func (rt *Runtime) runCPS(e CPSEffect, cb *callback) {
	if e.Fn == nil {
		cb.settle(Result{Err: fmt.Errorf("%w: cps of nil function", ErrUnhandledEffect)})
		return
	}
	var (
		mu     sync.Mutex
		called bool
		inline = true
		early  Result
	)
	done := func(v any, err error) {
		mu.Lock()
		if called {
			mu.Unlock()
			return
		}
		called = true
		if inline {
			early = Result{Value: v, Err: err}
			mu.Unlock()
			return
		}
		mu.Unlock()
		rt.post(func() { cb.settle(Result{Value: v, Err: err}) })
	}
	_, err := protect(func() (any, error) {
		e.Fn(done, e.Args...)
		return nil, nil
	})
	mu.Lock()
	inline = false
	settled := called
	mu.Unlock()
	switch {
	case settled:
		cb.settle(early)
	case err != nil:
		cb.settle(Result{Err: err})
	}
}

func (rt *Runtime) runFork(d *driver, e ForkEffect, cb *callback) {
	child := rt.newTask(e.Saga, d.task, e.Detached)
	rt.register(child)
	rt.sched.Suspend()
	child.start(e.Saga, e.Args)
	rt.sched.Flush()
	cb.settle(Result{Value: child})
}

func (rt *Runtime) runJoin(e JoinEffect, cb *callback) {
	if len(e.Tasks) == 1 {
		rt.join(e.Tasks[0], cb)
		return
	}
	rt.all(len(e.Tasks), nil, func(i int, c *callback) { rt.join(e.Tasks[i], c) }, cb)
}

func (rt *Runtime) join(t *Task, cb *callback) {
	if t == nil {
		cb.settle(Result{Err: ErrNilTask})
		return
	}
	t.join(cb)
}

func (rt *Runtime) runCancel(d *driver, e CancelEffect, cb *callback) {
	if e.Self {
		d.task.cancel()
		cb.settle(Result{})
		return
	}
	for _, t := range e.Tasks {
		if t != nil {
			t.cancel()
		}
	}
	cb.settle(Result{})
}

func (rt *Runtime) runDelay(e DelayEffect, cb *callback) {
	timer := time.AfterFunc(e.Duration, func() {
		rt.post(func() { cb.settle(Result{Value: e.Value}) })
	})
	cb.cancel = func() { timer.Stop() }
}

// runActionChannel buffers matching ambient messages in a new Channel.
// A Fixed buffer overflow aborts the Task that created the channel.
func (rt *Runtime) runActionChannel(d *driver, e ActionChannelEffect, cb *callback) {
	m, err := matcher(e.Pattern)
	if err != nil {
		cb.settle(Result{Err: err})
		return
	}
	buf := e.Buffer
	if buf == nil {
		buf = Fixed(rt.bufferLimit)
	}
	ch := NewChannel(buf)
	owner := d.task
	t := &taker{match: guard(m)}
	t.fn = func(msg any) {
		if IsEnd(msg) {
			ch.Close()
			return
		}
		// Re-arm first so a taker closing ch while served unregisters t.
		rt.input.take(t)
		if err := ch.Put(msg); err != nil {
			ch.Close()
			owner.fail(err, Stack{owner.frame(e)})
		}
	}
	ch.onClose = append(ch.onClose, t.cancel)
	rt.input.take(t)
	cb.settle(Result{Value: ch})
}

// protect runs user code, converting a panic into an error.
func protect(fn func() (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, recoverError(p)
		}
	}()
	return fn()
}
