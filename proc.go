// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"fmt"

	"code.hybscloud.com/kont"
)

// callback is the continuation of one pending effect.
// It settles at most once; abort settles it without resuming and runs the
// effect's cancellation hook.
type callback struct {
	resolve func(Result)
	cancel  func()
	// delegate forwards an interrupt to a nested driver, which resumes
	// this callback once it has unwound.
	delegate func(sig error)
	settled  bool
}

func (c *callback) settle(r Result) {
	if c.settled {
		return
	}
	c.settled = true
	c.resolve(r)
}

func (c *callback) abort() {
	if c.settled {
		return
	}
	c.settled = true
	if c.cancel != nil {
		c.cancel()
	}
}

// driver steps one Proc on behalf of a Task, one effect at a time.
// The main driver of a Task reports to the Task; nested drivers (CallSaga)
// report to the callback of the Call that started them.
type driver struct {
	task *Task
	body Proc
	susp *kont.Suspension[Result]

	cur  *callback
	last Effect

	started     bool
	stepping    bool
	pending     *Result
	finished    bool
	interrupted error

	onDone func(Result)
}

func newDriver(t *Task, body Proc, onDone func(Result)) *driver {
	return &driver{task: t, body: body, onDone: onDone}
}

func (d *driver) start() { d.resume(Result{}) }

// resume continues the Proc with r. While an effect is being run, a
// synchronous settlement is recorded and picked up by the step loop, so
// synchronous effects iterate instead of recursing.
func (d *driver) resume(r Result) {
	if d.finished {
		return
	}
	if d.stepping {
		d.pending = &r
		return
	}
	d.loop(r)
}

func (d *driver) loop(r Result) {
	for {
		res, susp, err := d.step(r)
		if err != nil {
			d.finish(Result{Err: err})
			return
		}
		if susp == nil {
			d.finish(res)
			return
		}
		op, ok := susp.Op().(perform)
		if !ok {
			susp.Discard()
			d.finish(Result{Err: fmt.Errorf("%w: %T", ErrUnhandledEffect, susp.Op())})
			return
		}
		d.susp = susp
		cb := &callback{resolve: d.resume}
		d.cur = cb
		d.last = op.eff
		d.stepping = true
		d.task.rt.runEffect(d, op.eff, cb)
		d.stepping = false
		if d.pending == nil {
			return
		}
		r = *d.pending
		d.pending = nil
	}
}

// step advances the kont computation, converting panics raised by user
// continuations into errors.
func (d *driver) step(r Result) (res Result, susp *kont.Suspension[Result], err error) {
	defer func() {
		if p := recover(); p != nil {
			err = recoverError(p)
		}
	}()
	if !d.started {
		d.started = true
		res, susp = kont.StepExpr(kont.Reify(d.body))
		return res, susp, nil
	}
	s := d.susp
	d.susp = nil
	res, susp = s.Resume(r)
	return res, susp, nil
}

func (d *driver) finish(r Result) {
	d.finished = true
	d.susp = nil
	d.cur = nil
	d.onDone(r)
}

// interrupt unwinds the Proc with sig: the pending effect is cancelled and
// the Proc resumes with sig, running its Finally blocks. A Proc is
// interrupted at most once; effects yielded while unwinding run normally.
func (d *driver) interrupt(sig error) {
	if d.finished || d.interrupted != nil {
		return
	}
	d.interrupted = sig
	if c := d.cur; c != nil && !c.settled {
		if c.delegate != nil {
			c.delegate(sig)
			return
		}
		c.abort()
	}
	d.resume(Result{Err: sig})
}

// cancelled reports whether this Proc is unwinding because of a cancellation.
func (d *driver) cancelled() bool {
	return d.interrupted == errCancel || d.task.cancelled
}
