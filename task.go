// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"context"
	"fmt"
	"path"
	"reflect"
	"runtime"
	"slices"

	"code.hybscloud.com/atomix"
	"go.opentelemetry.io/otel/trace"
)

// Status is the lifecycle state of a Task. Terminal states are sticky.
type Status uint32

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusAborted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", uint32(s))
}

// Task is a running instance of a Saga.
//
// A Task terminates once its main step-sequence and every attached child
// have terminated. Its fields are owned by the runtime's loop; the host
// reads a Task through the exported methods only.
type Task struct {
	rt       *Runtime
	id       TaskID
	name     string
	location string

	parent   TaskID
	detached bool
	children []TaskID

	main       *driver
	mainDone   bool
	cancelled  bool
	err        error
	stack      Stack
	result     any
	joiners    []*callback
	scope      *scope

	status atomix.Uint32
	done   chan struct{}

	ctx  context.Context
	span trace.Span
}

// ID returns the task id.
func (t *Task) ID() TaskID { return t.id }

// Name returns the name of the Saga the task runs.
func (t *Task) Name() string { return t.name }

// Status returns the current lifecycle state.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// IsRunning reports whether the task has not terminated.
func (t *Task) IsRunning() bool { return t.Status() == StatusRunning }

// IsCancelled reports whether the task terminated by cancellation.
func (t *Task) IsCancelled() bool { return t.Status() == StatusCancelled }

// IsAborted reports whether the task terminated with an uncaught error.
func (t *Task) IsAborted() bool { return t.Status() == StatusAborted }

// Done is closed once the task terminates.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the value the task completed with, or nil while running.
func (t *Task) Result() any {
	select {
	case <-t.done:
		return t.result
	default:
		return nil
	}
}

// Err returns the error the task aborted with, or nil.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task terminates or ctx is done. A cancelled task
// yields ErrCancelled.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	switch t.Status() {
	case StatusAborted:
		return nil, t.err
	case StatusCancelled:
		return nil, ErrCancelled
	}
	return t.result, nil
}

// Cancel cancels the task and its attached descendants. Cancelling a
// terminated task is a no-op.
func (t *Task) Cancel() {
	t.rt.post(t.cancel)
}

// SetContext shadows saga context values for the task.
func (t *Task) SetContext(values map[string]any) {
	t.rt.post(func() { t.scope = t.scope.with(values) })
}

func (t *Task) String() string {
	return fmt.Sprintf("%s#%d", t.name, t.id)
}

func (t *Task) terminal() bool { return t.Status() != StatusRunning }

// outcome is what a joiner of a terminated task resumes with.
func (t *Task) outcome() Result {
	if t.Status() == StatusAborted {
		return Result{Err: t.err}
	}
	return Result{Value: t.result}
}

// start drives the main step-sequence built by s.
func (t *Task) start(s Saga, args []any) {
	body, err := buildProc(s, args)
	if err != nil {
		t.mainDone = true
		t.fail(err, Stack{t.frame(nil)})
		t.tryEnd()
		return
	}
	t.main = newDriver(t, body, t.mainFinished)
	t.main.start()
}

func buildProc(s Saga, args []any) (p Proc, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverError(r)
		}
	}()
	return s(args...), nil
}

func (t *Task) mainFinished(r Result) {
	t.mainDone = true
	switch {
	case r.Err == nil:
		t.result = r.Value
	case isInterrupt(r.Err):
	default:
		t.fail(r.Err, Stack{t.frame(t.main.last)})
	}
	t.tryEnd()
}

func (t *Task) frame(last Effect) Frame {
	f := Frame{Task: t.name, Location: t.location}
	if last != nil {
		f.Effect = last.String()
	}
	return f
}

// fail aborts the task with err: live children are cancelled, the main
// step-sequence is interrupted, and the task ends once they have unwound.
func (t *Task) fail(err error, stack Stack) {
	if t.terminal() || t.err != nil {
		return
	}
	t.err = err
	t.stack = stack
	t.cancelChildren()
	if !t.mainDone && t.main != nil {
		t.main.interrupt(errCancel)
	}
	t.tryEnd()
}

// cancel cancels descendants depth-first, then unwinds the main
// step-sequence. The task is marked Cancelled once everything has unwound.
func (t *Task) cancel() {
	if t.terminal() || t.cancelled {
		return
	}
	t.cancelled = true
	t.rt.logger.Debug("saga: task cancelled", "task", t.id, "name", t.name)
	t.cancelChildren()
	if !t.mainDone && t.main != nil {
		t.main.interrupt(errCancel)
	}
	t.tryEnd()
}

func (t *Task) cancelChildren() {
	for _, id := range slices.Clone(t.children) {
		if c := t.rt.tasks[id]; c != nil {
			c.cancel()
		}
	}
}

func (t *Task) attach(child *Task) {
	t.children = append(t.children, child.id)
}

func (t *Task) childEnded(child *Task) {
	t.children = slices.DeleteFunc(t.children, func(id TaskID) bool { return id == child.id })
	if child.Status() == StatusAborted {
		var last Effect
		if t.main != nil {
			last = t.main.last
		}
		t.fail(child.err, append(slices.Clone(child.stack), t.frame(last)))
		return
	}
	t.tryEnd()
}

// tryEnd terminates the task once its main step-sequence and all attached
// children are done.
func (t *Task) tryEnd() {
	if t.terminal() || !t.mainDone || len(t.children) > 0 {
		return
	}
	status := StatusCompleted
	switch {
	case t.err != nil:
		status = StatusAborted
		t.result = nil
	case t.cancelled:
		status = StatusCancelled
		t.result = nil
	}
	t.status.Store(uint32(status))
	t.rt.taskEnded(t)
	close(t.done)

	if t.parent != 0 {
		if p := t.rt.tasks[t.parent]; p != nil {
			p.childEnded(t)
		}
	}
	joiners := t.joiners
	t.joiners = nil
	for _, j := range joiners {
		j.settle(t.outcome())
	}
}

// join resumes cb when the task terminates.
func (t *Task) join(cb *callback) {
	if t.terminal() {
		cb.settle(t.outcome())
		return
	}
	t.joiners = append(t.joiners, cb)
	cb.cancel = func() {
		t.joiners = slices.DeleteFunc(t.joiners, func(j *callback) bool { return j == cb })
	}
}

// funcName returns the short symbol name of fn, or "anonymous".
func funcName(fn any) string {
	if fn == nil {
		return "anonymous"
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "anonymous"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "anonymous"
	}
	return path.Base(f.Name())
}

// funcLocation returns the file:line where fn is defined.
func funcLocation(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	file, line := f.FileLine(v.Pointer())
	return fmt.Sprintf("%s:%d", path.Base(file), line)
}
