// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Runtime owns a tree of Tasks, the ambient input they Take from, and the
// Scheduler that serializes their effects.
//
// All runtime work happens on one logical thread. Entry points may be
// called from any goroutine: they post work to an inbox, and whichever
// goroutine finds the runtime idle drains it. Work posted while the inbox
// is being drained, including from inside a dispatch, runs after the
// current unit of work.
type Runtime struct {
	id   string
	name string

	sched Scheduler
	input *multicast
	tasks map[TaskID]*Task
	scope *scope

	dispatch func(msg any) any
	getState func() any
	onError  func(err error, stack Stack)

	ctx         context.Context
	logger      *slog.Logger
	tracer      trace.Tracer
	bufferLimit int

	mu    sync.Mutex
	inbox []func()
	drain sync.Mutex
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithDispatch sets the host dispatch called by Put. Its return value is
// what Put resolves with; PutResolve awaits it when it is a *Future.
// Without a dispatch, put messages are fed back into the ambient input.
func WithDispatch(dispatch func(msg any) any) Option {
	return func(rt *Runtime) { rt.dispatch = dispatch }
}

// WithState sets the host state accessor read by Select.
func WithState(getState func() any) Option {
	return func(rt *Runtime) { rt.getState = getState }
}

// WithErrorHandler sets the handler of errors that abort a root Task.
// The default logs them at error level.
func WithErrorHandler(onError func(err error, stack Stack)) Option {
	return func(rt *Runtime) { rt.onError = onError }
}

// WithContext sets the saga context inherited by every root Task.
func WithContext(values map[string]any) Option {
	return func(rt *Runtime) { rt.scope = rt.scope.with(values) }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider of per-Task spans.
// The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(rt *Runtime) {
		if tp != nil {
			rt.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithParentContext parents root Task spans on ctx.
func WithParentContext(ctx context.Context) Option {
	return func(rt *Runtime) {
		if ctx != nil {
			rt.ctx = ctx
		}
	}
}

// WithBufferLimit sets the Fixed buffer limit of ActionChannels created
// without an explicit buffer.
func WithBufferLimit(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.bufferLimit = n
		}
	}
}

// WithName names the runtime in logs and spans.
func WithName(name string) Option {
	return func(rt *Runtime) { rt.name = name }
}

// New returns an idle Runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		id:          uuid.NewString(),
		name:        "saga",
		input:       newMulticast(),
		tasks:       make(map[TaskID]*Task),
		ctx:         context.Background(),
		logger:      slog.Default(),
		tracer:      otel.GetTracerProvider().Tracer(tracerName),
		bufferLimit: DefaultBufferLimit,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.dispatch == nil {
		rt.dispatch = rt.loopback
	}
	if rt.getState == nil {
		rt.getState = func() any { return nil }
	}
	rt.logger = rt.logger.With("runtime", rt.name, "runtime_id", rt.id)
	return rt
}

// ID returns the unique id of the runtime instance.
func (rt *Runtime) ID() string { return rt.id }

// Name returns the runtime name.
func (rt *Runtime) Name() string { return rt.name }

// Run starts s as a root Task and returns its handle.
// The Task is driven on the runtime's loop, possibly before Run returns.
func (rt *Runtime) Run(s Saga, args ...any) *Task {
	t := rt.newTask(s, nil, false)
	rt.post(func() {
		rt.register(t)
		t.start(s, args)
	})
	return t
}

// Emit delivers msg to every Task waiting on a matching ambient Take.
// Emitting END closes the ambient input.
func (rt *Runtime) Emit(msg any) {
	rt.post(func() { rt.input.put(msg) })
}

// Close ends the ambient input: pending and future ambient Takes receive END.
func (rt *Runtime) Close() { rt.Emit(END) }

// EventChannel returns a Channel fed by an external source.
// subscribe is called once with an emit function, safe for use from any
// goroutine, and returns the function that unsubscribes; it is called when
// the channel closes. Emitting END closes the channel. A nil buf means
// None: events are dropped unless a Task is waiting. A Fixed buffer that
// overflows closes the channel and reports the error to the error handler.
func (rt *Runtime) EventChannel(subscribe func(emit func(msg any)) (unsubscribe func()), buf Buffer) *Channel {
	if buf == nil {
		buf = None()
	}
	ch := NewChannel(buf)
	var once sync.Once
	emit := func(msg any) {
		rt.post(func() {
			if err := ch.Put(msg); err != nil {
				rt.logger.Warn("saga: event channel overflow", "error", err)
				rt.reportError(err, nil)
				ch.Close()
			}
		})
	}
	unsubscribe := subscribe(emit)
	if unsubscribe != nil {
		ch.onClose = append(ch.onClose, func() { once.Do(unsubscribe) })
	}
	return ch
}

// post queues fn on the runtime's loop and drains the inbox unless
// another goroutine, or an outer frame of this one, is already draining.
func (rt *Runtime) post(fn func()) {
	rt.mu.Lock()
	rt.inbox = append(rt.inbox, fn)
	rt.mu.Unlock()
	for rt.drain.TryLock() {
		rt.drainInbox()
		rt.mu.Lock()
		idle := len(rt.inbox) == 0
		rt.mu.Unlock()
		if idle {
			return
		}
	}
}

func (rt *Runtime) drainInbox() {
	defer rt.drain.Unlock()
	for {
		rt.mu.Lock()
		if len(rt.inbox) == 0 {
			rt.mu.Unlock()
			return
		}
		fn := rt.inbox[0]
		rt.inbox[0] = nil
		rt.inbox = rt.inbox[1:]
		rt.mu.Unlock()
		rt.sched.Immediately(fn)
	}
}

// loopback is the dispatch of a runtime without a host store.
func (rt *Runtime) loopback(msg any) any {
	rt.input.put(msg)
	return msg
}

// newTask builds the handle of a Task running s. Attached children record
// their parent; every Task inherits the saga context of its forker.
func (rt *Runtime) newTask(s Saga, parent *Task, detached bool) *Task {
	t := &Task{
		rt:       rt,
		id:       nextTaskID(),
		name:     funcName(s),
		location: funcLocation(s),
		detached: detached,
		scope:    rt.scope,
		done:     make(chan struct{}),
	}
	ctx := rt.ctx
	if parent != nil {
		t.scope = parent.scope
		ctx = parent.ctx
		if !detached {
			t.parent = parent.id
		}
	}
	t.ctx, t.span = rt.startSpan(ctx, t)
	return t
}

// register adds t to the arena and to its parent's children.
func (rt *Runtime) register(t *Task) {
	rt.tasks[t.id] = t
	if t.parent != 0 {
		if p := rt.tasks[t.parent]; p != nil {
			p.attach(t)
		}
	}
	rt.logger.Debug("saga: task started", "task", t.id, "name", t.name, "parent", t.parent, "detached", t.detached)
}

// taskEnded removes a terminal Task from the arena. An abort that has no
// parent to propagate to is reported to the error handler.
func (rt *Runtime) taskEnded(t *Task) {
	delete(rt.tasks, t.id)
	rt.endSpan(t)
	status := t.Status()
	rt.logger.Debug("saga: task ended", "task", t.id, "name", t.name, "status", status.String())
	if status == StatusAborted && t.parent == 0 {
		rt.reportError(t.err, t.stack)
	}
}

func (rt *Runtime) reportError(err error, stack Stack) {
	if rt.onError == nil {
		rt.logger.Error("saga: uncaught error", "error", err, "stack", stack.String())
		return
	}
	defer func() {
		if p := recover(); p != nil {
			rt.logger.Error("saga: error handler panicked", "error", err, "panic", p)
		}
	}()
	rt.onError(err, stack)
}
