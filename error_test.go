// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"code.hybscloud.com/saga"
)

func TestChildErrorAbortsParent(t *testing.T) {
	boom := errors.New("boom")
	rt, r := newRuntime()
	var sibling *saga.Task
	failing := func(...any) saga.Proc { return saga.Then(saga.Take("GO"), saga.Throw(boom)) }
	task := rt.Run(func(...any) saga.Proc {
		return saga.Await(saga.Fork(never), func(s *saga.Task) saga.Proc {
			sibling = s
			return saga.Then(saga.Fork(failing), saga.Seq(saga.Take("NEVER")))
		})
	})
	rt.Emit("GO")
	waitTask(t, task)
	if !task.IsAborted() || !errors.Is(task.Err(), boom) {
		t.Fatalf("task %s err %v, want aborted with boom", task.Status(), task.Err())
	}
	if !sibling.IsCancelled() {
		t.Fatalf("sibling status got %s, want cancelled", sibling.Status())
	}

	errs := r.errors()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Fatalf("onError got %v, want [boom]", errs)
	}
	stack := r.stacks[0]
	if len(stack) != 2 {
		t.Fatalf("stack got %d frames, want 2: %s", len(stack), stack)
	}
	if stack[0].Effect != "take(GO)" || stack[1].Effect != "take(NEVER)" {
		t.Fatalf("stack effects got %q, %q", stack[0].Effect, stack[1].Effect)
	}
	if !strings.HasPrefix(stack.String(), "The above error occurred in task ") {
		t.Fatalf("stack text got %q", stack.String())
	}
}

func TestSpawnIsolatesFailure(t *testing.T) {
	boom := errors.New("boom")
	rt, r := newRuntime()
	task := rt.Run(func(...any) saga.Proc {
		return saga.Then(saga.Spawn(func(...any) saga.Proc { return saga.Throw(boom) }), saga.Return("survived"))
	})
	waitTask(t, task)
	if task.Status() != saga.StatusCompleted || task.Result() != "survived" {
		t.Fatalf("task %s result %v, want completed survived", task.Status(), task.Result())
	}
	if errs := r.errors(); len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Fatalf("onError got %v, want [boom]", errs)
	}
}

func TestRootFailureLeavesSiblingRoots(t *testing.T) {
	boom := errors.New("boom")
	rt, _ := newRuntime()
	failing := rt.Run(func(...any) saga.Proc { return saga.Then(saga.Take("GO"), saga.Throw(boom)) })
	healthy := rt.Run(takeThen("LATER", "fine"))
	rt.Emit("GO")
	waitTask(t, failing)
	if !healthy.IsRunning() {
		t.Fatalf("sibling root status %s, want running", healthy.Status())
	}
	rt.Emit("LATER")
	waitTask(t, healthy)
	if healthy.Result() != "fine" {
		t.Fatalf("sibling root result %v, want fine", healthy.Result())
	}
}

func TestSagaConstructorPanic(t *testing.T) {
	rt, r := newRuntime()
	task := rt.Run(func(...any) saga.Proc { panic("no proc") })
	waitTask(t, task)
	var pe *saga.PanicError
	if !errors.As(task.Err(), &pe) {
		t.Fatalf("err got %v, want PanicError", task.Err())
	}
	if len(r.errors()) != 1 {
		t.Fatalf("onError not called")
	}
}

func TestCleanupErrorAbortsCancelledTask(t *testing.T) {
	boom := errors.New("cleanup failed")
	rt, _ := newRuntime()
	task := rt.Run(func(...any) saga.Proc {
		return saga.Finally(saga.Seq(saga.Take("NEVER")), func() saga.Proc { return saga.Throw(boom) })
	})
	task.Cancel()
	waitTask(t, task)
	if !task.IsAborted() || !errors.Is(task.Err(), boom) {
		t.Fatalf("task %s err %v, want aborted with cleanup error", task.Status(), task.Err())
	}
}

func TestDefaultErrorHandlerLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rt := saga.New(saga.WithLogger(logger), saga.WithName("logtest"))
	task := rt.Run(func(...any) saga.Proc { return saga.Throw(errors.New("unhandled")) })
	waitTask(t, task)
	out := buf.String()
	if !strings.Contains(out, "uncaught error") || !strings.Contains(out, "unhandled") || !strings.Contains(out, "logtest") {
		t.Fatalf("log output %q lacks the uncaught error", out)
	}
}

func TestPanicErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	var err error = &saga.PanicError{Value: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("PanicError does not unwrap its error value")
	}
	if (&saga.PanicError{Value: 1}).Unwrap() != nil {
		t.Fatalf("non-error panic value unwrapped")
	}
}
