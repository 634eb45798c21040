// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"code.hybscloud.com/saga"
)

func TestRaceFirstWins(t *testing.T) {
	for _, tc := range []struct {
		emit  string
		win   string
		loser string
	}{
		{emit: "A", win: "a", loser: "b"},
		{emit: "B", win: "b", loser: "a"},
	} {
		t.Run(tc.emit, func(t *testing.T) {
			rt, _ := newRuntime()
			// The losing branch's predicate must never see a message once
			// the race is decided.
			loserCalls := 0
			match := func(branch string) saga.MatchFunc {
				return func(msg any) bool {
					if branch == tc.loser {
						loserCalls++
					}
					a, ok := msg.(saga.Action)
					return ok && a.Type == strings.ToUpper(branch)
				}
			}
			task := rt.Run(func(...any) saga.Proc {
				return saga.Do(saga.Race(map[string]saga.Effect{
					"a": saga.Take(match("a")),
					"b": saga.Take(match("b")),
				}), saga.Return)
			})
			rt.Emit(saga.Action{Type: tc.emit})
			waitTask(t, task)
			won, ok := task.Result().(map[string]any)
			if !ok || len(won) != 1 {
				t.Fatalf("result got %v, want a single-entry map", task.Result())
			}
			if got := won[tc.win]; got != (saga.Action{Type: tc.emit}) {
				t.Fatalf("winner %q got %v", tc.win, got)
			}
			before := loserCalls
			rt.Emit(saga.Action{Type: strings.ToUpper(tc.loser)})
			if loserCalls != before {
				t.Fatalf("losing branch still registered")
			}
		})
	}
}

func TestRaceTimeout(t *testing.T) {
	rt, _ := newRuntime()
	task := rt.Run(func(...any) saga.Proc {
		return saga.Do(saga.Race(map[string]saga.Effect{
			"msg":     saga.Take("NEVER"),
			"timeout": saga.Delay(10*time.Millisecond, "late"),
		}), saga.Return)
	})
	waitTask(t, task)
	if got := task.Result(); !reflect.DeepEqual(got, map[string]any{"timeout": "late"}) {
		t.Fatalf("result got %v, want map[timeout:late]", got)
	}
}

func TestRaceErrorWins(t *testing.T) {
	boom := errors.New("boom")
	rt, _ := newRuntime()
	task := rt.Run(func(...any) saga.Proc {
		return saga.Try(saga.Race(map[string]saga.Effect{
			"fail": saga.Call(func(...any) (any, error) { return nil, boom }),
			"wait": saga.Take("NEVER"),
		}), func(any) saga.Proc {
			return saga.Return("no error")
		}, func(err error) saga.Proc {
			return saga.Return(err)
		})
	})
	waitTask(t, task)
	if err, ok := task.Result().(error); !ok || !errors.Is(err, boom) {
		t.Fatalf("result got %v, want boom", task.Result())
	}
}

func TestAllCollectsInOrder(t *testing.T) {
	rt, _ := newRuntime()
	task := rt.Run(func(...any) saga.Proc {
		return saga.Do(saga.All(
			saga.Take("SECOND"),
			saga.Delay(time.Millisecond, "delayed"),
			saga.Select(func(any, ...any) any { return "sync" }),
		), saga.Return)
	})
	rt.Emit("SECOND")
	waitTask(t, task)
	want := []any{"SECOND", "delayed", "sync"}
	if got := task.Result(); !reflect.DeepEqual(got, want) {
		t.Fatalf("result got %v, want %v", got, want)
	}
}

func TestAllMap(t *testing.T) {
	rt, _ := newRuntime()
	task := rt.Run(func(...any) saga.Proc {
		return saga.Do(saga.AllMap(map[string]saga.Effect{
			"x": saga.Select(func(any, ...any) any { return 1 }),
			"y": saga.Select(func(any, ...any) any { return 2 }),
		}), saga.Return)
	})
	waitTask(t, task)
	if got := task.Result(); !reflect.DeepEqual(got, map[string]any{"x": 1, "y": 2}) {
		t.Fatalf("result got %v, want map[x:1 y:2]", got)
	}
}

func TestAllEmpty(t *testing.T) {
	rt, _ := newRuntime()
	task := rt.Run(func(...any) saga.Proc { return saga.Do(saga.All(), saga.Return) })
	waitTask(t, task)
	if got, ok := task.Result().([]any); !ok || len(got) != 0 {
		t.Fatalf("result got %v, want empty list", task.Result())
	}
}

func TestAllFailFastCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	rt, _ := newRuntime()
	var cancelled any
	slow := func(...any) saga.Proc {
		return saga.Finally(saga.Seq(saga.Take("NEVER")), func() saga.Proc {
			return saga.Do(saga.Cancelled(), func(v any) saga.Proc {
				cancelled = v
				return saga.Return(nil)
			})
		})
	}
	var forked *saga.Task
	forkSlow := func(...any) saga.Proc {
		return saga.Await(saga.Fork(never), func(c *saga.Task) saga.Proc {
			forked = c
			return saga.Seq(saga.Take("NEVER"))
		})
	}
	task := rt.Run(func(...any) saga.Proc {
		return saga.Try(saga.All(
			saga.CallSaga(slow),
			saga.CallSaga(forkSlow),
			saga.Call(func(...any) (any, error) { return nil, boom }),
		), func(any) saga.Proc {
			return saga.Return("no error")
		}, func(err error) saga.Proc {
			return saga.Return(err)
		})
	})
	// The forked child is attached to the task: it ends once cancelled.
	if forked == nil {
		t.Fatalf("sibling did not fork")
	}
	forked.Cancel()
	waitTask(t, task)
	if err, ok := task.Result().(error); !ok || !errors.Is(err, boom) {
		t.Fatalf("result got %v, want boom", task.Result())
	}
	if cancelled != true {
		t.Fatalf("sibling Cancelled() got %v, want true", cancelled)
	}
}

func TestJoinMany(t *testing.T) {
	rt, _ := newRuntime()
	task := rt.Run(func(...any) saga.Proc {
		return saga.Await(saga.Fork(takeThen("ONE", "one")), func(a *saga.Task) saga.Proc {
			return saga.Await(saga.Fork(takeThen("TWO", "two")), func(b *saga.Task) saga.Proc {
				return saga.Do(saga.Join(a, b), saga.Return)
			})
		})
	})
	rt.Emit("TWO")
	rt.Emit("ONE")
	waitTask(t, task)
	if got := task.Result(); !reflect.DeepEqual(got, []any{"one", "two"}) {
		t.Fatalf("result got %v, want [one two]", got)
	}
}
