// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"slices"
	"time"

	"code.hybscloud.com/kont"
)

// The helpers below return Fork effects of library sagas. Each helper
// Task ends when the ambient input ends. Workers receive args followed by
// the message that triggered them.

func withMsg(args []any, msg any) []any {
	return append(slices.Clone(args), msg)
}

// TakeEvery forks worker for every message matching pattern.
func TakeEvery(pattern any, worker Saga, args ...any) Effect {
	return Fork(func(...any) Proc {
		return Forever(func() Proc {
			return Do(Take(pattern), func(msg any) Proc {
				return Then(Fork(worker, withMsg(args, msg)...), Return(nil))
			})
		})
	})
}

// TakeLatest forks worker for every message matching pattern, cancelling
// the previous worker if it is still running.
func TakeLatest(pattern any, worker Saga, args ...any) Effect {
	return Fork(func(...any) Proc {
		var last *Task
		return Forever(func() Proc {
			return Do(Take(pattern), func(msg any) Proc {
				fork := Await(Fork(worker, withMsg(args, msg)...), func(t *Task) Proc {
					last = t
					return Return(nil)
				})
				if last == nil || !last.IsRunning() {
					return fork
				}
				return Do(Cancel(last), func(any) Proc { return fork })
			})
		})
	})
}

// TakeLeading runs worker for a message matching pattern and ignores
// further messages until it returns.
func TakeLeading(pattern any, worker Saga, args ...any) Effect {
	return Fork(func(...any) Proc {
		return Forever(func() Proc {
			return Do(Take(pattern), func(msg any) Proc {
				return Then(CallSaga(worker, withMsg(args, msg)...), Return(nil))
			})
		})
	})
}

// Throttle forks worker for a message matching pattern, then ignores
// messages for d, keeping only the most recent one to run next.
func Throttle(d time.Duration, pattern any, worker Saga, args ...any) Effect {
	return Fork(func(...any) Proc {
		return Await(ActionChannel(pattern, Sliding(1)), func(ch *Channel) Proc {
			return Forever(func() Proc {
				return Do(Take(ch), func(msg any) Proc {
					return Seq(Fork(worker, withMsg(args, msg)...), Delay(d))
				})
			})
		})
	})
}

// Debounce forks worker with the last message matching pattern once no
// further match has arrived for d.
func Debounce(d time.Duration, pattern any, worker Saga, args ...any) Effect {
	var settle func(msg any) Proc
	settle = func(msg any) Proc {
		return Await(Race(map[string]Effect{
			"debounce": Delay(d, true),
			"latest":   Take(pattern),
		}), func(won map[string]any) Proc {
			if latest, ok := won["latest"]; ok {
				return settle(latest)
			}
			return Then(Fork(worker, withMsg(args, msg)...), Return(nil))
		})
	}
	return Fork(func(...any) Proc {
		return Forever(func() Proc {
			return Do(Take(pattern), settle)
		})
	})
}

// Retry calls fn up to attempts times, waiting backoff between failed
// attempts, and resolves with the first success or the last error.
func Retry(attempts int, backoff time.Duration, fn Fn, args ...any) Effect {
	return CallSaga(func(...any) Proc {
		return Loop(1, func(n int) Step[int] {
			return kont.Bind(Perform(Call(fn, args...)), func(r Result) Step[int] {
				if r.Err == nil || isInterrupt(r.Err) || n >= attempts {
					return Break[int](r)
				}
				return DoStep(Delay(backoff), func(any) Step[int] { return Continue(n + 1) })
			})
		})
	})
}
