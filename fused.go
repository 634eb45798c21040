// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"fmt"

	"code.hybscloud.com/kont"
)

// Perform yields e and resumes with its raw Result, errors included.
func Perform(e Effect) Proc {
	return kont.Perform(perform{eff: e})
}

// Return completes a Proc with v.
func Return(v any) Proc {
	return kont.Pure(Result{Value: v})
}

// Throw completes a Proc with err, as if it were uncaught.
func Throw(err error) Proc {
	return kont.Pure(Result{Err: err})
}

// Do yields e and passes its value to f.
// An error short-circuits the rest of the Proc.
// Fuses Perform(e) + Bind.
func Do(e Effect, f func(v any) Proc) Proc {
	return kont.Bind(Perform(e), func(r Result) Proc {
		if r.Err != nil {
			return kont.Pure(r)
		}
		return f(r.Value)
	})
}

// Await is Do with the value asserted to T. A nil value becomes the zero T.
func Await[T any](e Effect, f func(v T) Proc) Proc {
	return Do(e, func(v any) Proc {
		if v == nil {
			var zero T
			return f(zero)
		}
		t, ok := v.(T)
		if !ok {
			var zero T
			return Throw(fmt.Errorf("saga: %s resolved with %T, want %T", e, v, zero))
		}
		return f(t)
	})
}

// Then yields e and continues with next, discarding the value.
// Fuses Perform(e) + Then.
func Then(e Effect, next Proc) Proc {
	return Do(e, func(any) Proc { return next })
}

// Seq yields effects in order and returns the value of the last one.
func Seq(effects ...Effect) Proc {
	if len(effects) == 0 {
		return Return(nil)
	}
	if len(effects) == 1 {
		return Do(effects[0], Return)
	}
	return Do(effects[0], func(any) Proc { return Seq(effects[1:]...) })
}

// Try yields e and continues with ok on success or fail on error.
// Cancellation and termination are not errors and pass through.
func Try(e Effect, ok func(v any) Proc, fail func(err error) Proc) Proc {
	return kont.Bind(Perform(e), func(r Result) Proc {
		switch {
		case r.Err == nil:
			return ok(r.Value)
		case isInterrupt(r.Err):
			return kont.Pure(r)
		default:
			return fail(r.Err)
		}
	})
}

// Catch runs body and hands an uncaught error to handler.
func Catch(body Proc, handler func(err error) Proc) Proc {
	return kont.Bind(body, func(r Result) Proc {
		if r.Err == nil || isInterrupt(r.Err) {
			return kont.Pure(r)
		}
		return handler(r.Err)
	})
}

// Finally runs cleanup after body however body ends: returning, failing,
// or being cancelled. cleanup may yield effects and query Cancelled.
// body's outcome stands unless cleanup fails.
func Finally(body Proc, cleanup func() Proc) Proc {
	return kont.Bind(body, func(r Result) Proc {
		return kont.Bind(cleanup(), func(c Result) Proc {
			if c.Err != nil && !isInterrupt(c.Err) {
				return kont.Pure(c)
			}
			return kont.Pure(r)
		})
	})
}
