// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"code.hybscloud.com/kont"
)

// Step is one iteration of a Loop: Left continues with the next state,
// Right finishes with a Result.
type Step[S any] = kont.Eff[kont.Either[S, Result]]

// Loop runs a recursive Proc.
// step returns Left(nextState) to continue or Right(result) to finish.
// A Right result carrying an error ends the loop with that error.
func Loop[S any](initial S, step func(S) Step[S]) Proc {
	return kont.Bind(step(initial), func(e kont.Either[S, Result]) Proc {
		if left, ok := e.GetLeft(); ok {
			return Loop(left, step)
		}
		right, _ := e.GetRight()
		return kont.Pure(right)
	})
}

// Continue is the Left of a Loop step.
func Continue[S any](next S) Step[S] {
	return kont.Pure(kont.Left[S, Result](next))
}

// Break is the Right of a Loop step.
func Break[S any](r Result) Step[S] {
	return kont.Pure(kont.Right[S](r))
}

// DoStep yields e within a Loop step and passes its value to f.
// An error breaks the loop with that error.
func DoStep[S any](e Effect, f func(v any) Step[S]) Step[S] {
	return kont.Bind(Perform(e), func(r Result) Step[S] {
		if r.Err != nil {
			return Break[S](r)
		}
		return f(r.Value)
	})
}

// Forever repeats body until it fails or is interrupted.
func Forever(body func() Proc) Proc {
	return kont.Bind(body(), func(r Result) Proc {
		if r.Err != nil {
			return kont.Pure(r)
		}
		return Forever(body)
	})
}
