// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga_test

import (
	"testing"

	"code.hybscloud.com/saga"
)

// BenchmarkChannelPutTake measures a buffered put followed by a take.
func BenchmarkChannelPutTake(b *testing.B) {
	ch := saga.NewChannel(saga.Fixed(saga.DefaultBufferLimit))
	var got any
	take := func(msg any) { got = msg }
	b.ReportAllocs()
	for b.Loop() {
		if err := ch.Put(1); err != nil {
			b.Fatal(err)
		}
		ch.Take(take)
	}
	_ = got
}

// BenchmarkEcho measures an Emit answered by one Take and one Put.
func BenchmarkEcho(b *testing.B) {
	rt := saga.New(saga.WithDispatch(func(any) any { return nil }))
	task := rt.Run(echo)
	b.ReportAllocs()
	for b.Loop() {
		rt.Emit(1)
	}
	rt.Close()
	waitTask(b, task)
}

// BenchmarkForkJoin measures forking a child and joining it.
func BenchmarkForkJoin(b *testing.B) {
	rt := saga.New()
	child := func(...any) saga.Proc { return saga.Return(1) }
	parent := func(...any) saga.Proc {
		return saga.Await(saga.Fork(child), func(c *saga.Task) saga.Proc {
			return saga.Do(saga.Join(c), saga.Return)
		})
	}
	b.ReportAllocs()
	for b.Loop() {
		rt.Run(parent)
	}
}

// BenchmarkLoop measures a thousand iterations of a stack-safe Loop.
func BenchmarkLoop(b *testing.B) {
	rt := saga.New()
	count := func(...any) saga.Proc {
		return saga.Loop(0, func(n int) saga.Step[int] {
			if n == 1000 {
				return saga.Break[int](saga.Result{Value: n})
			}
			return saga.Continue(n + 1)
		})
	}
	b.ReportAllocs()
	for b.Loop() {
		rt.Run(count)
	}
}
