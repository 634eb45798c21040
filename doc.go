// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package saga provides a cooperative, effect-driven task runtime via algebraic
// effects on [code.hybscloud.com/kont].
//
// A saga is a step-sequence ([Proc]) that yields inert [Effect] values. The
// runtime interprets each effect, resumes the step-sequence with its outcome,
// and manages a tree of [Task] values with propagating cancellation.
//
// # Architecture
//
//   - Buffers: [Fixed], [Dropping], [Sliding] and [Expanding] store messages in lock-free rings via [code.hybscloud.com/lfq]; [None] stores nothing.
//   - Channels: [Channel] is a FIFO rendezvous; END closes it. The ambient input of a [Runtime] is multicast to every matching Take.
//   - Scheduler: [Scheduler] is a synchronous trampoline; re-entrant puts run after the unit of work in progress.
//   - Tasks: forked children are attached to their parent. A Task ends once its main step-sequence and every child have ended.
//   - Errors: an uncaught error aborts the Task, cancels its children and propagates to the parent, or to the error handler at the root. Cancellation is not an error.
//
// # API Topologies
//
//   - Effects: [Take], [TakeMaybe], [Put], [PutResolve], [PutTo], [Call], [CallSaga], [CPS], [Fork], [Spawn], [Join], [Cancel], [CancelSelf], [Select], [Race], [All], [AllMap], [Delay], [GetContext], [SetContext], [ActionChannel], [Flush], [Cancelled].
//   - Composition: [Do], [Await], [Then], [Seq], [Try], [Catch], [Finally], [Return], [Throw].
//   - Recursive: [Forever] and [Loop] for trampoline-based iterative sagas.
//   - Helpers: [TakeEvery], [TakeLatest], [TakeLeading], [Throttle], [Debounce], [Retry].
//
// # Integration
//
//   - Host: [New] with [WithDispatch], [WithState] and [WithErrorHandler] binds a runtime to a host store. [Runtime.Emit] feeds the ambient input from any goroutine.
//   - Futures: a [Call] whose function returns a [*Future] suspends until it settles; [Go] runs blocking work on a goroutine.
//   - Observability: structured logs via [log/slog] and one OpenTelemetry span per Task.
//
// # Example
//
//	echo := func(...any) saga.Proc {
//		return saga.Forever(func() saga.Proc {
//			return saga.Do(saga.Take("*"), func(msg any) saga.Proc {
//				return saga.Then(saga.Put(saga.Action{Type: "ECHO", Payload: msg}), saga.Return(nil))
//			})
//		})
//	}
//	rt := saga.New(saga.WithDispatch(func(msg any) any { fmt.Println(msg); return nil }))
//	task := rt.Run(echo)
//	rt.Emit("X")
//	rt.Close()
//	<-task.Done()
package saga
