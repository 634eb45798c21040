// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"code.hybscloud.com/kont"
)

// Result is what an effect resumes a Proc with, and what a Proc returns.
// Exactly one of Value and Err is meaningful.
type Result struct {
	Value any
	Err   error
}

// Proc is a step-sequence: a kont computation whose operations are saga
// effects. Build Procs with [Do], [Then], [Try], [Finally] and friends.
type Proc = kont.Eff[Result]

// Saga constructs a Proc. Fork, Spawn, CallSaga and Runtime.Run take Sagas
// so that every Task steps a fresh Proc.
type Saga func(args ...any) Proc

// Fn is a plain function invoked by Call. It may return a *Future to
// suspend the caller, or a Proc to be driven as a nested step-sequence.
type Fn func(args ...any) (any, error)

// Effect is an inert instruction interpreted by the runtime.
// The set of effects is closed.
type Effect interface {
	fmt.Stringer
	isEffect()
}

// perform is the single kont operation a Proc performs.
// It carries the saga Effect to the interpreter.
type perform struct {
	kont.Phantom[Result]
	eff Effect
}

// TakeEffect waits for a message on Channel, or on the ambient input when
// Channel is nil. END terminates the Proc unless Maybe is set.
type TakeEffect struct {
	Pattern any
	Channel Chan
	Maybe   bool
}

// PutEffect dispatches Message to the host, or puts it on Channel.
// With Resolve, a *Future returned by the host is awaited.
type PutEffect struct {
	Channel *Channel
	Message any
	Resolve bool
	// ToChannel marks a PutTo; a nil Channel then fails with ErrNilChannel
	// instead of dispatching to the host.
	ToChannel bool
}

// CallEffect invokes Fn, or drives Saga as a nested step-sequence.
type CallEffect struct {
	Fn   Fn
	Saga Saga
	Args []any
}

// CPSEffect invokes Fn with a node-style callback.
type CPSEffect struct {
	Fn   func(cb func(any, error), args ...any)
	Args []any
}

// ForkEffect starts Saga as a child Task; Detached makes it a root-level Task.
type ForkEffect struct {
	Saga     Saga
	Args     []any
	Detached bool
}

// JoinEffect waits for Tasks to terminate.
type JoinEffect struct {
	Tasks []*Task
}

// CancelEffect cancels Tasks, or the current Task when Self is set.
type CancelEffect struct {
	Tasks []*Task
	Self  bool
}

// SelectEffect reads the host state through Selector.
type SelectEffect struct {
	Selector func(state any, args ...any) any
	Args     []any
}

// RaceEffect runs Effects concurrently; the first to settle wins.
type RaceEffect struct {
	Effects map[string]Effect
}

// AllEffect runs Effects concurrently and waits for all of them.
// Keys is nil for the list form.
type AllEffect struct {
	Effects []Effect
	Keys    []string
}

// DelayEffect resolves with Value after Duration.
type DelayEffect struct {
	Duration time.Duration
	Value    any
}

// GetContextEffect reads a saga context value.
type GetContextEffect struct {
	Key string
}

// SetContextEffect shadows saga context values for the current Task.
type SetContextEffect struct {
	Values map[string]any
}

// ActionChannelEffect buffers ambient messages matching Pattern in a new Channel.
type ActionChannelEffect struct {
	Pattern any
	Buffer  Buffer
}

// FlushEffect drains a Channel's buffer.
type FlushEffect struct {
	Channel *Channel
}

// CancelledEffect reports whether the current Proc is being cancelled.
type CancelledEffect struct{}

func (TakeEffect) isEffect()          {}
func (PutEffect) isEffect()           {}
func (CallEffect) isEffect()          {}
func (CPSEffect) isEffect()           {}
func (ForkEffect) isEffect()          {}
func (JoinEffect) isEffect()          {}
func (CancelEffect) isEffect()        {}
func (SelectEffect) isEffect()        {}
func (RaceEffect) isEffect()          {}
func (AllEffect) isEffect()           {}
func (DelayEffect) isEffect()         {}
func (GetContextEffect) isEffect()    {}
func (SetContextEffect) isEffect()    {}
func (ActionChannelEffect) isEffect() {}
func (FlushEffect) isEffect()         {}
func (CancelledEffect) isEffect()     {}

func (e TakeEffect) String() string {
	name := "take"
	if e.Maybe {
		name = "takeMaybe"
	}
	if e.Channel != nil {
		return name + "(channel)"
	}
	return fmt.Sprintf("%s(%v)", name, describePattern(e.Pattern))
}

func (e PutEffect) String() string {
	name := "put"
	if e.Resolve {
		name = "putResolve"
	}
	if e.Channel != nil || e.ToChannel {
		return fmt.Sprintf("%s(channel, %v)", name, e.Message)
	}
	return fmt.Sprintf("%s(%v)", name, e.Message)
}

func (e CallEffect) String() string {
	if e.Saga != nil {
		return "call(" + funcName(e.Saga) + ")"
	}
	return "call(" + funcName(e.Fn) + ")"
}

func (e CPSEffect) String() string { return "cps(" + funcName(e.Fn) + ")" }

func (e ForkEffect) String() string {
	if e.Detached {
		return "spawn(" + funcName(e.Saga) + ")"
	}
	return "fork(" + funcName(e.Saga) + ")"
}

func (e JoinEffect) String() string { return "join(" + describeTasks(e.Tasks) + ")" }

func (e CancelEffect) String() string {
	if e.Self {
		return "cancel(self)"
	}
	return "cancel(" + describeTasks(e.Tasks) + ")"
}

func (e SelectEffect) String() string { return "select(" + funcName(e.Selector) + ")" }

func (e RaceEffect) String() string {
	keys := slices.Sorted(maps.Keys(e.Effects))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Effects[k].String()
	}
	return "race({" + strings.Join(parts, ", ") + "})"
}

func (e AllEffect) String() string {
	parts := make([]string, len(e.Effects))
	for i, sub := range e.Effects {
		if e.Keys != nil {
			parts[i] = e.Keys[i] + ": " + sub.String()
		} else {
			parts[i] = sub.String()
		}
	}
	return "all([" + strings.Join(parts, ", ") + "])"
}

func (e DelayEffect) String() string { return "delay(" + e.Duration.String() + ")" }

func (e GetContextEffect) String() string { return "getContext(" + e.Key + ")" }

func (e SetContextEffect) String() string {
	return "setContext(" + strings.Join(slices.Sorted(maps.Keys(e.Values)), ", ") + ")"
}

func (e ActionChannelEffect) String() string {
	return fmt.Sprintf("actionChannel(%v)", describePattern(e.Pattern))
}

func (FlushEffect) String() string { return "flush(channel)" }

func (CancelledEffect) String() string { return "cancelled()" }

func describePattern(p any) any {
	switch v := p.(type) {
	case nil:
		return Wildcard
	case MatchFunc, func(any) bool:
		return "<predicate>"
	default:
		return v
	}
}

func describeTasks(ts []*Task) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		if t == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = t.Name()
	}
	return strings.Join(parts, ", ")
}

// Take waits for the next ambient message matching pattern, or for the
// next message of pattern when it is a [Chan].
func Take(pattern any) Effect {
	if ch, ok := pattern.(Chan); ok {
		return TakeEffect{Channel: ch}
	}
	return TakeEffect{Pattern: pattern}
}

// TakeMaybe is Take that resolves with END instead of terminating the Proc.
func TakeMaybe(pattern any) Effect {
	e := Take(pattern).(TakeEffect)
	e.Maybe = true
	return e
}

// Put dispatches msg to the host.
func Put(msg any) Effect { return PutEffect{Message: msg} }

// PutResolve dispatches msg and waits for the host's result.
func PutResolve(msg any) Effect { return PutEffect{Message: msg, Resolve: true} }

// PutTo puts msg on ch. A nil ch fails with ErrNilChannel.
func PutTo(ch *Channel, msg any) Effect {
	return PutEffect{Channel: ch, Message: msg, ToChannel: true}
}

// Call invokes fn with args.
func Call(fn Fn, args ...any) Effect { return CallEffect{Fn: fn, Args: args} }

// CallSaga drives s as a nested step-sequence of the current Task.
func CallSaga(s Saga, args ...any) Effect { return CallEffect{Saga: s, Args: args} }

// CPS invokes fn and waits for its callback.
func CPS(fn func(cb func(any, error), args ...any), args ...any) Effect {
	return CPSEffect{Fn: fn, Args: args}
}

// Fork starts s as an attached child Task and resolves with its *Task.
func Fork(s Saga, args ...any) Effect { return ForkEffect{Saga: s, Args: args} }

// Spawn starts s as a detached, root-level Task and resolves with its *Task.
func Spawn(s Saga, args ...any) Effect { return ForkEffect{Saga: s, Args: args, Detached: true} }

// Join waits for tasks. One task resolves with its result, several with
// a []any of results. An aborted task re-throws its error; a cancelled
// task contributes nil.
func Join(tasks ...*Task) Effect { return JoinEffect{Tasks: tasks} }

// Cancel cancels tasks. It never blocks.
func Cancel(tasks ...*Task) Effect { return CancelEffect{Tasks: tasks} }

// CancelSelf cancels the current Task.
func CancelSelf() Effect { return CancelEffect{Self: true} }

// Select resolves with selector applied to the host state.
func Select(selector func(state any, args ...any) any, args ...any) Effect {
	return SelectEffect{Selector: selector, Args: args}
}

// Race resolves with a single-entry map of the first effect to settle.
func Race(effects map[string]Effect) Effect { return RaceEffect{Effects: effects} }

// All resolves with the []any of every effect's result, failing fast.
func All(effects ...Effect) Effect { return AllEffect{Effects: effects} }

// AllMap is All over labelled effects; it resolves with a map[string]any.
func AllMap(effects map[string]Effect) Effect {
	keys := slices.Sorted(maps.Keys(effects))
	list := make([]Effect, len(keys))
	for i, k := range keys {
		list[i] = effects[k]
	}
	return AllEffect{Effects: list, Keys: keys}
}

// Delay resolves with value (or nil) after d.
func Delay(d time.Duration, value ...any) Effect {
	e := DelayEffect{Duration: d}
	if len(value) > 0 {
		e.Value = value[0]
	}
	return e
}

// GetContext resolves with the saga context value of key, or nil.
func GetContext(key string) Effect { return GetContextEffect{Key: key} }

// SetContext shadows saga context values for the current Task.
func SetContext(values map[string]any) Effect { return SetContextEffect{Values: values} }

// ActionChannel resolves with a Channel fed by ambient messages matching
// pattern. A nil buf means Fixed(DefaultBufferLimit).
func ActionChannel(pattern any, buf Buffer) Effect {
	return ActionChannelEffect{Pattern: pattern, Buffer: buf}
}

// Flush resolves with the buffered messages of ch, or END.
func Flush(ch *Channel) Effect { return FlushEffect{Channel: ch} }

// Cancelled resolves with whether the current Proc is being cancelled.
func Cancelled() Effect { return CancelledEffect{} }
