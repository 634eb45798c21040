// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBufferOverflow is returned by a Fixed buffer asked to hold more
	// than its limit. It is fatal to the Task that caused it.
	ErrBufferOverflow = errors.New("saga: channel's buffer overflow")

	// ErrCancelled is returned by Task.Wait and Future.Wait for a cancelled
	// Task or Future.
	ErrCancelled = errors.New("saga: cancelled")

	// ErrUnhandledEffect is the failure of a Proc that performs an
	// operation the interpreter does not know.
	ErrUnhandledEffect = errors.New("saga: unhandled effect")

	// ErrInvalidPattern is the failure of a Take with an unsupported pattern.
	ErrInvalidPattern = errors.New("saga: invalid pattern")

	// ErrNilTask is the failure of a Join given a nil Task.
	ErrNilTask = errors.New("saga: nil task")

	// ErrNilChannel is the failure of a PutTo or Flush given a nil Channel.
	ErrNilChannel = errors.New("saga: nil channel")
)

// interruption unwinds a Proc without being an error of the Proc itself:
// Try and Catch pass it through, Finally still runs.
type interruption struct {
	reason string
}

func (i *interruption) Error() string { return "saga: " + i.reason }

var (
	errCancel    = &interruption{reason: "task cancelled"}
	errTerminate = &interruption{reason: "terminated by END"}
)

func isInterrupt(err error) bool {
	var i *interruption
	return errors.As(err, &i)
}

// PanicError wraps a value recovered from user code.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("saga: panic: %v", e.Value) }

func recoverError(r any) error {
	if err, ok := r.(error); ok {
		return &PanicError{Value: err}
	}
	return &PanicError{Value: r}
}

// Unwrap returns the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Frame is one entry of a saga stack.
type Frame struct {
	Task     string
	Location string
	Effect   string
}

func (f Frame) String() string {
	var b strings.Builder
	b.WriteString(f.Task)
	if f.Location != "" {
		b.WriteString(" (")
		b.WriteString(f.Location)
		b.WriteString(")")
	}
	if f.Effect != "" {
		b.WriteString(" at ")
		b.WriteString(f.Effect)
	}
	return b.String()
}

// Stack lists the Tasks an uncaught error travelled through,
// from the failing Task up to the root.
type Stack []Frame

func (s Stack) String() string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The above error occurred in task ")
	b.WriteString(s[0].String())
	for _, f := range s[1:] {
		b.WriteString("\n    created by ")
		b.WriteString(f.String())
	}
	return b.String()
}
