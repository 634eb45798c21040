// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// DefaultBufferLimit is the capacity used by buffer constructors
// when given a non-positive limit.
const DefaultBufferLimit = 10

// Buffer is the storage strategy behind a [Channel].
//
// Put returns nil when the message was stored, [iox.ErrWouldBlock] when the
// policy discards it, and [ErrBufferOverflow] when the policy treats the
// overflow as fatal. Take returns [iox.ErrWouldBlock] on an empty buffer.
type Buffer interface {
	IsEmpty() bool
	Put(msg any) error
	Take() (any, error)
	Flush() []any
}

// ring is a counted FIFO over a bounded lfq SPSC queue.
// The runtime is single-threaded, so one goroutine is both producer and
// consumer; the count enforces the logical limit independently of the
// power-of-two ring capacity.
type ring struct {
	q     *lfq.SPSC[any]
	limit int
	n     int
	slot  any
}

func newRing(limit int) *ring {
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	q := new(lfq.SPSC[any])
	q.Init(ceilPow2(limit + 1))
	return &ring{q: q, limit: limit}
}

func ceilPow2(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

func (r *ring) full() bool { return r.n >= r.limit }

func (r *ring) push(msg any) error {
	if r.full() {
		return iox.ErrWouldBlock
	}
	r.slot = msg
	if err := r.q.Enqueue(&r.slot); err != nil {
		r.slot = nil
		return err
	}
	r.slot = nil
	r.n++
	return nil
}

func (r *ring) pop() (any, error) {
	if r.n == 0 {
		return nil, iox.ErrWouldBlock
	}
	v, err := r.q.Dequeue()
	if err != nil {
		return nil, err
	}
	r.n--
	return v, nil
}

func (r *ring) drain() []any {
	if r.n == 0 {
		return nil
	}
	out := make([]any, 0, r.n)
	for r.n > 0 {
		v, err := r.pop()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// grow doubles the ring, preserving order.
func (r *ring) grow() {
	items := r.drain()
	next := newRing(r.limit * 2)
	for _, v := range items {
		_ = next.push(v)
	}
	*r = *next
}

// overflow selects what a ringBuffer does with a put past its limit.
type overflow uint8

const (
	overflowThrow overflow = iota
	overflowDrop
	overflowSlide
	overflowExpand
)

type ringBuffer struct {
	r      *ring
	policy overflow
}

func (b *ringBuffer) IsEmpty() bool { return b.r.n == 0 }

func (b *ringBuffer) Put(msg any) error {
	if !b.r.full() {
		return b.r.push(msg)
	}
	switch b.policy {
	case overflowDrop:
		return iox.ErrWouldBlock
	case overflowSlide:
		if _, err := b.r.pop(); err != nil {
			return err
		}
		return b.r.push(msg)
	case overflowExpand:
		b.r.grow()
		return b.r.push(msg)
	default:
		return ErrBufferOverflow
	}
}

func (b *ringBuffer) Take() (any, error) { return b.r.pop() }

func (b *ringBuffer) Flush() []any { return b.r.drain() }

// Fixed returns a buffer holding at most limit messages.
// A put past the limit fails with ErrBufferOverflow.
func Fixed(limit int) Buffer {
	return &ringBuffer{r: newRing(limit), policy: overflowThrow}
}

// Dropping returns a buffer that discards new messages once limit is reached.
func Dropping(limit int) Buffer {
	return &ringBuffer{r: newRing(limit), policy: overflowDrop}
}

// Sliding returns a buffer that evicts its oldest message to admit a new one
// once limit is reached.
func Sliding(limit int) Buffer {
	return &ringBuffer{r: newRing(limit), policy: overflowSlide}
}

// Expanding returns a buffer whose capacity doubles whenever it is exceeded.
func Expanding(limit int) Buffer {
	return &ringBuffer{r: newRing(limit), policy: overflowExpand}
}

type noneBuffer struct{}

// None returns the zero-capacity buffer. A channel backed by it only
// delivers to takers already waiting; other messages are dropped.
func None() Buffer { return noneBuffer{} }

func (noneBuffer) IsEmpty() bool      { return true }
func (noneBuffer) Put(any) error      { return iox.ErrWouldBlock }
func (noneBuffer) Take() (any, error) { return nil, iox.ErrWouldBlock }
func (noneBuffer) Flush() []any       { return nil }
