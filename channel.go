// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"slices"

	"code.hybscloud.com/iox"
)

// End is the type of [END].
type End struct{}

func (End) String() string { return "END" }

// END is the terminal message of a channel. Putting END closes the channel;
// takers of a closed channel receive END.
var END = End{}

// IsEnd reports whether msg is the END marker.
func IsEnd(msg any) bool {
	_, ok := msg.(End)
	return ok
}

// taker is a pending consumer registered on a channel.
// match is nil for point-to-point channels.
type taker struct {
	fn    func(msg any)
	match func(msg any) bool
	drop  func()
}

// cancel unregisters the taker from whatever channel holds it.
func (t *taker) cancel() {
	if t.drop != nil {
		d := t.drop
		t.drop = nil
		d()
	}
}

// Chan is a channel a saga can Take from. [*Channel] is the only
// implementation outside the runtime.
type Chan interface {
	take(t *taker)
	Close()
}

// Channel is a FIFO rendezvous between producers and consumers.
// A waiting taker is served directly; otherwise the message is buffered.
// Channels are not goroutine-safe: use them from sagas, or from the host
// through [Runtime.EventChannel].
type Channel struct {
	buf     Buffer
	takers  []*taker
	closed  bool
	onClose []func()
}

// NewChannel returns a channel over buf. A nil buf means Expanding(DefaultBufferLimit).
func NewChannel(buf Buffer) *Channel {
	if buf == nil {
		buf = Expanding(DefaultBufferLimit)
	}
	return &Channel{buf: buf}
}

// Put delivers msg to the oldest waiting taker or stores it in the buffer.
// Putting END closes the channel. Put on a closed channel is a no-op.
// The only error is a fatal buffer overflow.
func (c *Channel) Put(msg any) error {
	if c.closed {
		return nil
	}
	if IsEnd(msg) {
		c.Close()
		return nil
	}
	if len(c.takers) > 0 {
		t := c.takers[0]
		c.takers[0] = nil
		c.takers = c.takers[1:]
		t.drop = nil
		t.fn(msg)
		return nil
	}
	if err := c.buf.Put(msg); err != nil && !iox.IsWouldBlock(err) {
		return err
	}
	return nil
}

// Take invokes cb with the next message, synchronously if one is buffered
// or the channel is closed, otherwise once a message is put.
func (c *Channel) Take(cb func(msg any)) {
	c.take(&taker{fn: cb})
}

func (c *Channel) take(t *taker) {
	if !c.buf.IsEmpty() {
		msg, err := c.buf.Take()
		if err == nil {
			t.fn(msg)
			return
		}
	}
	if c.closed {
		t.fn(END)
		return
	}
	t.drop = func() { c.remove(t) }
	c.takers = append(c.takers, t)
}

func (c *Channel) remove(t *taker) {
	c.takers = slices.DeleteFunc(c.takers, func(x *taker) bool { return x == t })
}

// Flush invokes cb with every buffered message, or with END when the
// channel is closed and empty.
func (c *Channel) Flush(cb func(msg any)) {
	if c.closed && c.buf.IsEmpty() {
		cb(END)
		return
	}
	msgs := c.buf.Flush()
	if msgs == nil {
		msgs = []any{}
	}
	cb(msgs)
}

// Close closes the channel and serves every pending taker END in
// registration order.
func (c *Channel) Close() {
	if c.closed {
		return
	}
	c.closed = true
	takers := c.takers
	c.takers = nil
	for _, t := range takers {
		t.drop = nil
		t.fn(END)
	}
	hooks := c.onClose
	c.onClose = nil
	for _, h := range hooks {
		h()
	}
}

// Closed reports whether the channel has been closed.
func (c *Channel) Closed() bool { return c.closed }

// Pending returns the number of takers waiting on the channel.
func (c *Channel) Pending() int { return len(c.takers) }
