// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import "slices"

// multicast is the ambient input channel of a [Runtime].
// Every put is offered to all matching takers registered before the put;
// messages nobody is waiting for are discarded.
type multicast struct {
	takers []*taker
	closed bool
}

func newMulticast() *multicast { return &multicast{} }

func (m *multicast) put(msg any) {
	if m.closed {
		return
	}
	if IsEnd(msg) {
		m.Close()
		return
	}
	// takers registered while serving this message wait for the next one
	snapshot := slices.Clone(m.takers)
	for _, t := range snapshot {
		if t.drop == nil {
			continue
		}
		if t.match != nil && !t.match(msg) {
			continue
		}
		t.cancel()
		t.fn(msg)
	}
}

func (m *multicast) take(t *taker) {
	if m.closed {
		t.fn(END)
		return
	}
	t.drop = func() { m.remove(t) }
	m.takers = append(m.takers, t)
}

func (m *multicast) remove(t *taker) {
	m.takers = slices.DeleteFunc(m.takers, func(x *taker) bool { return x == t })
}

// Close ends the input: every waiting taker receives END.
func (m *multicast) Close() {
	if m.closed {
		return
	}
	m.closed = true
	takers := m.takers
	m.takers = nil
	for _, t := range takers {
		t.drop = nil
		t.fn(END)
	}
}
