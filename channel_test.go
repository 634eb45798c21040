// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga_test

import (
	"errors"
	"reflect"
	"testing"

	"code.hybscloud.com/saga"
)

func TestChannelTakeBeforePut(t *testing.T) {
	ch := saga.NewChannel(nil)
	calls := 0
	var got any
	ch.Take(func(msg any) {
		calls++
		got = msg
	})
	if calls != 0 {
		t.Fatalf("taker ran before put")
	}
	if err := ch.Put("m"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Served synchronously, exactly once, and not buffered.
	if calls != 1 || got != "m" {
		t.Fatalf("taker got %v after %d calls, want m once", got, calls)
	}
	ch.Flush(func(msg any) {
		if msgs, ok := msg.([]any); !ok || len(msgs) != 0 {
			t.Fatalf("Flush got %v, want empty buffer", msg)
		}
	})
}

func TestChannelCloseServesEndInOrder(t *testing.T) {
	ch := saga.NewChannel(nil)
	var order []int
	for i := range 3 {
		ch.Take(func(msg any) {
			if !saga.IsEnd(msg) {
				t.Fatalf("taker %d got %v, want END", i, msg)
			}
			order = append(order, i)
		})
	}
	if ch.Pending() != 3 {
		t.Fatalf("Pending got %d, want 3", ch.Pending())
	}
	ch.Close()
	ch.Close()
	if !reflect.DeepEqual(order, []int{0, 1, 2}) {
		t.Fatalf("END order got %v, want [0 1 2]", order)
	}
	if !ch.Closed() {
		t.Fatalf("channel not closed")
	}

	// Puts on a closed channel are no-ops; takes get END synchronously.
	if err := ch.Put(1); err != nil {
		t.Fatalf("Put on closed channel: %v", err)
	}
	var got any
	ch.Take(func(msg any) { got = msg })
	if !saga.IsEnd(got) {
		t.Fatalf("Take on closed channel got %v, want END", got)
	}
}

func TestChannelPutEndCloses(t *testing.T) {
	ch := saga.NewChannel(saga.Fixed(4))
	if err := ch.Put(1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ch.Put(saga.END); err != nil {
		t.Fatalf("Put(END): %v", err)
	}
	// Buffered messages drain before END.
	var got []any
	for range 2 {
		ch.Take(func(msg any) { got = append(got, msg) })
	}
	if len(got) != 2 || got[0] != 1 || !saga.IsEnd(got[1]) {
		t.Fatalf("takes got %v, want [1 END]", got)
	}
	ch.Flush(func(msg any) {
		if !saga.IsEnd(msg) {
			t.Fatalf("Flush of closed empty channel got %v, want END", msg)
		}
	})
}

func TestChannelFixedOverflow(t *testing.T) {
	ch := saga.NewChannel(saga.Fixed(1))
	if err := ch.Put(1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ch.Put(2); !errors.Is(err, saga.ErrBufferOverflow) {
		t.Fatalf("Put past limit: got %v, want ErrBufferOverflow", err)
	}
}

func TestChannelNoneDropsWithoutTaker(t *testing.T) {
	ch := saga.NewChannel(saga.None())
	if err := ch.Put("lost"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got any
	ch.Take(func(msg any) { got = msg })
	if got != nil {
		t.Fatalf("taker got %v from none buffer, want nothing", got)
	}
	if err := ch.Put("kept"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got != "kept" {
		t.Fatalf("taker got %v, want kept", got)
	}
}
