// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"maps"
	"slices"
)

// race runs effects under child callbacks, in key order. The first child
// to settle wins: the others are cancelled and cb settles with
// {key: value}, or with the winner's error.
func (rt *Runtime) race(d *driver, effects map[string]Effect, cb *callback) {
	keys := slices.Sorted(maps.Keys(effects))
	if len(keys) == 0 {
		cb.settle(Result{Value: map[string]any{}})
		return
	}
	children := make([]*callback, 0, len(keys))
	cancelAll := func() {
		for _, c := range children {
			c.abort()
		}
	}
	cb.cancel = cancelAll
	for _, k := range keys {
		if cb.settled {
			return
		}
		c := &callback{}
		c.resolve = func(r Result) {
			if cb.settled {
				return
			}
			cancelAll()
			if r.Err != nil {
				cb.settle(Result{Err: r.Err})
				return
			}
			cb.settle(Result{Value: map[string]any{k: r.Value}})
		}
		children = append(children, c)
		rt.runEffect(d, effects[k], c)
	}
}

// all starts n children and settles cb once every one has succeeded.
// The first failure cancels the children still running and settles cb
// with that failure. keys shapes the value as a map; nil keeps a list.
func (rt *Runtime) all(n int, keys []string, start func(i int, c *callback), cb *callback) {
	if n == 0 {
		cb.settle(Result{Value: shape(nil, keys)})
		return
	}
	results := make([]any, n)
	remaining := n
	children := make([]*callback, 0, n)
	cancelAll := func() {
		for _, c := range children {
			c.abort()
		}
	}
	cb.cancel = cancelAll
	for i := range n {
		if cb.settled {
			return
		}
		c := &callback{}
		c.resolve = func(r Result) {
			if cb.settled {
				return
			}
			if r.Err != nil {
				cancelAll()
				cb.settle(Result{Err: r.Err})
				return
			}
			results[i] = r.Value
			remaining--
			if remaining == 0 {
				cb.settle(Result{Value: shape(results, keys)})
			}
		}
		children = append(children, c)
		start(i, c)
	}
}

func shape(results []any, keys []string) any {
	if keys == nil {
		if results == nil {
			return []any{}
		}
		return results
	}
	m := make(map[string]any, len(keys))
	for i, k := range keys {
		m[k] = results[i]
	}
	return m
}
