// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import "maps"

// scope is an immutable layer of saga context. A Task reads through its
// scope chain; SetContext pushes a new layer on the Task only, so
// children keep the snapshot taken when they were forked.
type scope struct {
	parent *scope
	values map[string]any
}

func (s *scope) lookup(key string) (any, bool) {
	for ; s != nil; s = s.parent {
		if v, ok := s.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) with(values map[string]any) *scope {
	if len(values) == 0 {
		return s
	}
	return &scope{parent: s, values: maps.Clone(values)}
}
