// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import "fmt"

// Wildcard is the pattern matching every message.
const Wildcard = "*"

// Action is the conventional message carried through the ambient input.
type Action struct {
	Type    string
	Payload any
	Error   bool
	Meta    any
}

// ActionType implements [Typed].
func (a Action) ActionType() string { return a.Type }

// Typed is implemented by messages that carry a type string.
// String patterns compare against ActionType.
type Typed interface {
	ActionType() string
}

// MatchFunc is a predicate pattern.
type MatchFunc func(msg any) bool

// typeOf returns the string a pattern compares against.
func typeOf(msg any) (string, bool) {
	switch m := msg.(type) {
	case *Action:
		if m == nil {
			return "", false
		}
		return m.Type, true
	case Typed:
		return m.ActionType(), true
	case string:
		return m, true
	}
	return "", false
}

// matcher compiles a Take pattern:
// a string (or Wildcard), a slice of patterns matched as "any of",
// or a predicate over the message.
func matcher(pattern any) (func(msg any) bool, error) {
	switch p := pattern.(type) {
	case nil:
		return matchAll, nil
	case string:
		if p == Wildcard {
			return matchAll, nil
		}
		return func(msg any) bool {
			t, ok := typeOf(msg)
			return ok && t == p
		}, nil
	case []string:
		set := make(map[string]struct{}, len(p))
		for _, s := range p {
			if s == Wildcard {
				return matchAll, nil
			}
			set[s] = struct{}{}
		}
		return func(msg any) bool {
			t, ok := typeOf(msg)
			if !ok {
				return false
			}
			_, hit := set[t]
			return hit
		}, nil
	case []any:
		ms := make([]func(any) bool, 0, len(p))
		for _, sub := range p {
			m, err := matcher(sub)
			if err != nil {
				return nil, err
			}
			ms = append(ms, m)
		}
		return func(msg any) bool {
			for _, m := range ms {
				if m(msg) {
					return true
				}
			}
			return false
		}, nil
	case MatchFunc:
		return p, nil
	case func(msg any) bool:
		return p, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidPattern, pattern)
}

func matchAll(any) bool { return true }
