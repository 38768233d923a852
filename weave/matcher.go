package weave

import (
	"path"
	"strings"

	"github.com/wippyai/jvm-yield/errors"
)

// MethodMatcher selects the methods to weave. owner is an internal class
// name such as "com/acme/Numbers".
type MethodMatcher interface {
	MatchMethod(owner, name, desc string) bool
}

// MatchFunc adapts a function to MethodMatcher.
type MatchFunc func(owner, name, desc string) bool

func (f MatchFunc) MatchMethod(owner, name, desc string) bool { return f(owner, name, desc) }

// MethodPattern selects methods by owner, name and descriptor globs in
// path.Match syntax. An empty part matches anything. In Owner, "*" stops at
// "/", so "com/acme/*" covers one package; a lone "*" matches every owner.
type MethodPattern struct {
	Owner string
	Name  string
	Desc  string
}

// ParsePattern splits "[owner.]name[desc]", e.g. "com/acme/*.gen*(I)Z".
// The descriptor starts at the first "(" and the owner ends at the last
// "." before it.
func ParsePattern(s string) (MethodPattern, error) {
	var p MethodPattern
	rest := s
	if i := strings.IndexByte(rest, '('); i >= 0 {
		rest, p.Desc = rest[:i], rest[i:]
	}
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		p.Owner, rest = rest[:i], rest[i+1:]
	}
	p.Name = rest
	if p.Name == "" {
		return p, errors.Usage(errors.PhaseConfig, "method pattern %q has no name", s)
	}
	for _, g := range []string{p.Owner, p.Name, p.Desc} {
		if _, err := path.Match(g, ""); err != nil {
			return p, errors.New(errors.PhaseConfig, errors.KindUsage).
				Value(s).
				Cause(err).
				Detail("method pattern %q", s).
				Build()
		}
	}
	return p, nil
}

// MatchMethod reports whether every non-empty part of p matches.
func (p MethodPattern) MatchMethod(owner, name, desc string) bool {
	return glob(p.Owner, owner) && glob(p.Name, name) && glob(p.Desc, desc)
}

// "(" and ")" are literal in path.Match, "[" is not; descriptors like
// "([I)V" need the bracket escaped by the caller.
func glob(pattern, s string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, _ := path.Match(pattern, s)
	return ok
}

// Selector matches a method when any of its patterns does.
type Selector []MethodPattern

// NewSelector parses patterns with ParsePattern.
func NewSelector(patterns ...string) (Selector, error) {
	s := make(Selector, 0, len(patterns))
	for _, raw := range patterns {
		p, err := ParsePattern(raw)
		if err != nil {
			return nil, err
		}
		s = append(s, p)
	}
	return s, nil
}

// MustSelector is NewSelector for patterns known at compile time.
func MustSelector(patterns ...string) Selector {
	s, err := NewSelector(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Selector) MatchMethod(owner, name, desc string) bool {
	for _, p := range s {
		if p.MatchMethod(owner, name, desc) {
			return true
		}
	}
	return false
}
