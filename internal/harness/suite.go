package harness

import (
	"context"
	"strings"
)

// Hook runs before every case of the group it belongs to
type Hook func(ctx context.Context) error

// CaseFunc is the body of a single case
type CaseFunc func(ctx context.Context) error

// Case is a registered case with its resolved hook chain
type Case struct {
	Name  string
	Hooks []Hook
	Fn    CaseFunc
}

// Group collects hooks, cases and nested groups under a name
type Group struct {
	name  string
	hooks []Hook
	order []interface{}
}

// Suite is a gated tree of groups
type Suite struct {
	Name string
	Gate Gate
	root *Group
}

// New builds a suite. build is only invoked when the gate is enabled, so a
// closed gate leaves the suite without cases.
func New(name string, gate Gate, build func(g *Group)) *Suite {
	s := &Suite{
		Name: name,
		Gate: gate,
		root: &Group{name: name},
	}
	if gate.Enabled && build != nil {
		build(s.root)
	}
	return s
}

// Skipped reports whether the gate kept the suite from registering cases
func (s *Suite) Skipped() bool {
	return !s.Gate.Enabled
}

// Describe adds a nested group
func (g *Group) Describe(name string, build func(g *Group)) {
	child := &Group{name: name}
	g.order = append(g.order, child)
	if build != nil {
		build(child)
	}
}

// BeforeEach adds a hook run before each case in this group and below
func (g *Group) BeforeEach(fn Hook) {
	g.hooks = append(g.hooks, fn)
}

// It registers a case
func (g *Group) It(name string, fn CaseFunc) {
	g.order = append(g.order, &Case{Name: name, Fn: fn})
}

// Cases flattens the suite in registration order. Hooks are ordered outer
// group first.
func (s *Suite) Cases() []*Case {
	var out []*Case
	s.root.collect(nil, nil, &out)
	return out
}

func (g *Group) collect(path []string, hooks []Hook, out *[]*Case) {
	path = append(append([]string{}, path...), g.name)
	hooks = append(append([]Hook{}, hooks...), g.hooks...)

	for _, item := range g.order {
		switch v := item.(type) {
		case *Case:
			*out = append(*out, &Case{
				Name:  strings.Join(append(append([]string{}, path...), v.Name), " "),
				Hooks: hooks,
				Fn:    v.Fn,
			})
		case *Group:
			v.collect(path, hooks, out)
		}
	}
}
