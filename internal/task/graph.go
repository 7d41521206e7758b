// Package task declares named build tasks with dependencies and runs them in
// dependency order.
//
// A Graph is built with Add and checked with Validate, which reports unknown
// dependencies and cycles. A Runner executes the closure of the requested
// targets: every task runs at most once, after all of its dependencies, and
// tasks whose dependencies are satisfied run concurrently.
package task

import (
	"context"
	"fmt"
	"sort"
)

// Func is the work performed by a task.
type Func func(ctx context.Context) error

// Task is a named unit of work. A task without Run only groups its dependencies.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Run         Func
}

// Graph holds tasks by name. It is not safe for concurrent mutation.
type Graph struct {
	tasks map[string]*Task
	// insertion order, used where no target is named
	order []string
}

func NewGraph() *Graph {
	return &Graph{tasks: make(map[string]*Task)}
}

// Add registers t. Names must be non-empty and unique.
func (g *Graph) Add(t Task) error {
	if t.Name == "" {
		return ErrEmptyTaskName
	}
	if _, exists := g.tasks[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyExists, t.Name)
	}

	t.Deps = append([]string(nil), t.Deps...)
	g.tasks[t.Name] = &t
	g.order = append(g.order, t.Name)
	return nil
}

// Get returns the task registered under name.
func (g *Graph) Get(name string) (Task, bool) {
	t, ok := g.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Len returns the number of registered tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Tasks returns every task sorted by name.
func (g *Graph) Tasks() []Task {
	names := make([]string, 0, len(g.tasks))
	for name := range g.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Task, 0, len(names))
	for _, name := range names {
		out = append(out, *g.tasks[name])
	}
	return out
}

// Validate checks that every dependency exists and the graph is acyclic.
// Errors wrap ErrMissingDependency or are a *CycleError.
func (g *Graph) Validate() error {
	for _, name := range g.order {
		for _, dep := range g.tasks[name].Deps {
			if _, ok := g.tasks[dep]; !ok {
				return fmt.Errorf("%w: task %s depends on undefined task %s", ErrMissingDependency, name, dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.tasks))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			// stack holds the current path; the cycle is its tail from name
			start := len(stack) - 1
			for stack[start] != name {
				start--
			}
			path := append(append([]string(nil), stack[start:]...), name)
			return &CycleError{Path: path}
		}

		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range g.tasks[name].Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = visited
		return nil
	}

	for _, name := range g.order {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Plan returns the targets and their transitive dependencies in a
// deterministic topological order: dependencies in declaration order first,
// then the task itself. With no targets, every task is planned.
func (g *Graph) Plan(targets ...string) ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		targets = g.order
	}

	seen := make(map[string]bool, len(g.tasks))
	plan := make([]string, 0, len(g.tasks))

	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, dep := range g.tasks[name].Deps {
			visit(dep)
		}
		plan = append(plan, name)
	}

	for _, target := range targets {
		if _, ok := g.tasks[target]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTask, target)
		}
		visit(target)
	}
	return plan, nil
}
