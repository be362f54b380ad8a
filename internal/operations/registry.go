package operations

import (
	"fmt"
	"sync"
)

// Registry manages registered pipeline steps
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
	order []string // Maintains registration order
}

// NewRegistry creates a new step registry
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
		order: make([]string, 0),
	}
}

// Register adds a step to the registry
func (r *Registry) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("cannot register nil step")
	}

	id := step.ID()
	if id == "" {
		return fmt.Errorf("step ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return fmt.Errorf("step with ID %s already registered", id)
	}

	r.steps[id] = step
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a step by ID
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, fmt.Errorf("step with ID %s not found", id)
	}
	return step, nil
}

// Has checks if a step is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.steps[id]
	return exists
}

// List returns all registered steps in registration order
func (r *Registry) List() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		steps = append(steps, r.steps[id])
	}
	return steps
}

// ListIDs returns all registered step IDs in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered steps
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.steps)
}

// GetDependencyOrder returns steps ordered by dependencies. Steps that
// become ready together keep their registration order.
func (r *Registry) GetDependencyOrder() ([]Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph := make(map[string][]string)
	inDegree := make(map[string]int)
	for id := range r.steps {
		graph[id] = []string{}
		inDegree[id] = 0
	}

	for id, step := range r.steps {
		for _, dep := range step.GetDependencies() {
			if _, exists := r.steps[dep]; !exists {
				return nil, fmt.Errorf("step %s depends on non-existent step %s", id, dep)
			}
			graph[dep] = append(graph[dep], id)
			inDegree[id]++
		}
	}

	// Kahn's algorithm
	queue := make([]string, 0)
	for _, id := range r.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]Step, 0, len(r.steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.steps[current])

		ready := make(map[string]bool)
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready[dependent] = true
			}
		}
		for _, id := range r.order {
			if ready[id] {
				queue = append(queue, id)
			}
		}
	}

	if len(ordered) != len(r.steps) {
		return nil, fmt.Errorf("dependency cycle detected")
	}
	return ordered, nil
}

// ValidateDependencies checks that every dependency is registered and
// that there is no cycle
func (r *Registry) ValidateDependencies() error {
	_, err := r.GetDependencyOrder()
	return err
}

// GetDependents returns steps that depend on the given step
func (r *Registry) GetDependents(stepID string) []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dependents := make([]Step, 0)
	for _, id := range r.order {
		step := r.steps[id]
		for _, dep := range step.GetDependencies() {
			if dep == stepID {
				dependents = append(dependents, step)
				break
			}
		}
	}
	return dependents
}
