// Package inmemory provides an in-memory implementation of the StateStore
// interface, suitable for tests and dry runs where persistence is not
// required.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/repository"
)

// InMemoryStateStore holds one BatchState per model in a map.
type InMemoryStateStore struct {
	states map[string]*model.BatchState
	mu     sync.RWMutex // Mutex to protect concurrent access to the map.
}

var _ repository.StateStore = (*InMemoryStateStore)(nil)

// NewInMemoryStateStore creates and initializes a new InMemoryStateStore.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{
		states: make(map[string]*model.BatchState),
	}
}

// Save overwrites any existing state of the same model.
func (r *InMemoryStateStore) Save(ctx context.Context, state *model.BatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy to prevent external modification of internal state.
	r.states[state.Model] = cloneState(state)
	return nil
}

func (r *InMemoryStateStore) Load(ctx context.Context, modelName string) (*model.BatchState, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[modelName]
	if !ok {
		return nil, false, nil
	}
	return cloneState(state), true, nil
}

func (r *InMemoryStateStore) Delete(ctx context.Context, modelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if modelName == "" {
		r.states = make(map[string]*model.BatchState)
		return nil
	}
	delete(r.states, modelName)
	return nil
}

func (r *InMemoryStateStore) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.states))
	for name := range r.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func cloneState(s *model.BatchState) *model.BatchState {
	c := *s
	c.CreatedIDs = append(model.IDList{}, s.CreatedIDs...)
	return &c
}
