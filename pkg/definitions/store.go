package definitions

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

// Store keeps loaded definitions in memory and serves them through
// process.DefinitionRepository.
type Store struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Definition
}

var _ process.DefinitionRepository = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]Definition)}
}

// Add registers def, rejecting a second definition with the same id.
func (s *Store) Add(def Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[def.Process.ID]; exists {
		return fmt.Errorf("definitions: duplicate process definition %q (file %s)", def.Process.ID, def.Source)
	}
	s.byID[def.Process.ID] = def
	s.order = append(s.order, def.Process.ID)
	return nil
}

// Definitions returns every definition in load order.
func (s *Store) Definitions() []Definition {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Definition, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Definition returns the definition with the given process definition id.
func (s *Store) Definition(id string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.byID[id]
	return def, ok
}

// Empty reports whether the store holds any definitions.
func (s *Store) Empty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order) == 0
}

// ProcessDefinition implements process.DefinitionRepository.
func (s *Store) ProcessDefinition(ctx context.Context, id string) (process.ProcessDefinitionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return process.ProcessDefinitionMetadata{}, err
	}
	def, ok := s.Definition(id)
	if !ok {
		return process.ProcessDefinitionMetadata{}, fmt.Errorf("definitions: process definition %q: %w", id, process.ErrNotFound)
	}
	meta := def.Process
	meta.StartFormProps = cloneDefinitions(meta.StartFormProps)
	return meta, nil
}

// TaskDefinition implements process.DefinitionRepository.
func (s *Store) TaskDefinition(ctx context.Context, processDefinitionID, taskDefinitionKey string) (process.TaskDefinitionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return process.TaskDefinitionMetadata{}, err
	}
	def, ok := s.Definition(processDefinitionID)
	if !ok {
		return process.TaskDefinitionMetadata{}, fmt.Errorf("definitions: process definition %q: %w", processDefinitionID, process.ErrNotFound)
	}
	task, ok := def.Task(taskDefinitionKey)
	if !ok {
		return process.TaskDefinitionMetadata{}, fmt.Errorf("definitions: task definition %q in %q: %w", taskDefinitionKey, processDefinitionID, process.ErrNotFound)
	}
	task.FormProps = cloneDefinitions(task.FormProps)
	return task, nil
}

func cloneDefinitions(defs []model.PropertyDefinition) []model.PropertyDefinition {
	if defs == nil {
		return nil
	}
	out := make([]model.PropertyDefinition, len(defs))
	for i, def := range defs {
		out[i] = def
		out[i].Type = def.Type.Clone()
	}
	return out
}
