package testsupport

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

// StartCall records one StartProcessInstance invocation.
type StartCall struct {
	ProcessDefinitionID string
	BusinessKey         string
	Variables           model.Variables
}

// TaskCall records one CompleteTask or SetTaskVariables invocation.
type TaskCall struct {
	TaskID    string
	Variables model.Variables
}

// Engine is an in-memory process.Engine double that records every mutation so
// tests can assert which collaborator calls were (or were not) issued.
type Engine struct {
	mu sync.Mutex

	processes map[string]process.ProcessDefinitionMetadata
	taskDefs  map[string]process.TaskDefinitionMetadata
	tasks     map[string]process.TaskRef
	nextID    int

	// RejectCommit, when set, is returned by every mutation.
	RejectCommit error
	// BeforeCommit runs inside mutations before the task-active check, letting
	// tests simulate a concurrent caller.
	BeforeCommit func(taskID string)

	Starts    []StartCall
	Completes []TaskCall
	Saves     []TaskCall
}

var _ process.Engine = (*Engine)(nil)

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		processes: make(map[string]process.ProcessDefinitionMetadata),
		taskDefs:  make(map[string]process.TaskDefinitionMetadata),
		tasks:     make(map[string]process.TaskRef),
	}
}

// AddProcess registers a process definition.
func (e *Engine) AddProcess(def process.ProcessDefinitionMetadata) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processes[def.ID] = def
	return e
}

// AddTaskDefinition registers a task definition.
func (e *Engine) AddTaskDefinition(def process.TaskDefinitionMetadata) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taskDefs[taskDefKey(def.ProcessDefinitionID, def.Key)] = def
	return e
}

// AddTask registers an active task.
func (e *Engine) AddTask(task process.TaskRef) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks[task.ID] = task
	return e
}

// RemoveTask drops a task, as if it had been completed elsewhere.
func (e *Engine) RemoveTask(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tasks, taskID)
}

// MutationCount returns the number of start, complete and save calls issued.
func (e *Engine) MutationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Starts) + len(e.Completes) + len(e.Saves)
}

// ProcessDefinition implements process.DefinitionRepository.
func (e *Engine) ProcessDefinition(_ context.Context, id string) (process.ProcessDefinitionMetadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	def, ok := e.processes[id]
	if !ok {
		return process.ProcessDefinitionMetadata{}, fmt.Errorf("process definition %q: %w", id, process.ErrNotFound)
	}
	return def, nil
}

// TaskDefinition implements process.DefinitionRepository.
func (e *Engine) TaskDefinition(_ context.Context, processDefinitionID, key string) (process.TaskDefinitionMetadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	def, ok := e.taskDefs[taskDefKey(processDefinitionID, key)]
	if !ok {
		return process.TaskDefinitionMetadata{}, fmt.Errorf("task definition %q: %w", key, process.ErrNotFound)
	}
	return def, nil
}

// Task implements process.RuntimeMutator.
func (e *Engine) Task(_ context.Context, taskID string) (process.TaskRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[taskID]
	if !ok {
		return process.TaskRef{}, fmt.Errorf("task %q: %w", taskID, process.ErrNotFound)
	}
	return task, nil
}

// StartProcessInstance implements process.RuntimeMutator.
func (e *Engine) StartProcessInstance(_ context.Context, processDefinitionID, businessKey string, vars model.Variables) (process.ProcessInstanceRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Starts = append(e.Starts, StartCall{ProcessDefinitionID: processDefinitionID, BusinessKey: businessKey, Variables: vars})
	if e.RejectCommit != nil {
		return process.ProcessInstanceRef{}, e.RejectCommit
	}
	if _, ok := e.processes[processDefinitionID]; !ok {
		return process.ProcessInstanceRef{}, fmt.Errorf("process definition %q: %w", processDefinitionID, process.ErrNotFound)
	}
	e.nextID++
	return process.ProcessInstanceRef{
		ID:                  fmt.Sprintf("pi-%d", e.nextID),
		ProcessDefinitionID: processDefinitionID,
		BusinessKey:         businessKey,
	}, nil
}

// CompleteTask implements process.RuntimeMutator.
func (e *Engine) CompleteTask(_ context.Context, taskID string, vars model.Variables) error {
	return e.mutateTask(taskID, vars, true)
}

// SetTaskVariables implements process.RuntimeMutator.
func (e *Engine) SetTaskVariables(_ context.Context, taskID string, vars model.Variables) error {
	return e.mutateTask(taskID, vars, false)
}

func (e *Engine) mutateTask(taskID string, vars model.Variables, complete bool) error {
	if hook := e.BeforeCommit; hook != nil {
		hook(taskID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	call := TaskCall{TaskID: taskID, Variables: vars}
	if complete {
		e.Completes = append(e.Completes, call)
	} else {
		e.Saves = append(e.Saves, call)
	}
	if e.RejectCommit != nil {
		return e.RejectCommit
	}

	task, ok := e.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q: %w", taskID, process.ErrTaskNotActive)
	}
	if complete {
		delete(e.tasks, taskID)
		return nil
	}
	merged := make(model.Variables, len(task.Variables)+len(vars))
	for key, value := range task.Variables {
		merged[key] = value
	}
	for key, value := range vars {
		merged[key] = value
	}
	task.Variables = merged
	e.tasks[taskID] = task
	return nil
}

func taskDefKey(processDefinitionID, key string) string {
	return processDefinitionID + "\x00" + key
}
