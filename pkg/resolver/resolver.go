// Package resolver builds start and task form read models from process
// definition metadata. It only reads through the collaborator interfaces and
// never renders, binds, or mutates anything.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

// NotFoundError reports that the process definition, task, or task
// definition addressed by a request does not exist. It unwraps to
// process.ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resolver: %s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return process.ErrNotFound
}

// Option customises the resolver.
type Option func(*Resolver)

// WithTaskReader supplies the collaborator used to load tasks. Required for
// ResolveTaskForm.
func WithTaskReader(tasks TaskReader) Option {
	return func(r *Resolver) {
		r.tasks = tasks
	}
}

// WithDecorators registers decorators applied to every resolved property list.
func WithDecorators(decorators ...model.Decorator) Option {
	return func(r *Resolver) {
		r.decorators = append(r.decorators, decorators...)
	}
}

// TaskReader loads a task by id.
type TaskReader interface {
	Task(ctx context.Context, taskID string) (process.TaskRef, error)
}

// Resolver turns definition metadata into StartFormData and TaskFormData.
type Resolver struct {
	definitions process.DefinitionRepository
	tasks       TaskReader
	decorators  []model.Decorator
}

// New constructs a Resolver reading from definitions.
func New(definitions process.DefinitionRepository, options ...Option) *Resolver {
	r := &Resolver{definitions: definitions}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// ResolveStartForm resolves the start form of a process definition. Property
// values come from each declaration's default literal. Properties declared
// unreadable are left out.
func (r *Resolver) ResolveStartForm(ctx context.Context, processDefinitionID string) (model.StartFormData, error) {
	return r.resolveStart(ctx, processDefinitionID, false)
}

// ResolveStartSubmission resolves the start form for binding a submission.
// Unlike ResolveStartForm it keeps unreadable properties: hidden fields are
// still submitted, required-checked and type-checked.
func (r *Resolver) ResolveStartSubmission(ctx context.Context, processDefinitionID string) (model.StartFormData, error) {
	return r.resolveStart(ctx, processDefinitionID, true)
}

// ResolveTaskForm resolves the form attached to a task. Property values come
// from the task's current variables and fall back to the declared default.
// Properties declared unreadable are left out.
func (r *Resolver) ResolveTaskForm(ctx context.Context, taskID string) (model.TaskFormData, error) {
	return r.resolveTask(ctx, taskID, false)
}

// ResolveTaskSubmission resolves a task form for binding a submission,
// keeping unreadable properties.
func (r *Resolver) ResolveTaskSubmission(ctx context.Context, taskID string) (model.TaskFormData, error) {
	return r.resolveTask(ctx, taskID, true)
}

func (r *Resolver) resolveStart(ctx context.Context, processDefinitionID string, hidden bool) (model.StartFormData, error) {
	def, err := r.processDefinition(ctx, processDefinitionID)
	if err != nil {
		return model.StartFormData{}, err
	}

	properties, err := r.properties(def.StartFormProps, nil, hidden)
	if err != nil {
		return model.StartFormData{}, err
	}

	return model.StartFormData{
		ProcessDefinitionID: def.ID,
		DeploymentID:        def.DeploymentID,
		Key:                 def.StartFormKey,
		Properties:          properties,
	}, nil
}

func (r *Resolver) resolveTask(ctx context.Context, taskID string, hidden bool) (model.TaskFormData, error) {
	task, err := r.task(ctx, taskID)
	if err != nil {
		return model.TaskFormData{}, err
	}
	def, err := r.taskDefinition(ctx, task.ProcessDefinitionID, task.TaskDefinitionKey)
	if err != nil {
		return model.TaskFormData{}, err
	}

	properties, err := r.properties(def.FormProps, task.Variables, hidden)
	if err != nil {
		return model.TaskFormData{}, err
	}

	return model.TaskFormData{
		TaskID:              task.ID,
		ProcessDefinitionID: task.ProcessDefinitionID,
		TaskDefinitionKey:   task.TaskDefinitionKey,
		Key:                 def.FormKey,
		Properties:          properties,
	}, nil
}

// StartFormKey returns the raw start form key. The boolean is false when the
// definition declares no key.
func (r *Resolver) StartFormKey(ctx context.Context, processDefinitionID string) (string, bool, error) {
	def, err := r.processDefinition(ctx, processDefinitionID)
	if err != nil {
		return "", false, err
	}
	return def.StartFormKey, def.StartFormKey != "", nil
}

// TaskFormKey returns the raw form key of a task definition.
func (r *Resolver) TaskFormKey(ctx context.Context, processDefinitionID, taskDefinitionKey string) (string, bool, error) {
	def, err := r.taskDefinition(ctx, processDefinitionID, taskDefinitionKey)
	if err != nil {
		return "", false, err
	}
	return def.FormKey, def.FormKey != "", nil
}

func (r *Resolver) processDefinition(ctx context.Context, id string) (process.ProcessDefinitionMetadata, error) {
	if r.definitions == nil {
		return process.ProcessDefinitionMetadata{}, errors.New("resolver: definition repository is nil")
	}
	if strings.TrimSpace(id) == "" {
		return process.ProcessDefinitionMetadata{}, errors.New("resolver: process definition id is required")
	}
	def, err := r.definitions.ProcessDefinition(ctx, id)
	if err != nil {
		if errors.Is(err, process.ErrNotFound) {
			return process.ProcessDefinitionMetadata{}, &NotFoundError{Kind: "process definition", ID: id, Err: err}
		}
		return process.ProcessDefinitionMetadata{}, fmt.Errorf("resolver: load process definition %q: %w", id, err)
	}
	return def, nil
}

func (r *Resolver) taskDefinition(ctx context.Context, processDefinitionID, key string) (process.TaskDefinitionMetadata, error) {
	if r.definitions == nil {
		return process.TaskDefinitionMetadata{}, errors.New("resolver: definition repository is nil")
	}
	def, err := r.definitions.TaskDefinition(ctx, processDefinitionID, key)
	if err != nil {
		if errors.Is(err, process.ErrNotFound) {
			return process.TaskDefinitionMetadata{}, &NotFoundError{Kind: "task definition", ID: processDefinitionID + "/" + key, Err: err}
		}
		return process.TaskDefinitionMetadata{}, fmt.Errorf("resolver: load task definition %q: %w", key, err)
	}
	return def, nil
}

func (r *Resolver) task(ctx context.Context, taskID string) (process.TaskRef, error) {
	if r.tasks == nil {
		return process.TaskRef{}, errors.New("resolver: task reader is nil")
	}
	if strings.TrimSpace(taskID) == "" {
		return process.TaskRef{}, errors.New("resolver: task id is required")
	}
	task, err := r.tasks.Task(ctx, taskID)
	if err != nil {
		if errors.Is(err, process.ErrNotFound) {
			return process.TaskRef{}, &NotFoundError{Kind: "task", ID: taskID, Err: err}
		}
		return process.TaskRef{}, fmt.Errorf("resolver: load task %q: %w", taskID, err)
	}
	return task, nil
}

// properties converts declarations in authoring order, skipping unreadable
// ones unless hidden is set. The returned slice and its type payloads are
// fresh copies on every call.
func (r *Resolver) properties(defs []model.PropertyDefinition, vars model.Variables, hidden bool) ([]model.FormProperty, error) {
	out := make([]model.FormProperty, 0, len(defs))
	for _, def := range defs {
		if !def.Readable && !hidden {
			continue
		}
		property := model.FormProperty{
			ID:       def.ID,
			Name:     def.Name,
			Type:     def.Type.Clone(),
			Required: def.Required,
			Writable: def.Writable,
		}
		if current, ok := vars[def.ID]; ok && current != nil {
			property.Value = current
		} else if def.Default != "" {
			property.Value = defaultValue(def.Type, def.Default)
		}
		out = append(out, property)
	}

	for _, decorator := range r.decorators {
		if decorator == nil {
			continue
		}
		if err := decorator.Decorate(out); err != nil {
			return nil, fmt.Errorf("resolver: decorate properties: %w", err)
		}
	}
	return out, nil
}

// defaultValue interprets a default literal per the declared type. Literals
// that do not parse are surfaced as-is so renderers can still prefill them.
func defaultValue(typ model.PropertyType, raw string) any {
	v, err := model.ParseLiteral(typ, raw)
	if err != nil || v == nil {
		return raw
	}
	return v
}
