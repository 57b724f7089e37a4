// Package process declares the narrow contracts the form pipeline consumes from
// the process engine: read access to definition metadata and the runtime
// mutations triggered by form submission. Implementations own persistence and
// locking; see internal/storage/sqlite for the bundled one.
package process

import (
	"context"
	"errors"

	"github.com/goliatone/go-taskforms/pkg/model"
)

var (
	// ErrNotFound reports a missing process definition, deployment, or task.
	ErrNotFound = errors.New("process: not found")
	// ErrTaskNotActive reports that a task was completed or cancelled before the
	// requested mutation could be applied.
	ErrTaskNotActive = errors.New("process: task is not active")
	// ErrCommitRejected is a generic refusal of a state transition.
	ErrCommitRejected = errors.New("process: commit rejected")
)

// ProcessDefinitionMetadata is what the form pipeline needs to know about a
// process definition.
type ProcessDefinitionMetadata struct {
	ID             string
	Key            string
	Name           string
	DeploymentID   string
	StartFormKey   string
	StartFormProps []model.PropertyDefinition
}

// TaskDefinitionMetadata describes the form attached to a user task.
type TaskDefinitionMetadata struct {
	ProcessDefinitionID string
	Key                 string
	Name                string
	FormKey             string
	FormProps           []model.PropertyDefinition
}

// TaskRef addresses a task and carries the variables visible to it.
type TaskRef struct {
	ID                  string
	Name                string
	ProcessInstanceID   string
	ProcessDefinitionID string
	TaskDefinitionKey   string
	Variables           model.Variables
}

// ProcessInstanceRef addresses a started process instance.
type ProcessInstanceRef struct {
	ID                  string
	ProcessDefinitionID string
	BusinessKey         string
}

// DefinitionRepository exposes read-only definition metadata. Missing entries
// are reported with an error wrapping ErrNotFound.
type DefinitionRepository interface {
	ProcessDefinition(ctx context.Context, id string) (ProcessDefinitionMetadata, error)
	TaskDefinition(ctx context.Context, processDefinitionID, taskDefinitionKey string) (TaskDefinitionMetadata, error)
}

// RuntimeMutator applies form submissions to running state. Each call is one
// transaction on the implementation's side; the task-scoped mutations must
// re-check that the task is still active at commit time.
type RuntimeMutator interface {
	StartProcessInstance(ctx context.Context, processDefinitionID, businessKey string, variables model.Variables) (ProcessInstanceRef, error)
	CompleteTask(ctx context.Context, taskID string, variables model.Variables) error
	SetTaskVariables(ctx context.Context, taskID string, variables model.Variables) error
	Task(ctx context.Context, taskID string) (TaskRef, error)
}

// Engine is the combined collaborator most deployments provide.
type Engine interface {
	DefinitionRepository
	RuntimeMutator
}
