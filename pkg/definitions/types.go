package definitions

import (
	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

// Definition is one loaded process definition together with the flow
// information a runtime needs to create tasks.
type Definition struct {
	Process process.ProcessDefinitionMetadata
	Tasks   []process.TaskDefinitionMetadata
	// FirstTasks are activated when an instance starts.
	FirstTasks []string
	// Transitions maps a task key to the task keys activated on completion.
	Transitions map[string][]string
	// Source is the file the definition was read from.
	Source string
}

// Task returns the task definition with the given key.
func (d Definition) Task(key string) (process.TaskDefinitionMetadata, bool) {
	for _, task := range d.Tasks {
		if task.Key == key {
			return task, true
		}
	}
	return process.TaskDefinitionMetadata{}, false
}

type documentFile struct {
	Processes []processFile `json:"processes" yaml:"processes"`
}

type processFile struct {
	ID           string     `json:"id" yaml:"id"`
	Key          string     `json:"key" yaml:"key"`
	Version      int        `json:"version" yaml:"version"`
	Name         string     `json:"name" yaml:"name"`
	DeploymentID string     `json:"deploymentId" yaml:"deploymentId"`
	StartForm    *formFile  `json:"startForm" yaml:"startForm"`
	FirstTasks   []string   `json:"firstTasks" yaml:"firstTasks"`
	Tasks        []taskFile `json:"tasks" yaml:"tasks"`
}

type taskFile struct {
	Key  string    `json:"key" yaml:"key"`
	Name string    `json:"name" yaml:"name"`
	Form *formFile `json:"form" yaml:"form"`
	Next []string  `json:"next" yaml:"next"`
}

type formFile struct {
	Key        string         `json:"key" yaml:"key"`
	Properties []propertyFile `json:"properties" yaml:"properties"`
}

type propertyFile struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Type        string            `json:"type" yaml:"type"`
	DatePattern string            `json:"datePattern" yaml:"datePattern"`
	Values      []model.EnumValue `json:"values" yaml:"values"`
	Custom      string            `json:"custom" yaml:"custom"`
	Payload     map[string]any    `json:"payload" yaml:"payload"`
	Required    bool              `json:"required" yaml:"required"`
	Writable    *bool             `json:"writable" yaml:"writable"`
	Readable    *bool             `json:"readable" yaml:"readable"`
	Default     string            `json:"default" yaml:"default"`
}
