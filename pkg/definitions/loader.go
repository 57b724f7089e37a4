package definitions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

// LoadFS walks fsys and parses every JSON/YAML definition document. A nil fsys
// yields an empty store.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := NewStore()
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("definitions: read %s: %w", path, err)
		}
		defs, err := Parse(data, path)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := store.Add(def); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Parse decodes a single document. source names the document in errors and
// becomes the default deployment id.
func Parse(data []byte, source string) ([]Definition, error) {
	doc, err := parseDocument(data, source)
	if err != nil {
		return nil, err
	}
	if len(doc.Processes) == 0 {
		return nil, fmt.Errorf("definitions: %s defines no processes", source)
	}

	out := make([]Definition, 0, len(doc.Processes))
	var errs []error
	for idx, raw := range doc.Processes {
		def, err := normaliseProcess(raw, source)
		if err != nil {
			errs = append(errs, fmt.Errorf("definitions: %s: process %d: %w", source, idx, err))
			continue
		}
		out = append(out, def)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("definitions: file %s is empty", source)
	}

	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	doc = documentFile{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("definitions: parse %s: %w", source, err)
	}
	return doc, nil
}

func normaliseProcess(raw processFile, source string) (Definition, error) {
	key := strings.TrimSpace(raw.Key)
	id := strings.TrimSpace(raw.ID)
	if key == "" {
		return Definition{}, errors.New("key is required")
	}
	if id == "" {
		version := raw.Version
		if version <= 0 {
			version = 1
		}
		id = key + ":" + strconv.Itoa(version)
	}
	deploymentID := strings.TrimSpace(raw.DeploymentID)
	if deploymentID == "" {
		deploymentID = source
	}

	def := Definition{
		Process: process.ProcessDefinitionMetadata{
			ID:           id,
			Key:          key,
			Name:         strings.TrimSpace(raw.Name),
			DeploymentID: deploymentID,
		},
		Transitions: make(map[string][]string),
		Source:      source,
	}

	var errs []error
	if raw.StartForm != nil {
		props, err := normaliseForm(*raw.StartForm)
		if err != nil {
			errs = append(errs, fmt.Errorf("start form: %w", err))
		}
		def.Process.StartFormKey = strings.TrimSpace(raw.StartForm.Key)
		def.Process.StartFormProps = props
	}

	known := make(map[string]struct{}, len(raw.Tasks))
	for idx, task := range raw.Tasks {
		taskKey := strings.TrimSpace(task.Key)
		if taskKey == "" {
			errs = append(errs, fmt.Errorf("task %d: key is required", idx))
			continue
		}
		if _, exists := known[taskKey]; exists {
			errs = append(errs, fmt.Errorf("duplicate task key %q", taskKey))
			continue
		}
		known[taskKey] = struct{}{}

		meta := process.TaskDefinitionMetadata{
			ProcessDefinitionID: id,
			Key:                 taskKey,
			Name:                strings.TrimSpace(task.Name),
		}
		if task.Form != nil {
			props, err := normaliseForm(*task.Form)
			if err != nil {
				errs = append(errs, fmt.Errorf("task %q: %w", taskKey, err))
			}
			meta.FormKey = strings.TrimSpace(task.Form.Key)
			meta.FormProps = props
		}
		def.Tasks = append(def.Tasks, meta)
		if len(task.Next) > 0 {
			def.Transitions[taskKey] = trimAll(task.Next)
		}
	}

	def.FirstTasks = trimAll(raw.FirstTasks)
	for _, key := range def.FirstTasks {
		if _, ok := known[key]; !ok {
			errs = append(errs, fmt.Errorf("first task %q is not defined", key))
		}
	}
	for from, targets := range def.Transitions {
		for _, key := range targets {
			if _, ok := known[key]; !ok {
				errs = append(errs, fmt.Errorf("task %q: next task %q is not defined", from, key))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func normaliseForm(raw formFile) ([]model.PropertyDefinition, error) {
	props := make([]model.PropertyDefinition, 0, len(raw.Properties))
	var errs []error
	for _, prop := range raw.Properties {
		def, err := normaliseProperty(prop)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		props = append(props, def)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := model.ValidateDefinitions(props); err != nil {
		return nil, err
	}
	for _, prop := range props {
		if err := checkDefault(prop); err != nil {
			return nil, err
		}
	}
	return props, nil
}

func normaliseProperty(raw propertyFile) (model.PropertyDefinition, error) {
	id := strings.TrimSpace(raw.ID)
	kind, err := model.ParseKind(raw.Type)
	if err != nil {
		return model.PropertyDefinition{}, fmt.Errorf("property %q: %w", id, err)
	}

	var propertyType model.PropertyType
	switch kind {
	case model.KindString:
		propertyType = model.StringType()
	case model.KindLong:
		propertyType = model.LongType()
	case model.KindBoolean:
		propertyType = model.BooleanType()
	case model.KindDate:
		propertyType = model.DateType(raw.DatePattern)
	case model.KindEnum:
		values := make([]model.EnumValue, 0, len(raw.Values))
		for _, value := range raw.Values {
			value.ID = strings.TrimSpace(value.ID)
			if value.Label == "" {
				value.Label = value.ID
			}
			values = append(values, value)
		}
		propertyType = model.EnumType(values...)
	case model.KindCustom:
		propertyType = model.CustomType(raw.Custom, raw.Payload)
	}

	return model.PropertyDefinition{
		ID:       id,
		Name:     strings.TrimSpace(raw.Name),
		Type:     propertyType,
		Required: raw.Required,
		Writable: boolOr(raw.Writable, true),
		Readable: boolOr(raw.Readable, true),
		Default:  raw.Default,
	}, nil
}

// checkDefault rejects default literals that could never bind. The resolver
// parses defaults with the same model.ParseLiteral rules.
func checkDefault(def model.PropertyDefinition) error {
	if _, err := model.ParseLiteral(def.Type, def.Default); err != nil {
		return fmt.Errorf("property %q: invalid default %q: %w", def.ID, strings.TrimSpace(def.Default), err)
	}
	return nil
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
