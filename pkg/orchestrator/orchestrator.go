package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/goliatone/go-taskforms/pkg/binding"
	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
	"github.com/goliatone/go-taskforms/pkg/render"
	"github.com/goliatone/go-taskforms/pkg/resolver"
)

const tracerName = "taskforms/orchestrator"

// Flow names a submission flow.
type Flow string

const (
	FlowStart    Flow = "start"
	FlowComplete Flow = "complete"
	FlowSave     Flow = "save"
)

// State is a step of a submission attempt. Committed, ValidationFailed and
// CommitRejected are terminal.
type State string

const (
	StateResolved         State = "resolved"
	StateBound            State = "bound"
	StateCommitted        State = "committed"
	StateValidationFailed State = "validation_failed"
	StateCommitRejected   State = "commit_rejected"
)

// SaveValidation selects how SaveFormData validates partial input.
type SaveValidation int

const (
	// SaveValidateTypes checks type conversion only, so a form can be saved
	// before every required field is filled.
	SaveValidateTypes SaveValidation = iota
	// SaveValidateFull applies the same rules as task completion.
	SaveValidateFull
)

func (v SaveValidation) String() string {
	if v == SaveValidateFull {
		return "full"
	}
	return "types"
}

// ParseSaveValidation accepts the names produced by SaveValidation.String.
func ParseSaveValidation(raw string) (SaveValidation, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "types":
		return SaveValidateTypes, nil
	case "full":
		return SaveValidateFull, nil
	default:
		return SaveValidateTypes, fmt.Errorf("orchestrator: unknown save validation %q", raw)
	}
}

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithRegistry injects the form engine registry used for rendering.
func WithRegistry(registry *render.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithBinder injects a binder, typically one carrying custom type binders.
func WithBinder(binder *binding.Binder) Option {
	return func(o *Orchestrator) {
		o.binder = binder
	}
}

// WithSaveValidation overrides the validation applied by SaveFormData.
func WithSaveValidation(mode SaveValidation) Option {
	return func(o *Orchestrator) {
		o.saveValidation = mode
	}
}

// WithDecorators registers decorators applied to every resolved form.
func WithDecorators(decorators ...model.Decorator) Option {
	return func(o *Orchestrator) {
		o.decorators = append(o.decorators, decorators...)
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider sets the provider spans are created from. Defaults to the
// global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if provider != nil {
			o.tracer = provider.Tracer(tracerName)
		}
	}
}

// Orchestrator coordinates resolve → render for reads and resolve → bind →
// commit for submissions. It holds no per-request state and is safe for
// concurrent use once constructed.
type Orchestrator struct {
	definitions    process.DefinitionRepository
	runtime        process.RuntimeMutator
	resolver       *resolver.Resolver
	binder         *binding.Binder
	registry       *render.Registry
	dispatcher     *render.Dispatcher
	saveValidation SaveValidation
	decorators     []model.Decorator
	logger         *zap.Logger
	tracer         trace.Tracer
}

// New constructs an Orchestrator over the engine collaborators. Missing
// optional dependencies get built-in defaults: a plain binder, an empty form
// engine registry, a no-op logger.
func New(definitions process.DefinitionRepository, runtime process.RuntimeMutator, options ...Option) *Orchestrator {
	o := &Orchestrator{
		definitions: definitions,
		runtime:     runtime,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	if o.binder == nil {
		o.binder = binding.New()
	}
	if o.registry == nil {
		o.registry = render.NewRegistry()
	}
	o.dispatcher = render.NewDispatcher(o.registry)
	o.resolver = resolver.New(definitions,
		resolver.WithTaskReader(runtime),
		resolver.WithDecorators(o.decorators...),
	)
	return o
}

// Registry exposes the form engine registry.
func (o *Orchestrator) Registry() *render.Registry {
	return o.registry
}

// GetStartFormData resolves the start form of a process definition.
func (o *Orchestrator) GetStartFormData(ctx context.Context, processDefinitionID string) (model.StartFormData, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.GetStartFormData",
		trace.WithAttributes(attribute.String("process.definition_id", processDefinitionID)))
	defer span.End()

	form, err := o.resolver.ResolveStartForm(ctx, processDefinitionID)
	return form, recordErr(span, err)
}

// GetTaskFormData resolves the form of an active task.
func (o *Orchestrator) GetTaskFormData(ctx context.Context, taskID string) (model.TaskFormData, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.GetTaskFormData",
		trace.WithAttributes(attribute.String("task.id", taskID)))
	defer span.End()

	form, err := o.resolver.ResolveTaskForm(ctx, taskID)
	return form, recordErr(span, err)
}

// GetStartFormKey returns the start form key without resolving properties or
// touching any form engine.
func (o *Orchestrator) GetStartFormKey(ctx context.Context, processDefinitionID string) (string, bool, error) {
	return o.resolver.StartFormKey(ctx, processDefinitionID)
}

// GetTaskFormKey returns the form key of a task definition.
func (o *Orchestrator) GetTaskFormKey(ctx context.Context, processDefinitionID, taskDefinitionKey string) (string, bool, error) {
	return o.resolver.TaskFormKey(ctx, processDefinitionID, taskDefinitionKey)
}

// GetRenderedStartForm resolves and renders a start form. An empty engineName
// selects the default engine.
func (o *Orchestrator) GetRenderedStartForm(ctx context.Context, processDefinitionID, engineName string) (render.RenderedForm, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.GetRenderedStartForm",
		trace.WithAttributes(
			attribute.String("process.definition_id", processDefinitionID),
			attribute.String("form.engine", engineName),
		))
	defer span.End()

	form, err := o.resolver.ResolveStartForm(ctx, processDefinitionID)
	if err != nil {
		return nil, recordErr(span, err)
	}
	out, err := o.dispatcher.Render(ctx, form, engineName)
	if err != nil {
		o.logger.Warn("render start form failed",
			zap.String("process_definition_id", processDefinitionID),
			zap.String("engine", engineName),
			zap.Error(err))
		return nil, recordErr(span, err)
	}
	return out, nil
}

// GetRenderedTaskForm resolves and renders a task form.
func (o *Orchestrator) GetRenderedTaskForm(ctx context.Context, taskID, engineName string) (render.RenderedForm, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.GetRenderedTaskForm",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("form.engine", engineName),
		))
	defer span.End()

	form, err := o.resolver.ResolveTaskForm(ctx, taskID)
	if err != nil {
		return nil, recordErr(span, err)
	}
	out, err := o.dispatcher.Render(ctx, form, engineName)
	if err != nil {
		o.logger.Warn("render task form failed",
			zap.String("task_id", taskID),
			zap.String("engine", engineName),
			zap.Error(err))
		return nil, recordErr(span, err)
	}
	return out, nil
}

// SubmitStartFormData binds input against the start form and starts a process
// instance with the typed variables. Nothing is started when binding fails.
func (o *Orchestrator) SubmitStartFormData(ctx context.Context, processDefinitionID, businessKey string, input map[string]string) (process.ProcessInstanceRef, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.SubmitStartFormData",
		trace.WithAttributes(
			attribute.String("process.definition_id", processDefinitionID),
			attribute.String("process.business_key", businessKey),
		))
	defer span.End()
	log := o.logger.With(
		zap.String("flow", string(FlowStart)),
		zap.String("process_definition_id", processDefinitionID),
	)

	form, err := o.resolver.ResolveStartSubmission(ctx, processDefinitionID)
	if err != nil {
		return process.ProcessInstanceRef{}, recordErr(span, err)
	}
	vars, err := o.bind(log, span, form.Properties, input, true)
	if err != nil {
		return process.ProcessInstanceRef{}, recordErr(span, err)
	}

	ref, err := o.runtime.StartProcessInstance(ctx, form.ProcessDefinitionID, businessKey, vars)
	if err != nil {
		return process.ProcessInstanceRef{}, recordErr(span, o.rejected(log, span, FlowStart, processDefinitionID, err))
	}
	o.committed(log, span, zap.String("process_instance_id", ref.ID))
	return ref, nil
}

// SubmitTaskFormData binds input against the task's form and completes the
// task. The engine re-checks that the task is still active when committing.
func (o *Orchestrator) SubmitTaskFormData(ctx context.Context, taskID string, input map[string]string) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.SubmitTaskFormData",
		trace.WithAttributes(attribute.String("task.id", taskID)))
	defer span.End()
	log := o.logger.With(zap.String("flow", string(FlowComplete)), zap.String("task_id", taskID))

	form, err := o.resolver.ResolveTaskSubmission(ctx, taskID)
	if err != nil {
		return recordErr(span, err)
	}
	vars, err := o.bind(log, span, form.Properties, input, true)
	if err != nil {
		return recordErr(span, err)
	}

	if err := o.runtime.CompleteTask(ctx, form.TaskID, vars); err != nil {
		return recordErr(span, o.rejected(log, span, FlowComplete, taskID, err))
	}
	o.committed(log, span)
	return nil
}

// SaveFormData binds input against the task's current form and stores the
// variables without completing the task. Required fields are only enforced
// under SaveValidateFull.
func (o *Orchestrator) SaveFormData(ctx context.Context, taskID string, input map[string]string) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.SaveFormData",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("form.save_validation", o.saveValidation.String()),
		))
	defer span.End()
	log := o.logger.With(zap.String("flow", string(FlowSave)), zap.String("task_id", taskID))

	form, err := o.resolver.ResolveTaskSubmission(ctx, taskID)
	if err != nil {
		return recordErr(span, err)
	}
	vars, err := o.bind(log, span, form.Properties, input, o.saveValidation == SaveValidateFull)
	if err != nil {
		return recordErr(span, err)
	}

	if err := o.runtime.SetTaskVariables(ctx, form.TaskID, vars); err != nil {
		return recordErr(span, o.rejected(log, span, FlowSave, taskID, err))
	}
	o.committed(log, span)
	return nil
}

func (o *Orchestrator) bind(log *zap.Logger, span trace.Span, properties []model.FormProperty, input map[string]string, full bool) (model.Variables, error) {
	span.AddEvent(string(StateResolved), trace.WithAttributes(attribute.Int("form.properties", len(properties))))

	var (
		vars model.Variables
		err  error
	)
	if full {
		vars, err = o.binder.Bind(properties, input)
	} else {
		vars, err = o.binder.BindPartial(properties, input)
	}
	if err != nil {
		var verr *binding.ValidationError
		if errors.As(err, &verr) {
			log.Info("form submission failed validation",
				zap.String("state", string(StateValidationFailed)),
				zap.Int("violations", len(verr.Violations)))
			span.SetAttributes(attribute.String("form.state", string(StateValidationFailed)))
			return nil, err
		}
		return nil, fmt.Errorf("orchestrator: bind form: %w", err)
	}

	span.AddEvent(string(StateBound), trace.WithAttributes(attribute.Int("form.variables", len(vars))))
	return vars, nil
}

func (o *Orchestrator) rejected(log *zap.Logger, span trace.Span, flow Flow, target string, err error) error {
	log.Warn("form submission rejected by engine",
		zap.String("state", string(StateCommitRejected)),
		zap.Error(err))
	span.SetAttributes(attribute.String("form.state", string(StateCommitRejected)))
	return &CommitRejectedError{Flow: flow, Target: target, Err: err}
}

func (o *Orchestrator) committed(log *zap.Logger, span trace.Span, fields ...zap.Field) {
	span.SetAttributes(attribute.String("form.state", string(StateCommitted)))
	log.Info("form submission committed", append([]zap.Field{zap.String("state", string(StateCommitted))}, fields...)...)
}

func recordErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
