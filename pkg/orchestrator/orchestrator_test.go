package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/orchestrator"
	"github.com/goliatone/go-taskforms/pkg/process"
	"github.com/goliatone/go-taskforms/pkg/render"
	"github.com/goliatone/go-taskforms/pkg/testsupport"
)

type recordingRenderer struct {
	mu       sync.Mutex
	calls    int
	formKeys []string
	props    [][]model.FormProperty
}

func (r *recordingRenderer) Render(_ context.Context, formKey string, props []model.FormProperty) (render.RenderedForm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.formKeys = append(r.formKeys, formKey)
	r.props = append(r.props, props)
	return "rendered:" + formKey, nil
}

func newOrchestrator(engine *testsupport.Engine, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{orchestrator.WithTracerProvider(noop.NewTracerProvider())}, opts...)
	return orchestrator.New(engine, engine, opts...)
}

func amountOnlyEngine() *testsupport.Engine {
	return testsupport.NewEngine().AddProcess(process.ProcessDefinitionMetadata{
		ID:           "proc1",
		DeploymentID: "dep",
		StartFormProps: []model.PropertyDefinition{
			{ID: "amount", Type: model.LongType(), Writable: true, Readable: true},
		},
	})
}

func TestSubmitStartFormDataStartsProcess(t *testing.T) {
	engine := amountOnlyEngine()
	o := newOrchestrator(engine)

	ref, err := o.SubmitStartFormData(testsupport.Context(), "proc1", "", map[string]string{"amount": "42"})
	if err != nil {
		t.Fatalf("submit start: %v", err)
	}
	if ref.ID == "" || ref.ProcessDefinitionID != "proc1" {
		t.Fatalf("unexpected instance ref: %+v", ref)
	}

	testsupport.AssertNoDiff(t, "start calls", []testsupport.StartCall{
		{ProcessDefinitionID: "proc1", Variables: model.Variables{"amount": int64(42)}},
	}, engine.Starts)
}

func TestSubmitStartFormDataPassesBusinessKey(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine)

	ref, err := o.SubmitStartFormData(testsupport.Context(), testsupport.InvoiceProcessID, "INV-7", map[string]string{
		"customer":    "ACME",
		"currency":    "USD",
		"due":         "2026-11-30",
		"internalRef": "REF-9",
	})
	if err != nil {
		t.Fatalf("submit start: %v", err)
	}
	if ref.BusinessKey != "INV-7" {
		t.Fatalf("business key = %q", ref.BusinessKey)
	}
	testsupport.AssertNoDiff(t, "variables", model.Variables{
		"customer":    "ACME",
		"currency":    "USD",
		"due":         time.Date(2026, time.November, 30, 0, 0, 0, 0, time.UTC),
		"internalRef": "REF-9",
	}, engine.Starts[0].Variables)
}

func hiddenTokenEngine() *testsupport.Engine {
	token := model.PropertyDefinition{ID: "token", Type: model.LongType(), Required: true, Writable: true, Readable: false}
	return testsupport.NewEngine().
		AddProcess(process.ProcessDefinitionMetadata{
			ID:             "proc1",
			StartFormProps: []model.PropertyDefinition{token},
		}).
		AddTaskDefinition(process.TaskDefinitionMetadata{
			ProcessDefinitionID: "proc1",
			Key:                 "review",
			FormProps: []model.PropertyDefinition{
				token,
				{ID: "note", Type: model.StringType(), Writable: true, Readable: true},
			},
		}).
		AddTask(process.TaskRef{ID: "t1", ProcessInstanceID: "pi1", ProcessDefinitionID: "proc1", TaskDefinitionKey: "review"})
}

func TestSubmitBindsWritableUnreadableProperties(t *testing.T) {
	ctx := testsupport.Context()
	engine := hiddenTokenEngine()
	o := newOrchestrator(engine)

	form, err := o.GetStartFormData(ctx, "proc1")
	if err != nil {
		t.Fatalf("start form: %v", err)
	}
	if len(form.Properties) != 0 {
		t.Fatalf("unreadable property leaked into form data: %+v", form.Properties)
	}

	cases := []struct {
		name  string
		input map[string]string
		want  []model.Violation
	}{
		{name: "missing", input: map[string]string{}, want: []model.Violation{{PropertyID: "token", Reason: model.ReasonRequired}}},
		{name: "malformed", input: map[string]string{"token": "not-a-number"}, want: []model.Violation{{PropertyID: "token", Reason: model.ReasonInvalidLong}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.SubmitStartFormData(ctx, "proc1", "", tc.input)
			var verr *orchestrator.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			testsupport.AssertNoDiff(t, "violations", tc.want, verr.Violations)
		})
	}
	if engine.MutationCount() != 0 {
		t.Fatalf("engine mutated %d times on invalid input", engine.MutationCount())
	}

	if _, err := o.SubmitStartFormData(ctx, "proc1", "", map[string]string{"token": "7"}); err != nil {
		t.Fatalf("submit start: %v", err)
	}
	testsupport.AssertNoDiff(t, "start variables", model.Variables{"token": int64(7)}, engine.Starts[0].Variables)
}

func TestTaskFlowsBindWritableUnreadableProperties(t *testing.T) {
	ctx := testsupport.Context()
	engine := hiddenTokenEngine()
	o := newOrchestrator(engine)

	form, err := o.GetTaskFormData(ctx, "t1")
	if err != nil {
		t.Fatalf("task form: %v", err)
	}
	if len(form.Properties) != 1 || form.Properties[0].ID != "note" {
		t.Fatalf("task form properties = %+v", form.Properties)
	}

	if err := o.SaveFormData(ctx, "t1", map[string]string{"token": "x"}); err == nil {
		t.Fatal("expected save to type-check the hidden property")
	}
	if err := o.SaveFormData(ctx, "t1", map[string]string{"token": "3"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := o.SubmitTaskFormData(ctx, "t1", map[string]string{"note": "ok"}); err == nil {
		t.Fatal("expected required check on the hidden property")
	}
	if err := o.SubmitTaskFormData(ctx, "t1", map[string]string{"token": "4", "note": "ok"}); err != nil {
		t.Fatalf("submit task: %v", err)
	}
	testsupport.AssertNoDiff(t, "saves", []testsupport.TaskCall{
		{TaskID: "t1", Variables: model.Variables{"token": int64(3)}},
	}, engine.Saves)
	testsupport.AssertNoDiff(t, "completes", []testsupport.TaskCall{
		{TaskID: "t1", Variables: model.Variables{"token": int64(4), "note": "ok"}},
	}, engine.Completes)
}

func TestSubmitStartFormDataValidationFailureNeverStarts(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine)

	_, err := o.SubmitStartFormData(testsupport.Context(), testsupport.InvoiceProcessID, "", map[string]string{
		"amount":   "lots",
		"currency": "GBP",
	})

	var verr *orchestrator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	testsupport.AssertNoDiff(t, "violations", []model.Violation{
		{PropertyID: "customer", Reason: model.ReasonRequired},
		{PropertyID: "amount", Reason: model.ReasonInvalidLong},
		{PropertyID: "currency", Reason: model.ReasonInvalidValue},
	}, verr.Violations)
	if engine.MutationCount() != 0 {
		t.Fatalf("engine must not be called on validation failure, got %d calls", engine.MutationCount())
	}
}

func TestSubmitStartFormDataUnknownDefinition(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine)

	_, err := o.SubmitStartFormData(testsupport.Context(), testsupport.MissingDefinition, "", nil)

	var notFound *orchestrator.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if engine.MutationCount() != 0 {
		t.Fatalf("engine must not be called, got %d calls", engine.MutationCount())
	}
}

func TestSubmitTaskFormDataCompletesTask(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine)

	err := o.SubmitTaskFormData(testsupport.Context(), testsupport.ApproveTaskID, map[string]string{
		"decision": "approve",
		"urgent":   "True",
		"amount":   "1",
	})
	if err != nil {
		t.Fatalf("submit task: %v", err)
	}

	testsupport.AssertNoDiff(t, "complete calls", []testsupport.TaskCall{
		{TaskID: testsupport.ApproveTaskID, Variables: model.Variables{"decision": "approve", "urgent": true}},
	}, engine.Completes)

	if _, err := o.GetTaskFormData(testsupport.Context(), testsupport.ApproveTaskID); !errors.Is(err, process.ErrNotFound) {
		t.Fatalf("completed task should be gone, got %v", err)
	}
}

func TestSubmitTaskFormDataValidationFailure(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine)

	err := o.SubmitTaskFormData(testsupport.Context(), testsupport.ApproveTaskID, map[string]string{"urgent": "maybe"})

	var verr *orchestrator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	testsupport.AssertNoDiff(t, "violations", []model.Violation{
		{PropertyID: "decision", Reason: model.ReasonRequired},
		{PropertyID: "urgent", Reason: model.ReasonInvalidBoolean},
	}, verr.Violations)
	if engine.MutationCount() != 0 {
		t.Fatalf("engine must not be called on validation failure, got %d calls", engine.MutationCount())
	}
}

func TestSubmitTaskFormDataCommitRejected(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	engine.BeforeCommit = func(taskID string) {
		engine.RemoveTask(taskID)
	}
	o := newOrchestrator(engine)

	err := o.SubmitTaskFormData(testsupport.Context(), testsupport.ApproveTaskID, map[string]string{"decision": "reject"})

	var rejected *orchestrator.CommitRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected CommitRejectedError, got %v", err)
	}
	if rejected.Flow != orchestrator.FlowComplete || rejected.Target != testsupport.ApproveTaskID {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
	if !errors.Is(err, process.ErrTaskNotActive) {
		t.Fatalf("expected wrapped ErrTaskNotActive, got %v", err)
	}
	var verr *orchestrator.ValidationError
	if errors.As(err, &verr) {
		t.Fatal("commit rejection must be distinguishable from validation errors")
	}
}

func TestSubmitStartFormDataCommitRejected(t *testing.T) {
	engine := amountOnlyEngine()
	engine.RejectCommit = process.ErrCommitRejected
	o := newOrchestrator(engine)

	_, err := o.SubmitStartFormData(testsupport.Context(), "proc1", "", map[string]string{"amount": "1"})

	var rejected *orchestrator.CommitRejectedError
	if !errors.As(err, &rejected) || rejected.Flow != orchestrator.FlowStart {
		t.Fatalf("expected start CommitRejectedError, got %v", err)
	}
	if len(engine.Starts) != 1 {
		t.Fatalf("expected exactly one start attempt, got %d", len(engine.Starts))
	}
}

func TestSaveFormDataDefaultsToTypeValidation(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine)
	ctx := testsupport.Context()

	if err := o.SaveFormData(ctx, testsupport.ApproveTaskID, map[string]string{"comment": "half done"}); err != nil {
		t.Fatalf("save form data: %v", err)
	}
	testsupport.AssertNoDiff(t, "save calls", []testsupport.TaskCall{
		{TaskID: testsupport.ApproveTaskID, Variables: model.Variables{"comment": "half done"}},
	}, engine.Saves)
	if len(engine.Completes) != 0 {
		t.Fatal("save must not complete the task")
	}

	form, err := o.GetTaskFormData(ctx, testsupport.ApproveTaskID)
	if err != nil {
		t.Fatalf("task still open: %v", err)
	}
	if got := form.Properties[4].Value; got != "half done" {
		t.Fatalf("saved comment not visible on re-resolve: %v", got)
	}

	err = o.SaveFormData(ctx, testsupport.ApproveTaskID, map[string]string{"urgent": "perhaps"})
	var verr *orchestrator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("type errors still fail a save, got %v", err)
	}
	if len(engine.Saves) != 1 {
		t.Fatalf("failed save must not reach engine, got %d saves", len(engine.Saves))
	}
}

func TestSaveFormDataFullValidation(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine, orchestrator.WithSaveValidation(orchestrator.SaveValidateFull))

	err := o.SaveFormData(testsupport.Context(), testsupport.ApproveTaskID, map[string]string{"comment": "draft"})

	var verr *orchestrator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	testsupport.AssertNoDiff(t, "violations", []model.Violation{
		{PropertyID: "decision", Reason: model.ReasonRequired},
	}, verr.Violations)
	if engine.MutationCount() != 0 {
		t.Fatalf("engine must not be called, got %d calls", engine.MutationCount())
	}
}

func TestRenderedFormsUseRegistry(t *testing.T) {
	html := &recordingRenderer{}
	schema := &recordingRenderer{}
	registry := render.NewRegistry()
	registry.MustRegister("html", html, true)
	registry.MustRegister("schema", schema, false)
	registry.Seal()

	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine, orchestrator.WithRegistry(registry))
	ctx := testsupport.Context()

	out, err := o.GetRenderedStartForm(ctx, testsupport.InvoiceProcessID, "")
	if err != nil {
		t.Fatalf("render start: %v", err)
	}
	if out != "rendered:"+testsupport.InvoiceStartForm {
		t.Fatalf("unexpected output %v", out)
	}

	if _, err := o.GetRenderedTaskForm(ctx, testsupport.ApproveTaskID, "schema"); err != nil {
		t.Fatalf("render task: %v", err)
	}
	testsupport.AssertNoDiff(t, "schema form keys", []string{testsupport.ApproveTaskForm}, schema.formKeys)

	resolved, err := o.GetStartFormData(ctx, testsupport.InvoiceProcessID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	testsupport.AssertNoDiff(t, "rendered properties", resolved.Properties, html.props[0])
	if engine.MutationCount() != 0 {
		t.Fatal("rendering must not mutate")
	}
}

func TestRenderUnknownEngine(t *testing.T) {
	html := &recordingRenderer{}
	registry := render.NewRegistry()
	registry.MustRegister("html", html, true)
	o := newOrchestrator(testsupport.InvoiceEngine(), orchestrator.WithRegistry(registry))

	_, err := o.GetRenderedStartForm(testsupport.Context(), testsupport.InvoiceProcessID, "nonexistent")

	var unknown *orchestrator.UnknownFormEngineError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFormEngineError, got %v", err)
	}
	if html.calls != 0 {
		t.Fatalf("no engine should render, got %d calls", html.calls)
	}
}

func TestRenderWithoutDefaultEngine(t *testing.T) {
	registry := render.NewRegistry()
	registry.MustRegister("a", &recordingRenderer{}, false)
	registry.MustRegister("b", &recordingRenderer{}, false)
	o := newOrchestrator(testsupport.InvoiceEngine(), orchestrator.WithRegistry(registry))

	_, err := o.GetRenderedTaskForm(testsupport.Context(), testsupport.ApproveTaskID, "")

	var noDefault *orchestrator.NoDefaultFormEngineError
	if !errors.As(err, &noDefault) {
		t.Fatalf("expected NoDefaultFormEngineError, got %v", err)
	}
}

func TestFormKeysWithoutEngines(t *testing.T) {
	o := newOrchestrator(testsupport.InvoiceEngine())
	ctx := testsupport.Context()

	key, ok, err := o.GetStartFormKey(ctx, testsupport.InvoiceProcessID)
	if err != nil || !ok || key != testsupport.InvoiceStartForm {
		t.Fatalf("start form key = %q, %v, %v", key, ok, err)
	}
	key, ok, err = o.GetTaskFormKey(ctx, testsupport.InvoiceProcessID, testsupport.ApproveTaskKey)
	if err != nil || !ok || key != testsupport.ApproveTaskForm {
		t.Fatalf("task form key = %q, %v, %v", key, ok, err)
	}
}

func TestSubmissionLogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := testsupport.InvoiceEngine()
	o := newOrchestrator(engine, orchestrator.WithLogger(zap.New(core)))
	ctx := testsupport.Context()

	_ = o.SubmitTaskFormData(ctx, testsupport.ApproveTaskID, map[string]string{})
	_ = o.SubmitTaskFormData(ctx, testsupport.ApproveTaskID, map[string]string{"decision": "approve"})

	var states []string
	for _, entry := range logs.All() {
		states = append(states, entry.ContextMap()["state"].(string))
	}
	testsupport.AssertNoDiff(t, "logged states", []string{
		string(orchestrator.StateValidationFailed),
		string(orchestrator.StateCommitted),
	}, states)
}

func TestConcurrentSubmissions(t *testing.T) {
	engine := amountOnlyEngine()
	o := newOrchestrator(engine)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.SubmitStartFormData(context.Background(), "proc1", "", map[string]string{"amount": "7"}); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(engine.Starts) != 20 {
		t.Fatalf("expected 20 starts, got %d", len(engine.Starts))
	}
}
