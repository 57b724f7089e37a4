package resolver_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
	"github.com/goliatone/go-taskforms/pkg/resolver"
	"github.com/goliatone/go-taskforms/pkg/testsupport"
)

func newResolver(engine *testsupport.Engine, opts ...resolver.Option) *resolver.Resolver {
	opts = append([]resolver.Option{resolver.WithTaskReader(engine)}, opts...)
	return resolver.New(engine, opts...)
}

func TestResolveStartForm(t *testing.T) {
	engine := testsupport.InvoiceEngine()
	r := newResolver(engine)

	form, err := r.ResolveStartForm(testsupport.Context(), testsupport.InvoiceProcessID)
	if err != nil {
		t.Fatalf("resolve start form: %v", err)
	}

	want := model.StartFormData{
		ProcessDefinitionID: testsupport.InvoiceProcessID,
		DeploymentID:        testsupport.InvoiceDeployment,
		Key:                 testsupport.InvoiceStartForm,
		Properties: []model.FormProperty{
			{ID: "customer", Name: "Customer", Type: model.StringType(), Required: true, Writable: true},
			{ID: "amount", Name: "Amount", Type: model.LongType(), Writable: true},
			{ID: "currency", Name: "Currency", Type: model.EnumOf("EUR", "USD"), Writable: true, Value: "EUR"},
			{ID: "due", Name: "Due date", Type: model.DateType("2006-01-02"), Writable: true},
		},
	}
	testsupport.AssertNoDiff(t, "start form", want, form)
	if engine.MutationCount() != 0 {
		t.Fatalf("resolver must not mutate, got %d calls", engine.MutationCount())
	}
}

func TestResolveSubmissionKeepsUnreadableProperties(t *testing.T) {
	r := newResolver(testsupport.InvoiceEngine())
	ctx := testsupport.Context()

	form, err := r.ResolveStartSubmission(ctx, testsupport.InvoiceProcessID)
	if err != nil {
		t.Fatalf("resolve start submission: %v", err)
	}
	ids := make([]string, 0, len(form.Properties))
	for _, property := range form.Properties {
		ids = append(ids, property.ID)
	}
	testsupport.AssertNoDiff(t, "submission properties", []string{"customer", "amount", "currency", "due", "internalRef"}, ids)

	task, err := r.ResolveTaskSubmission(ctx, testsupport.ApproveTaskID)
	if err != nil {
		t.Fatalf("resolve task submission: %v", err)
	}
	read, err := r.ResolveTaskForm(ctx, testsupport.ApproveTaskID)
	if err != nil {
		t.Fatalf("resolve task form: %v", err)
	}
	testsupport.AssertNoDiff(t, "readable task form", read, task)
}

func TestResolveStartFormIsStable(t *testing.T) {
	r := newResolver(testsupport.InvoiceEngine())
	ctx := testsupport.Context()

	first, err := r.ResolveStartForm(ctx, testsupport.InvoiceProcessID)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	first.Properties[0].Name = "changed by caller"
	first.Properties[2].Type.Values[0].ID = "changed"

	second, err := r.ResolveStartForm(ctx, testsupport.InvoiceProcessID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	third, err := r.ResolveStartForm(ctx, testsupport.InvoiceProcessID)
	if err != nil {
		t.Fatalf("third resolve: %v", err)
	}
	testsupport.AssertNoDiff(t, "repeated resolve", second, third)
	if second.Properties[0].Name != "Customer" || second.Properties[2].Type.Values[0].ID != "EUR" {
		t.Fatalf("caller mutation leaked into definition: %+v", second.Properties)
	}
}

func TestResolveTaskFormUsesTaskVariables(t *testing.T) {
	r := newResolver(testsupport.InvoiceEngine())

	form, err := r.ResolveTaskForm(testsupport.Context(), testsupport.ApproveTaskID)
	if err != nil {
		t.Fatalf("resolve task form: %v", err)
	}

	if form.TaskID != testsupport.ApproveTaskID || form.TaskDefinitionKey != testsupport.ApproveTaskKey {
		t.Fatalf("unexpected task addressing: %+v", form)
	}
	if form.FormKey() != testsupport.ApproveTaskForm {
		t.Fatalf("form key = %q", form.FormKey())
	}

	ids := make([]string, 0, len(form.Properties))
	values := make(map[string]any)
	for _, property := range form.Properties {
		ids = append(ids, property.ID)
		values[property.ID] = property.Value
	}
	testsupport.AssertNoDiff(t, "property order", []string{"customer", "amount", "decision", "urgent", "comment"}, ids)
	testsupport.AssertNoDiff(t, "property values", map[string]any{
		"customer": "ACME",
		"amount":   int64(1200),
		"decision": nil,
		"urgent":   false,
		"comment":  nil,
	}, values)
}

func TestResolveNotFound(t *testing.T) {
	r := newResolver(testsupport.InvoiceEngine())
	ctx := testsupport.Context()

	_, err := r.ResolveStartForm(ctx, testsupport.MissingDefinition)
	var notFound *resolver.NotFoundError
	if !errors.As(err, &notFound) || notFound.Kind != "process definition" {
		t.Fatalf("expected process definition NotFoundError, got %v", err)
	}
	if !errors.Is(err, process.ErrNotFound) {
		t.Fatalf("expected error to wrap process.ErrNotFound, got %v", err)
	}

	_, err = r.ResolveTaskForm(ctx, testsupport.MissingTaskID)
	if !errors.As(err, &notFound) || notFound.Kind != "task" {
		t.Fatalf("expected task NotFoundError, got %v", err)
	}

	_, _, err = r.TaskFormKey(ctx, testsupport.InvoiceProcessID, "nope")
	if !errors.As(err, &notFound) || notFound.Kind != "task definition" {
		t.Fatalf("expected task definition NotFoundError, got %v", err)
	}
}

func TestFormKeys(t *testing.T) {
	r := newResolver(testsupport.InvoiceEngine())
	ctx := testsupport.Context()

	key, ok, err := r.StartFormKey(ctx, testsupport.InvoiceProcessID)
	if err != nil || !ok || key != testsupport.InvoiceStartForm {
		t.Fatalf("start form key = %q, %v, %v", key, ok, err)
	}
	key, ok, err = r.TaskFormKey(ctx, testsupport.InvoiceProcessID, testsupport.ApproveTaskKey)
	if err != nil || !ok || key != testsupport.ApproveTaskForm {
		t.Fatalf("task form key = %q, %v, %v", key, ok, err)
	}
	key, ok, err = r.TaskFormKey(ctx, testsupport.InvoiceProcessID, testsupport.UnformedTaskKey)
	if err != nil || ok || key != "" {
		t.Fatalf("absent task form key = %q, %v, %v", key, ok, err)
	}
}

func TestResolveAppliesDecorators(t *testing.T) {
	upper := model.DecoratorFunc(func(props []model.FormProperty) error {
		for i := range props {
			props[i].Name = strings.ToUpper(props[i].Name)
		}
		return nil
	})
	r := newResolver(testsupport.InvoiceEngine(), resolver.WithDecorators(upper))

	form, err := r.ResolveStartForm(testsupport.Context(), testsupport.InvoiceProcessID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if form.Properties[0].Name != "CUSTOMER" {
		t.Fatalf("decorator not applied: %q", form.Properties[0].Name)
	}

	failing := model.DecoratorFunc(func([]model.FormProperty) error { return errors.New("boom") })
	r = newResolver(testsupport.InvoiceEngine(), resolver.WithDecorators(failing))
	if _, err := r.ResolveStartForm(testsupport.Context(), testsupport.InvoiceProcessID); err == nil {
		t.Fatal("expected decorator error")
	}
}
