package testsupport

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

// Fixture identifiers used by InvoiceEngine.
const (
	InvoiceProcessID   = "invoice:1"
	InvoiceDeployment  = "dep-1"
	InvoiceStartForm   = "invoice-start"
	ApproveTaskKey     = "approve"
	ApproveTaskForm    = "invoice-approve"
	ApproveTaskID      = "task-1"
	InvoiceInstanceID  = "pi-existing"
	UnformedTaskKey    = "archive"
	UnformedTaskID     = "task-2"
	MissingDefinition  = "missing:1"
	MissingTaskID      = "task-missing"
	DefaultCurrency    = "EUR"
	ApprovedDecisionID = "approve"
)

// InvoiceStartProperties returns the authored start form declarations of the
// invoice fixture.
func InvoiceStartProperties() []model.PropertyDefinition {
	return []model.PropertyDefinition{
		{ID: "customer", Name: "Customer", Type: model.StringType(), Required: true, Writable: true, Readable: true},
		{ID: "amount", Name: "Amount", Type: model.LongType(), Writable: true, Readable: true},
		{ID: "currency", Name: "Currency", Type: model.EnumOf("EUR", "USD"), Writable: true, Readable: true, Default: DefaultCurrency},
		{ID: "due", Name: "Due date", Type: model.DateType("2006-01-02"), Writable: true, Readable: true},
		{ID: "internalRef", Name: "Internal reference", Type: model.StringType(), Writable: true, Readable: false},
	}
}

// ApproveProperties returns the authored declarations of the approval task.
func ApproveProperties() []model.PropertyDefinition {
	return []model.PropertyDefinition{
		{ID: "customer", Name: "Customer", Type: model.StringType(), Writable: false, Readable: true},
		{ID: "amount", Name: "Amount", Type: model.LongType(), Writable: false, Readable: true},
		{ID: "decision", Name: "Decision", Type: model.EnumType(
			model.EnumValue{ID: "approve", Label: "Approve"},
			model.EnumValue{ID: "reject", Label: "Reject"},
		), Required: true, Writable: true, Readable: true},
		{ID: "urgent", Name: "Urgent", Type: model.BooleanType(), Writable: true, Readable: true, Default: "false"},
		{ID: "comment", Name: "Comment", Type: model.StringType(), Writable: true, Readable: true},
	}
}

// InvoiceEngine returns a fake engine loaded with the invoice process, its
// approval task definition, and one active approval task.
func InvoiceEngine() *Engine {
	return NewEngine().
		AddProcess(process.ProcessDefinitionMetadata{
			ID:             InvoiceProcessID,
			Key:            "invoice",
			Name:           "Invoice",
			DeploymentID:   InvoiceDeployment,
			StartFormKey:   InvoiceStartForm,
			StartFormProps: InvoiceStartProperties(),
		}).
		AddTaskDefinition(process.TaskDefinitionMetadata{
			ProcessDefinitionID: InvoiceProcessID,
			Key:                 ApproveTaskKey,
			Name:                "Approve invoice",
			FormKey:             ApproveTaskForm,
			FormProps:           ApproveProperties(),
		}).
		AddTaskDefinition(process.TaskDefinitionMetadata{
			ProcessDefinitionID: InvoiceProcessID,
			Key:                 UnformedTaskKey,
			Name:                "Archive",
		}).
		AddTask(process.TaskRef{
			ID:                  ApproveTaskID,
			Name:                "Approve invoice",
			ProcessInstanceID:   InvoiceInstanceID,
			ProcessDefinitionID: InvoiceProcessID,
			TaskDefinitionKey:   ApproveTaskKey,
			Variables:           model.Variables{"customer": "ACME", "amount": int64(1200)},
		}).
		AddTask(process.TaskRef{
			ID:                  UnformedTaskID,
			ProcessInstanceID:   InvoiceInstanceID,
			ProcessDefinitionID: InvoiceProcessID,
			TaskDefinitionKey:   UnformedTaskKey,
		})
}

// AssertNoDiff fails the test with a -want +got diff when values differ.
func AssertNoDiff(t *testing.T, what string, want, got any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("%s mismatch (-want +got):\n%s", what, diff)
	}
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
