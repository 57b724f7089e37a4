package tui_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/renderers/tui"
)

type stubDriver struct {
	inputs    []string
	selectIdx []int
	confirm   []bool

	inputPos   int
	selectPos  int
	confirmPos int

	inputConfigs  []tui.InputConfig
	selectConfigs []tui.SelectConfig
	infoMessages  []string
}

func (s *stubDriver) Input(_ context.Context, cfg tui.InputConfig) (string, error) {
	s.inputConfigs = append(s.inputConfigs, cfg)
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ tui.ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg tui.SelectConfig) (int, error) {
	s.selectConfigs = append(s.selectConfigs, cfg)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func approvalProperties() []model.FormProperty {
	return []model.FormProperty{
		{ID: "customer", Name: "Customer", Type: model.StringType(), Writable: false, Value: "ACME"},
		{ID: "decision", Name: "Decision", Type: model.EnumType(
			model.EnumValue{ID: "approve", Label: "Approve"},
			model.EnumValue{ID: "reject", Label: "Reject"},
		), Required: true, Writable: true},
		{ID: "urgent", Name: "Urgent", Type: model.BooleanType(), Writable: true, Value: false},
		{ID: "amount", Name: "Amount", Type: model.LongType(), Writable: true, Value: int64(10)},
		{ID: "due", Name: "Due", Type: model.DateType(""), Writable: true, Value: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func TestRendererCollectsAnswers(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"42", "2024-02-01"},
		selectIdx: []int{1},
		confirm:   []bool{true},
	}
	renderer := tui.New(tui.WithPromptDriver(driver))

	out, err := renderer.Render(context.Background(), "invoice-approve", approvalProperties())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	want := map[string]string{
		"decision": "reject",
		"urgent":   "true",
		"amount":   "42",
		"due":      "2024-02-01",
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}

	wantInfo := []string{"Form: invoice-approve", "Customer: ACME"}
	if diff := cmp.Diff(wantInfo, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}
	if got := driver.selectConfigs[0].Options; !cmp.Equal(got, []string{"Approve", "Reject"}) {
		t.Fatalf("select options = %v", got)
	}
	if got := driver.inputConfigs[0].Default; got != "10" {
		t.Fatalf("amount default = %q", got)
	}
	if got := driver.inputConfigs[1].Default; got != "2024-01-02" {
		t.Fatalf("due default = %q", got)
	}
}

func TestRendererInputValidatorsMatchBinderRules(t *testing.T) {
	driver := &stubDriver{inputs: []string{"x", "y", "z"}}
	renderer := tui.New(tui.WithPromptDriver(driver))

	_, err := renderer.Render(context.Background(), "", []model.FormProperty{
		{ID: "name", Type: model.StringType(), Required: true, Writable: true},
		{ID: "count", Type: model.LongType(), Writable: true},
		{ID: "when", Type: model.DateType("02/01/2006"), Writable: true},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	name, count, when := driver.inputConfigs[0].Validator, driver.inputConfigs[1].Validator, driver.inputConfigs[2].Validator
	if name("   ") == nil {
		t.Fatal("required blank answer accepted")
	}
	if name("Ada") != nil {
		t.Fatal("required answer rejected")
	}
	if count("") != nil {
		t.Fatal("optional blank answer rejected")
	}
	if count("1.5") == nil {
		t.Fatal("non-integer accepted")
	}
	if when("2024-01-02") == nil {
		t.Fatal("wrong date layout accepted")
	}
	if when("02/01/2024") != nil {
		t.Fatal("valid date rejected")
	}
}

func TestRendererReadOnlySummaryDisabled(t *testing.T) {
	driver := &stubDriver{}
	renderer := tui.New(tui.WithPromptDriver(driver), tui.WithReadOnlySummary(false))

	out, err := renderer.Render(context.Background(), "", approvalProperties()[:1])
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(driver.infoMessages) != 0 {
		t.Fatalf("unexpected info messages: %v", driver.infoMessages)
	}
	if diff := cmp.Diff(map[string]string{}, out); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestRendererSubmitTransformer(t *testing.T) {
	driver := &stubDriver{inputs: []string{" Ada "}}
	renderer := tui.New(
		tui.WithPromptDriver(driver),
		tui.WithSubmitTransformer(func(values map[string]string) (map[string]string, error) {
			values["source"] = "tui"
			return values, nil
		}),
	)

	out, err := renderer.Render(context.Background(), "", []model.FormProperty{
		{ID: "name", Type: model.StringType(), Writable: true},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := map[string]string{"name": " Ada ", "source": "tui"}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestRendererPropagatesDriverErrors(t *testing.T) {
	renderer := tui.New(tui.WithPromptDriver(&stubDriver{}))

	_, err := renderer.Render(context.Background(), "", []model.FormProperty{
		{ID: "name", Type: model.StringType(), Writable: true},
	})
	if err == nil {
		t.Fatal("expected driver error")
	}
}

func TestRendererHonoursCancelledContext(t *testing.T) {
	renderer := tui.New(tui.WithPromptDriver(&stubDriver{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := renderer.Render(ctx, "", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
