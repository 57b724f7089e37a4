package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-taskforms/pkg/definitions"
	"github.com/goliatone/go-taskforms/pkg/renderers/tui"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Process and task forms over a SQLite process store",
		Long: `taskforms resolves the forms attached to process start events and user
tasks, renders them through a registered form engine, and binds submitted
values into typed process variables.

Configuration is read from TASKFORMS_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		deployCmd(),
		definitionsCmd(),
		startFormCmd(),
		taskFormCmd(),
		formKeyCmd(),
		renderStartCmd(),
		renderTaskCmd(),
		submitStartCmd(),
		submitTaskCmd(),
		saveTaskCmd(),
		tasksCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// withApp opens the application for one command invocation.
func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd, args)
	}
}

func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy [dir]",
		Short: "Deploy every definition document found in dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			dir := a.cfg.DefinitionsDir
			if len(args) == 1 {
				dir = args[0]
			}
			store, err := definitions.LoadFS(os.DirFS(dir))
			if err != nil {
				return err
			}
			if store.Empty() {
				return fmt.Errorf("deploy: no definitions found in %s", dir)
			}
			deploymentID, err := a.store.Deploy(ctx, dir, store.Definitions()...)
			if err != nil {
				return err
			}
			for _, def := range store.Definitions() {
				fmt.Fprintf(cmd.OutOrStdout(), "deployed %s\n", def.Process.ID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deployment %s\n", deploymentID)
			return nil
		}),
	}
}

func definitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definitions",
		Short: "List deployed process definition ids",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			ids, err := a.store.ProcessDefinitionIDs(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		}),
	}
}

func startFormCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-form <process-definition-id>",
		Short: "Print the resolved start form as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			form, err := a.forms.GetStartFormData(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), form)
		}),
	}
}

func taskFormCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task-form <task-id>",
		Short: "Print the resolved task form as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			form, err := a.forms.GetTaskFormData(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), form)
		}),
	}
}

func formKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "form-key <process-definition-id> [task-definition-key]",
		Short: "Print the form key of a start form or task form",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			var (
				key string
				ok  bool
				err error
			)
			if len(args) == 2 {
				key, ok, err = a.forms.GetTaskFormKey(ctx, args[0], args[1])
			} else {
				key, ok, err = a.forms.GetStartFormKey(ctx, args[0])
			}
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no form key defined")
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		}),
	}
}

func renderStartCmd() *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "render-start <process-definition-id>",
		Short: "Render the start form through a form engine",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			out, err := a.forms.GetRenderedStartForm(ctx, args[0], engine)
			if err != nil {
				return err
			}
			return writeRendered(cmd.OutOrStdout(), out, a.contentType(engine))
		}),
	}
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "form engine name (default engine when empty)")
	return cmd
}

func renderTaskCmd() *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "render-task <task-id>",
		Short: "Render a task form through a form engine",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			out, err := a.forms.GetRenderedTaskForm(ctx, args[0], engine)
			if err != nil {
				return err
			}
			return writeRendered(cmd.OutOrStdout(), out, a.contentType(engine))
		}),
	}
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "form engine name (default engine when empty)")
	return cmd
}

// inputFlags collects submitted values from --set pairs or, with
// --interactive, from the terminal engine.
type inputFlags struct {
	pairs       []string
	interactive bool
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.pairs, "set", "s", nil, "submitted value as id=value (repeatable)")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "prompt for values in the terminal")
}

func (f *inputFlags) collect(render func(engine string) (any, error)) (map[string]string, error) {
	input, err := parsePairs(f.pairs)
	if err != nil {
		return nil, err
	}
	if !f.interactive {
		return input, nil
	}
	out, err := render(tui.Name)
	if err != nil {
		return nil, err
	}
	answers, ok := out.(map[string]string)
	if !ok {
		return nil, fmt.Errorf("interactive engine returned %T", out)
	}
	for id, value := range input {
		answers[id] = value
	}
	return answers, nil
}

func submitStartCmd() *cobra.Command {
	var (
		flags       inputFlags
		businessKey string
	)
	cmd := &cobra.Command{
		Use:   "submit-start <process-definition-id>",
		Short: "Start a process instance from submitted start form values",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			input, err := flags.collect(func(engine string) (any, error) {
				return a.forms.GetRenderedStartForm(ctx, args[0], engine)
			})
			if err != nil {
				return err
			}
			ref, err := a.forms.SubmitStartFormData(ctx, args[0], businessKey, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", ref.ID)
			return printActiveTasks(ctx, a, cmd.OutOrStdout(), ref.ID)
		}),
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&businessKey, "business-key", "b", "", "business key of the new instance")
	return cmd
}

func submitTaskCmd() *cobra.Command {
	var flags inputFlags
	cmd := &cobra.Command{
		Use:   "submit-task <task-id>",
		Short: "Complete a task with submitted form values",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			task, err := a.store.Task(ctx, args[0])
			if err != nil {
				return err
			}
			input, err := flags.collect(func(engine string) (any, error) {
				return a.forms.GetRenderedTaskForm(ctx, args[0], engine)
			})
			if err != nil {
				return err
			}
			if err := a.forms.SubmitTaskFormData(ctx, args[0], input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", args[0])
			return printActiveTasks(ctx, a, cmd.OutOrStdout(), task.ProcessInstanceID)
		}),
	}
	flags.bind(cmd)
	return cmd
}

func saveTaskCmd() *cobra.Command {
	var flags inputFlags
	cmd := &cobra.Command{
		Use:   "save-task <task-id>",
		Short: "Save draft values on a task without completing it",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			input, err := flags.collect(func(engine string) (any, error) {
				return a.forms.GetRenderedTaskForm(ctx, args[0], engine)
			})
			if err != nil {
				return err
			}
			if err := a.forms.SaveFormData(ctx, args[0], input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
			return nil
		}),
	}
	flags.bind(cmd)
	return cmd
}

func tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <process-instance-id>",
		Short: "List the active tasks of a process instance",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			return printActiveTasks(ctx, a, cmd.OutOrStdout(), args[0])
		}),
	}
}

func printActiveTasks(ctx context.Context, a *app, w io.Writer, instanceID string) error {
	tasks, err := a.store.ActiveTasks(ctx, instanceID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no active tasks")
		return nil
	}
	for _, task := range tasks {
		fmt.Fprintf(w, "task %s\t%s\t%s\n", task.ID, task.TaskDefinitionKey, task.Name)
	}
	return nil
}

func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		id, value, ok := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --set %q: expected id=value", pair)
		}
		out[id] = value
	}
	return out, nil
}

// writeRendered picks the encoding from the engine's media type: text types
// are written as-is, everything else as JSON. Engines without a media type
// are treated as JSON.
func writeRendered(w io.Writer, out any, contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}
	raw, isBytes := out.([]byte)
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		switch v := out.(type) {
		case []byte:
			_, err := w.Write(v)
			return err
		case string:
			_, err := io.WriteString(w, v)
			return err
		default:
			return fmt.Errorf("render: %s engine returned %T", mediaType, out)
		}
	case isBytes && json.Valid(raw):
		_, err := w.Write(raw)
		return err
	default:
		return writeJSON(w, out)
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
