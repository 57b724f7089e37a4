package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

const (
	taskStateActive    = "active"
	taskStateCompleted = "completed"
)

// StartProcessInstance creates the instance, stores variables in its scope,
// and activates the definition's first tasks in one transaction.
func (s *Store) StartProcessInstance(ctx context.Context, processDefinitionID, businessKey string, variables model.Variables) (process.ProcessInstanceRef, error) {
	ref := process.ProcessInstanceRef{
		ID:                  s.newID(),
		ProcessDefinitionID: processDefinitionID,
		BusinessKey:         businessKey,
	}
	var created []string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var firstTasks string
		err := tx.QueryRowContext(ctx,
			`SELECT first_tasks FROM process_definitions WHERE id = ?`, processDefinitionID,
		).Scan(&firstTasks)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("process definition %q: %w", processDefinitionID, process.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load process definition: %w", err)
		}
		keys, err := unmarshalKeys(firstTasks)
		if err != nil {
			return err
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO process_instances (id, process_definition_id, business_key, started_at) VALUES (?, ?, ?, ?)`,
			ref.ID, processDefinitionID, businessKey, toMillis(now),
		); err != nil {
			return fmt.Errorf("insert process instance: %w", err)
		}
		if err := writeVariables(ctx, tx, ref.ID, "", variables, now); err != nil {
			return err
		}
		created, err = s.activateTasks(ctx, tx, ref.ID, processDefinitionID, keys, now)
		if err != nil {
			return err
		}
		return s.endIfIdle(ctx, tx, ref.ID, now)
	})
	if err != nil {
		return process.ProcessInstanceRef{}, fmt.Errorf("sqlite: start process instance: %w", err)
	}

	s.logger.Debug("started process instance",
		zap.String("process_instance_id", ref.ID),
		zap.String("process_definition_id", processDefinitionID),
		zap.Strings("task_ids", created),
	)
	return ref, nil
}

// CompleteTask marks an active task completed, writes variables to the
// instance scope, discards the task's drafts, and activates the next tasks.
// The active check and the writes share one transaction.
func (s *Store) CompleteTask(ctx context.Context, taskID string, variables model.Variables) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		task, err := activeTask(ctx, tx, taskID)
		if err != nil {
			return err
		}

		now := s.now()
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET state = ?, completed_at = ? WHERE id = ? AND state = ?`,
			taskStateCompleted, toMillis(now), taskID, taskStateActive,
		)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return fmt.Errorf("task %q: %w", taskID, process.ErrTaskNotActive)
		}

		if err := writeVariables(ctx, tx, task.ProcessInstanceID, "", variables, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM variables WHERE process_instance_id = ? AND task_id = ?`,
			task.ProcessInstanceID, taskID,
		); err != nil {
			return fmt.Errorf("discard task variables: %w", err)
		}

		var nextTasks string
		err = tx.QueryRowContext(ctx,
			`SELECT next_tasks FROM task_definitions WHERE process_definition_id = ? AND key = ?`,
			task.ProcessDefinitionID, task.TaskDefinitionKey,
		).Scan(&nextTasks)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load task definition: %w", err)
		}
		var keys []string
		if nextTasks != "" {
			if keys, err = unmarshalKeys(nextTasks); err != nil {
				return err
			}
		}
		if _, err := s.activateTasks(ctx, tx, task.ProcessInstanceID, task.ProcessDefinitionID, keys, now); err != nil {
			return err
		}
		return s.endIfIdle(ctx, tx, task.ProcessInstanceID, now)
	})
	if err != nil {
		return fmt.Errorf("sqlite: complete task: %w", err)
	}
	s.logger.Debug("completed task", zap.String("task_id", taskID))
	return nil
}

// SetTaskVariables stores variables as task-local drafts. They overlay the
// instance scope when the task is read and are dropped on completion.
func (s *Store) SetTaskVariables(ctx context.Context, taskID string, variables model.Variables) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		task, err := activeTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		return writeVariables(ctx, tx, task.ProcessInstanceID, taskID, variables, s.now())
	})
	if err != nil {
		return fmt.Errorf("sqlite: set task variables: %w", err)
	}
	s.logger.Debug("saved task variables", zap.String("task_id", taskID), zap.Int("count", len(variables)))
	return nil
}

// Task returns an active task with its visible variables. Completed and
// unknown tasks are reported as not found.
func (s *Store) Task(ctx context.Context, taskID string) (process.TaskRef, error) {
	if err := ctx.Err(); err != nil {
		return process.TaskRef{}, err
	}
	task, err := scanTask(s.sqlDB.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return process.TaskRef{}, fmt.Errorf("sqlite: task %q: %w", taskID, process.ErrNotFound)
	}
	if err != nil {
		return process.TaskRef{}, fmt.Errorf("sqlite: get task %q: %w", taskID, err)
	}
	if task.state != taskStateActive {
		return process.TaskRef{}, fmt.Errorf("sqlite: task %q: %w", taskID, process.ErrNotFound)
	}
	task.ref.Variables, err = readVariables(ctx, s.sqlDB, task.ref.ProcessInstanceID, taskID)
	if err != nil {
		return process.TaskRef{}, fmt.Errorf("sqlite: task %q: %w", taskID, err)
	}
	return task.ref, nil
}

// ActiveTasks lists the active tasks of a process instance in creation order.
// Variables are not loaded.
func (s *Store) ActiveTasks(ctx context.Context, processInstanceID string) ([]process.TaskRef, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		taskSelect+` WHERE process_instance_id = ? AND state = ? ORDER BY created_at, id`,
		processInstanceID, taskStateActive,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tasks: %w", err)
	}
	defer rows.Close()

	var out []process.TaskRef
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan task: %w", err)
		}
		out = append(out, task.ref)
	}
	return out, rows.Err()
}

// InstanceVariables returns the instance-scoped variables.
func (s *Store) InstanceVariables(ctx context.Context, processInstanceID string) (model.Variables, error) {
	vars, err := readVariables(ctx, s.sqlDB, processInstanceID, "")
	if err != nil {
		return nil, fmt.Errorf("sqlite: instance %q: %w", processInstanceID, err)
	}
	return vars, nil
}

// InstanceEnded reports whether the instance has no active tasks left.
func (s *Store) InstanceEnded(ctx context.Context, processInstanceID string) (bool, error) {
	var ended sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT ended_at FROM process_instances WHERE id = ?`, processInstanceID,
	).Scan(&ended)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("sqlite: process instance %q: %w", processInstanceID, process.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: get process instance: %w", err)
	}
	return ended.Valid, nil
}

func (s *Store) activateTasks(ctx context.Context, tx *sql.Tx, instanceID, processDefinitionID string, keys []string, now time.Time) ([]string, error) {
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		var name string
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM task_definitions WHERE process_definition_id = ? AND key = ?`,
			processDefinitionID, key,
		).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task definition %q: %w", key, process.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("load task definition %q: %w", key, err)
		}

		id := s.newID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, process_instance_id, process_definition_id, task_definition_key, name, state, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, instanceID, processDefinitionID, key, name, taskStateActive, toMillis(now),
		); err != nil {
			return nil, fmt.Errorf("insert task %q: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) endIfIdle(ctx context.Context, tx *sql.Tx, instanceID string, now time.Time) error {
	var active int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE process_instance_id = ? AND state = ?`,
		instanceID, taskStateActive,
	).Scan(&active); err != nil {
		return fmt.Errorf("count active tasks: %w", err)
	}
	if active > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE process_instances SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		toMillis(now), instanceID,
	); err != nil {
		return fmt.Errorf("end process instance: %w", err)
	}
	return nil
}

const taskSelect = `SELECT id, name, process_instance_id, process_definition_id, task_definition_key, state FROM tasks`

type storedTask struct {
	ref   process.TaskRef
	state string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (storedTask, error) {
	var task storedTask
	err := row.Scan(
		&task.ref.ID,
		&task.ref.Name,
		&task.ref.ProcessInstanceID,
		&task.ref.ProcessDefinitionID,
		&task.ref.TaskDefinitionKey,
		&task.state,
	)
	return task, err
}

// activeTask loads the task inside tx, distinguishing unknown tasks from
// tasks that are no longer active.
func activeTask(ctx context.Context, tx *sql.Tx, taskID string) (process.TaskRef, error) {
	task, err := scanTask(tx.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return process.TaskRef{}, fmt.Errorf("task %q: %w", taskID, process.ErrNotFound)
	}
	if err != nil {
		return process.TaskRef{}, fmt.Errorf("load task %q: %w", taskID, err)
	}
	if task.state != taskStateActive {
		return process.TaskRef{}, fmt.Errorf("task %q: %w", taskID, process.ErrTaskNotActive)
	}
	return task.ref, nil
}
