// Package sqlite is the bundled SQLite implementation of the process engine
// collaborators: it stores deployed definitions, process instances, tasks,
// and their variables.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/goliatone/go-taskforms/internal/storage/sqlite/migrations"
	"github.com/goliatone/go-taskforms/pkg/definitions"
	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/process"
)

// ErrAlreadyDeployed reports a process definition id that is already stored.
var ErrAlreadyDeployed = errors.New("sqlite: process definition already deployed")

// Option configures the store.
type Option func(*Store)

// WithLogger sets the logger used for migration and commit events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how deployment, instance, and task ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Store persists definitions and runtime state in SQLite.
type Store struct {
	sqlDB  *sql.DB
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

var _ process.Engine = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(ctx context.Context, path string, options ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}

	store := &Store{
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range options {
		if opt != nil {
			opt(store)
		}
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}
	applied, err := applyMigrations(ctx, sqlDB, migrations.FS)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: run migrations: %w", err)
	}
	if len(applied) > 0 {
		store.logger.Info("applied migrations", zap.String("path", path), zap.Strings("migrations", applied))
	}

	store.sqlDB = sqlDB
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Deploy stores defs under a new deployment and returns its id. Either every
// definition is stored or none is.
func (s *Store) Deploy(ctx context.Context, source string, defs ...definitions.Definition) (string, error) {
	if len(defs) == 0 {
		return "", fmt.Errorf("sqlite: deploy: no definitions")
	}

	deploymentID := s.newID()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deployments (id, source, deployed_at) VALUES (?, ?, ?)`,
			deploymentID, source, toMillis(s.now()),
		); err != nil {
			return fmt.Errorf("insert deployment: %w", err)
		}
		for _, def := range defs {
			if err := insertDefinition(ctx, tx, deploymentID, def); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sqlite: deploy: %w", err)
	}

	s.logger.Info("deployed definitions",
		zap.String("deployment_id", deploymentID),
		zap.String("source", source),
		zap.Int("count", len(defs)),
	)
	return deploymentID, nil
}

func insertDefinition(ctx context.Context, tx *sql.Tx, deploymentID string, def definitions.Definition) error {
	meta := def.Process
	startProps, err := marshalJSON(meta.StartFormProps)
	if err != nil {
		return err
	}
	firstTasks, err := marshalJSON(def.FirstTasks)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO process_definitions (id, key, name, deployment_id, start_form_key, start_form_props, first_tasks)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Key, meta.Name, deploymentID, meta.StartFormKey, startProps, firstTasks,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrAlreadyDeployed, meta.ID)
		}
		return fmt.Errorf("insert process definition %q: %w", meta.ID, err)
	}

	for _, task := range def.Tasks {
		props, err := marshalJSON(task.FormProps)
		if err != nil {
			return err
		}
		next, err := marshalJSON(def.Transitions[task.Key])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_definitions (process_definition_id, key, name, form_key, form_props, next_tasks)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			meta.ID, task.Key, task.Name, task.FormKey, props, next,
		); err != nil {
			return fmt.Errorf("insert task definition %q: %w", task.Key, err)
		}
	}
	return nil
}

// ProcessDefinition implements process.DefinitionRepository.
func (s *Store) ProcessDefinition(ctx context.Context, id string) (process.ProcessDefinitionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return process.ProcessDefinitionMetadata{}, err
	}

	var (
		meta  process.ProcessDefinitionMetadata
		props string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, key, name, deployment_id, start_form_key, start_form_props
		 FROM process_definitions WHERE id = ?`, id,
	).Scan(&meta.ID, &meta.Key, &meta.Name, &meta.DeploymentID, &meta.StartFormKey, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return process.ProcessDefinitionMetadata{}, fmt.Errorf("sqlite: process definition %q: %w", id, process.ErrNotFound)
	}
	if err != nil {
		return process.ProcessDefinitionMetadata{}, fmt.Errorf("sqlite: get process definition %q: %w", id, err)
	}
	if meta.StartFormProps, err = unmarshalProps(props); err != nil {
		return process.ProcessDefinitionMetadata{}, fmt.Errorf("sqlite: process definition %q: %w", id, err)
	}
	return meta, nil
}

// TaskDefinition implements process.DefinitionRepository.
func (s *Store) TaskDefinition(ctx context.Context, processDefinitionID, taskDefinitionKey string) (process.TaskDefinitionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return process.TaskDefinitionMetadata{}, err
	}

	meta := process.TaskDefinitionMetadata{ProcessDefinitionID: processDefinitionID}
	var props string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT key, name, form_key, form_props FROM task_definitions
		 WHERE process_definition_id = ? AND key = ?`, processDefinitionID, taskDefinitionKey,
	).Scan(&meta.Key, &meta.Name, &meta.FormKey, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return process.TaskDefinitionMetadata{}, fmt.Errorf("sqlite: task definition %q in %q: %w", taskDefinitionKey, processDefinitionID, process.ErrNotFound)
	}
	if err != nil {
		return process.TaskDefinitionMetadata{}, fmt.Errorf("sqlite: get task definition %q: %w", taskDefinitionKey, err)
	}
	if meta.FormProps, err = unmarshalProps(props); err != nil {
		return process.TaskDefinitionMetadata{}, fmt.Errorf("sqlite: task definition %q: %w", taskDefinitionKey, err)
	}
	return meta, nil
}

// ProcessDefinitionIDs lists deployed process definition ids in id order.
func (s *Store) ProcessDefinitionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM process_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list process definitions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan process definition: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func marshalJSON(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	if string(raw) == "null" {
		return "[]", nil
	}
	return string(raw), nil
}

func unmarshalProps(raw string) ([]model.PropertyDefinition, error) {
	var props []model.PropertyDefinition
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("decode form properties: %w", err)
	}
	if len(props) == 0 {
		return nil, nil
	}
	return props, nil
}

func unmarshalKeys(raw string) ([]string, error) {
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("decode task keys: %w", err)
	}
	return keys, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
