package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goliatone/go-taskforms/pkg/model"
)

// Stored variable kinds. Values are kept as text tagged with the kind they
// decode back into.
const (
	kindString  = "string"
	kindLong    = "long"
	kindBoolean = "boolean"
	kindDate    = "date"
	kindNull    = "null"
	kindJSON    = "json"
)

func encodeVariable(value any) (kind, text string, err error) {
	switch v := value.(type) {
	case nil:
		return kindNull, "", nil
	case string:
		return kindString, v, nil
	case int64:
		return kindLong, strconv.FormatInt(v, 10), nil
	case int:
		return kindLong, strconv.Itoa(v), nil
	case int32:
		return kindLong, strconv.FormatInt(int64(v), 10), nil
	case bool:
		return kindBoolean, strconv.FormatBool(v), nil
	case time.Time:
		return kindDate, v.Format(time.RFC3339Nano), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", "", fmt.Errorf("encode variable of type %T: %w", value, err)
		}
		return kindJSON, string(raw), nil
	}
}

func decodeVariable(kind, text string) (any, error) {
	switch kind {
	case kindNull:
		return nil, nil
	case kindString:
		return text, nil
	case kindLong:
		return strconv.ParseInt(text, 10, 64)
	case kindBoolean:
		return strconv.ParseBool(text)
	case kindDate:
		return time.Parse(time.RFC3339Nano, text)
	case kindJSON:
		var out any
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown variable kind %q", kind)
	}
}

// writeVariables upserts variables into one scope. An empty taskID addresses
// the process instance scope.
func writeVariables(ctx context.Context, tx *sql.Tx, instanceID, taskID string, variables model.Variables, now time.Time) error {
	if len(variables) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO variables (process_instance_id, task_id, name, kind, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (process_instance_id, task_id, name)
		DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare variable upsert: %w", err)
	}
	defer stmt.Close()

	for name, value := range variables {
		kind, text, err := encodeVariable(value)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, instanceID, taskID, name, kind, text, toMillis(now)); err != nil {
			return fmt.Errorf("write variable %q: %w", name, err)
		}
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// readVariables returns instance-scoped variables overlaid with the task-local
// ones when taskID is set.
func readVariables(ctx context.Context, q querier, instanceID, taskID string) (model.Variables, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, kind, value FROM variables
		 WHERE process_instance_id = ? AND (task_id = '' OR task_id = ?)
		 ORDER BY CASE WHEN task_id = '' THEN 0 ELSE 1 END, name`,
		instanceID, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	defer rows.Close()

	out := model.Variables{}
	for rows.Next() {
		var name, kind, text string
		if err := rows.Scan(&name, &kind, &text); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		value, err := decodeVariable(kind, text)
		if err != nil {
			return nil, fmt.Errorf("decode variable %q: %w", name, err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variables: %w", err)
	}
	return out, nil
}
