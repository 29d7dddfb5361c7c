// internal/common/database/gateway.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"

	"github.com/lib/pq"
)

// Record is one row fetched by id, keyed by column name.
type Record struct {
	Table  string
	ID     string
	Fields map[string]interface{}
}

// Text returns a column as a string. ok is false when the column is absent
// or NULL.
func (r *Record) Text(column string) (string, bool) {
	v, exists := r.Fields[column]
	if !exists || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// Ref returns a foreign key column formatted as an id usable with Fetch and
// Update. ok is false when the reference is NULL.
func (r *Record) Ref(column string) (string, bool) {
	v, exists := r.Fields[column]
	if !exists || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return r.Text(column)
	}
}

// Gateway is the generic fetch-by-id / update-by-id adapter over Postgres.
// Table and column names are quoted with pq.QuoteIdentifier; values are
// always bound as parameters.
type Gateway struct {
	db     *sql.DB
	logger logger.Logger
}

func NewGateway(db *sql.DB, log logger.Logger) *Gateway {
	return &Gateway{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "gateway"}),
	}
}

// Fetch loads the row with the given id. A missing row yields a NotFound
// error; driver failures yield PersistenceFailure.
func (g *Gateway) Fetch(ctx context.Context, table, id string) (*Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", pq.QuoteIdentifier(table))

	rows, err := g.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, g.fail("fetch", table, id, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, g.fail("fetch", table, id, err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, g.fail("fetch", table, id, err)
		}
		g.logger.Warn("record not found", map[string]interface{}{"table": table, "id": id})
		return nil, apperrors.NewNotFoundError(table, id)
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, g.fail("fetch", table, id, err)
	}

	fields := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			fields[col] = string(b)
			continue
		}
		fields[col] = values[i]
	}

	return &Record{Table: table, ID: id, Fields: fields}, nil
}

// Update patches the given columns on one row in a single statement. An
// empty patch is a no-op. An update matching no rows is logged and treated
// as success; only driver failures are PersistenceFailure.
func (g *Gateway) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	columns := make([]string, 0, len(fields))
	for col := range fields {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	assignments := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, col := range columns {
		value, err := EncodeValue(fields[col])
		if err != nil {
			return g.fail("update", table, id, fmt.Errorf("encode column %s: %w", col, err))
		}
		assignments[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
		args = append(args, value)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pq.QuoteIdentifier(table), strings.Join(assignments, ", "), len(args))

	result, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return g.fail("update", table, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return g.fail("update", table, id, err)
	}
	if affected == 0 {
		g.logger.Warn("update matched no rows", map[string]interface{}{"table": table, "id": id})
		return nil
	}

	g.logger.Debug("record updated", map[string]interface{}{
		"table":   table,
		"id":      id,
		"columns": columns,
	})
	return nil
}

func (g *Gateway) fail(op, table, id string, err error) error {
	g.logger.Error(fmt.Sprintf("%s failed", op), map[string]interface{}{
		"table": table,
		"id":    id,
		"error": err.Error(),
	})
	return apperrors.NewPersistenceFailureError(op, table, id, err)
}

// EncodeValue converts a decoded answer into a driver value. Sequences
// become Postgres arrays whose elements are JSON documents (json[] / jsonb[]
// columns); objects become a single JSON document; scalars pass through.
func EncodeValue(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, string, bool, int, int64, float64:
		return t, nil
	case []interface{}:
		elems := make(pq.StringArray, len(t))
		for i, e := range t {
			b, err := json.Marshal(e)
			if err != nil {
				return nil, err
			}
			elems[i] = string(b)
		}
		return elems, nil
	case map[string]interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
