// internal/common/database/gateway_test.go
package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger/loggertest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewGateway(db, loggertest.New(t)), mock
}

func TestGateway_Fetch_Success(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "courses" WHERE id = $1`)).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"id", "raw_syllabus_text", "instructor", "status"}).
			AddRow(int64(42), []byte("CS 101 syllabus"), int64(7), nil))

	rec, err := gw.Fetch(context.Background(), "courses", "42")
	require.NoError(t, err)

	text, ok := rec.Text("raw_syllabus_text")
	assert.True(t, ok)
	assert.Equal(t, "CS 101 syllabus", text)

	ref, ok := rec.Ref("instructor")
	assert.True(t, ok)
	assert.Equal(t, "7", ref)

	_, ok = rec.Text("status")
	assert.False(t, ok)
	_, ok = rec.Ref("missing")
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Fetch_NotFound(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectQuery(`SELECT \* FROM "courses"`).
		WithArgs("404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "raw_syllabus_text"}))

	rec, err := gw.Fetch(context.Background(), "courses", "404")
	assert.Nil(t, rec)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Fetch_QueryError(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectQuery(`SELECT \* FROM "courses"`).
		WithArgs("1").
		WillReturnError(errors.New("connection refused"))

	_, err := gw.Fetch(context.Background(), "courses", "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersistenceFailure))

	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, "courses", stdErr.Table())
	assert.Equal(t, "1", stdErr.RecordID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Update_SingleStatementSortedColumns(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE "courses" SET "full_title" = $1, "policies" = $2, "status" = $3 WHERE id = $4`)).
		WithArgs(
			"Algorithms 101",
			pq.StringArray{`"No late work"`, `"Attendance mandatory"`},
			"active",
			"42",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := gw.Update(context.Background(), "courses", "42", map[string]interface{}{
		"status":     "active",
		"full_title": "Algorithms 101",
		"policies":   []interface{}{"No late work", "Attendance mandatory"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Update_EmptyIsNoOp(t *testing.T) {
	gw, mock := newTestGateway(t)

	assert.NoError(t, gw.Update(context.Background(), "staff", "7", map[string]interface{}{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Update_NoRowsIsNotAnError(t *testing.T) {
	gw, mock := newTestGateway(t)

	// An instructor reference pointing at a deleted staff row.
	mock.ExpectExec(`UPDATE "staff"`).
		WithArgs("Jane Doe", "7").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := gw.Update(context.Background(), "staff", "7", map[string]interface{}{"name": "Jane Doe"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_Update_ExecError(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectExec(`UPDATE "staff"`).
		WithArgs("jane@example.edu", "Jane Doe", "7").
		WillReturnError(errors.New("permission denied for table staff"))

	err := gw.Update(context.Background(), "staff", "7", map[string]interface{}{
		"name":  "Jane Doe",
		"email": "jane@example.edu",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersistenceFailure))
	assert.Contains(t, err.Error(), "table: staff, id: 7")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeValue(t *testing.T) {
	v, err := EncodeValue([]interface{}{[]interface{}{"A", float64(100), float64(90)}})
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{`["A",100,90]`}, v)

	v, err = EncodeValue([]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{}, v)

	v, err = EncodeValue(map[string]interface{}{"a": true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":true}`, v)

	v, err = EncodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = EncodeValue(struct{}{})
	assert.Error(t, err)
}
