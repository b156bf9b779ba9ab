package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrCodeInternal, "something failed")

	assert.Equal(t, "something failed: boom", err.Error())
	assert.True(t, errors.Is(err, cause))

	bare := NotFound("user missing")
	assert.Equal(t, "user missing", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestCodePredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("x")))
	assert.True(t, IsConflict(Conflict("x")))
	assert.True(t, IsUnauthorized(Unauthorized("x")))
	assert.True(t, IsForbidden(Forbidden("x")))
	assert.True(t, IsUnavailable(Unavailable("x")))
	assert.True(t, IsConfiguration(Configuration("x")))
	assert.False(t, IsNotFound(Conflict("x")))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestCodePredicates_WrappedDeep(t *testing.T) {
	inner := Unavailable("directory unreachable")
	outer := fmt.Errorf("login: %w", inner)
	assert.True(t, IsUnavailable(outer))
	assert.Equal(t, ErrCodeUnavailable, GetCode(outer))
}

func TestMapDBError(t *testing.T) {
	assert.Nil(t, MapDBError(nil))

	assert.Equal(t, ErrCodeNotFound, GetCode(MapDBError(pgx.ErrNoRows)))
	assert.Equal(t, ErrCodeTimeout, GetCode(MapDBError(context.DeadlineExceeded)))
	assert.Equal(t, ErrCodeCanceled, GetCode(MapDBError(context.Canceled)))

	unique := &pgconn.PgError{
		Code:   pgerrcode.UniqueViolation,
		Detail: "Key (domain)=(example.com) already exists.",
	}
	mapped := MapDBError(unique)
	require.Equal(t, ErrCodeConflict, GetCode(mapped))
	assert.Equal(t, "domain", GetField(mapped))

	fk := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}
	assert.Equal(t, ErrCodeValidation, GetCode(MapDBError(fk)))

	plain := errors.New("not a db error")
	assert.Equal(t, plain, MapDBError(plain))
}
