package errcode

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	err := errors.Wrap(ErrNotFound.WithMsg("task %s not found", "t1"), "apply")
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))
	assert.Equal(t, "apply: task t1 not found", err.Error())
}

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrChainUnavailable.Wrap(cause, "failed to read task counter")
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to read task counter: dial tcp: refused", err.Error())
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
}

func TestFrom(t *testing.T) {
	e := From(errors.WithStack(ErrInsufficientFunds.WithMsg("low")))
	assert.Equal(t, http.StatusPaymentRequired, e.Status)
	assert.Equal(t, "low", e.Msg)

	unknown := From(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, unknown.Status)
	assert.Equal(t, ErrInternal.Code, unknown.Code)
}
