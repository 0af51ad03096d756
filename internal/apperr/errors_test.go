package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelsMatchByKind(t *testing.T) {
	err := Conflict("message %s already claimed", "abc")

	require.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "conflict: message abc already claimed", err.Error())

	wrapped := fmt.Errorf("claim: %w", err)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("connection refused")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(KindOf(errors.New("boom"))))
}

func TestIntegrityUnwraps(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Integrity(cause, "token generation exhausted after %d attempts", 5)

	assert.ErrorIs(t, err, ErrIntegrity)
	assert.ErrorIs(t, err, cause)
}

func TestStatusFor(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindNotFound:   http.StatusNotFound,
		KindConflict:   http.StatusConflict,
		KindPermission: http.StatusForbidden,
		KindIntegrity:  http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind)
	}
}
