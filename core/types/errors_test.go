package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorityErrorDiagnosis(t *testing.T) {
	err := NewError(CodeConstraintViolation, ReasonScopeExceedsParent, "action database:delete not in parent action set")
	assert.Equal(t, "[SCOPE_EXCEEDS_PARENT] action database:delete not in parent action set", err.Diagnosis())
	assert.True(t, err.IsDeniable())
}

func TestAuthorityErrorWrapUnwrap(t *testing.T) {
	cause := errors.New("bolt: bucket missing")
	err := WrapError(CodePersistence, "", "load mandate", cause)
	require.ErrorIs(t, err, cause)
	assert.False(t, err.IsDeniable())
	assert.Contains(t, err.Error(), "bolt: bucket missing")
}

func TestIDRoundTrip(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestTimeRoundTrip(t *testing.T) {
	now, err := ParseTime("2026-08-01T12:00:00.000000Z")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01T12:00:00.000000Z", FormatTime(now))
}
