package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsComparesByCode(t *testing.T) {
	err := fmt.Errorf("join: %w", New(CodeRoomFull, "seats taken"))
	assert.True(t, errors.Is(err, ErrRoomFull))
	assert.False(t, errors.Is(err, ErrRoomNotFound))
}

func TestPersistenceKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("record answer", cause)

	assert.Equal(t, CodePersistenceFailure, err.Code)
	assert.True(t, errors.Is(err, cause))
	assert.NotContains(t, err.Message, "connection reset")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeStaleQuestion, CodeOf(fmt.Errorf("wrapped: %w", ErrStaleQuestion)))
	assert.Equal(t, CodeInvalidInput, CodeOf(Invalid("bad grade")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}
