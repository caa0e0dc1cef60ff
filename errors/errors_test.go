package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCode(t *testing.T) {
	tts := []struct {
		err      error
		code     int
		expected *codedError
	}{
		{
			err:      errors.New("simple error"),
			code:     404,
			expected: &codedError{msg: "simple error", code: 404},
		},
		{
			err:      &codedError{msg: "custom error", code: 200},
			code:     501,
			expected: &codedError{msg: "custom error", code: 501},
		},
		{
			err: &codedError{
				msg:   "keep cause",
				code:  125,
				cause: &codedError{msg: "I am the cause"},
			},
			code: 305,
			expected: &codedError{
				msg:   "keep cause",
				code:  305,
				cause: &codedError{msg: "I am the cause"},
			},
		},
	}

	for i, tt := range tts {
		err, _ := WithCode(tt.code)(tt.err).(*codedError)
		assert.Equal(t, tt.expected, err, fmt.Sprintf("%d WithCode", i))
	}

	assert.Nil(t, WithCode(400)(nil))
}

func TestWithCause(t *testing.T) {
	cause := New("book not found", NotFound())
	err := New("could not create request", WithCause(cause))

	assert.Equal(t, http.StatusNotFound, Code(err))
	assert.Equal(t, "could not create request: book not found", err.Error())
	assert.True(t, Is(err, cause))

	plain := errors.New("disk full")
	err = New("could not save", WithCause(plain))
	assert.Equal(t, DefaultCode, Code(err))
	assert.True(t, Is(err, plain))
}

func TestCodeAndMessage(t *testing.T) {
	assert.Equal(t, http.StatusConflict, Code(New("taken", Conflict())))
	assert.Equal(t, http.StatusForbidden, Code(fmt.Errorf("wrapped: %w", New("nope", Forbidden()))))
	assert.Equal(t, DefaultCode, Code(errors.New("raw")))

	assert.Equal(t, "taken", Message(New("taken", Conflict())))
	assert.Equal(t, "Internal server error", Message(errors.New("sql: connection refused")))
}
