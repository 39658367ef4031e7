// File: api/errors_test.go
// Author: momentics <momentics@gmail.com>

package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinel(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want error
	}{
		{ErrCodeConfigInvalid, ErrConfigInvalid},
		{ErrCodeResourceExhausted, ErrResourceExhausted},
		{ErrCodeCapacityExceeded, ErrCapacityExceeded},
		{ErrCodeIoFailure, ErrIoFailure},
		{ErrCodeClosed, ErrClosed},
		{ErrCodeNotFound, ErrNotFound},
		{ErrCodeNotSupported, ErrNotSupported},
	}
	for _, tc := range cases {
		t.Run(tc.code.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewError(tc.code, "boom"))
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.code, CodeOf(err))
		})
	}
}

func TestCapacityIsResourceExhausted(t *testing.T) {
	err := NewError(ErrCodeCapacityExceeded, "full")
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.NotErrorIs(t, NewError(ErrCodeResourceExhausted, "x"), ErrCapacityExceeded)
}

func TestErrorCauseAndContext(t *testing.T) {
	cause := errors.New("econnreset")
	err := NewError(ErrCodeIoFailure, "read").WithContext("client", 7).WithCause(cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "read: econnreset")
	assert.Contains(t, err.Error(), "client:7")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrCodeOK, CodeOf(errors.New("plain")))
	assert.Equal(t, "code(99)", ErrorCode(99).String())
}

func TestConfigError(t *testing.T) {
	err := ConfigError("port %d", 0)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Equal(t, "port 0", err.Error())
}
