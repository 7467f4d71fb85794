package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"wrapped rate limit", fmt.Errorf("latest: %w", ErrRateLimited), KindRateLimited},
		{"wrapped parse", fmt.Errorf("decode: %w", ErrParse), KindParse},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), KindTransientNetwork},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), KindTransientNetwork},
		{"no snapshot", ErrNoSnapshot, KindNoSnapshot},
		{"providers", fmt.Errorf("a.js: %w", ErrAllProvidersExhausted), KindAllProvidersExhausted},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsTimeoutAndRetryable(t *testing.T) {
	assert.True(t, IsTimeout(fmt.Errorf("x: %w", context.DeadlineExceeded)))
	assert.True(t, IsTimeout(timeoutErr{}))
	assert.False(t, IsTimeout(ErrParse))

	assert.True(t, Retryable(fmt.Errorf("cache: %w", ErrTotalFailure)))
	assert.True(t, Retryable(ErrRateLimited))
	assert.False(t, Retryable(ErrNoSnapshot))
}

func TestMsg(t *testing.T) {
	msg := Msg(UnknownBackend, "redis")
	assert.True(t, strings.Contains(msg, `"redis"`))
	assert.Equal(t, "NOPE", Msg(Code("NOPE")))
}
