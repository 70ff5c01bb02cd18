package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	transient := errors.New("connection reset")
	tests := []struct {
		name      string
		failures  int
		err       error
		retries   uint64
		wantCalls int
		wantErr   bool
	}{
		{name: "succeeds first time", failures: 0, retries: 3, wantCalls: 1},
		{name: "recovers after transient errors", failures: 2, err: transient, retries: 3, wantCalls: 3},
		{name: "gives up after max retries", failures: 10, err: transient, retries: 2, wantCalls: 3, wantErr: true},
		{name: "permanent error stops at once", failures: 10, err: Permanent(transient), retries: 5, wantCalls: 1, wantErr: true},
		{name: "no retries", failures: 1, err: transient, retries: 0, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.retries, time.Millisecond, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, transient)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.False(t, ShouldRetry(Permanent(errors.New("bad mapping"))))
	assert.True(t, ShouldRetry(context.DeadlineExceeded))
	assert.True(t, ShouldRetry(errors.New("503")))
}
