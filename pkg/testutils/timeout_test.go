package testutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestWithDeadline(t *testing.T) {
	var calls atomic.Int32
	WithDeadline(t, time.Second, func() string {
		if calls.Inc() < 3 {
			return "not yet"
		}
		return ""
	})
	require.Equal(t, int32(3), calls.Load())
}
