package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromNative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want OrderStatus
	}{
		{"filled", "Filled", StatusFilled},
		{"closed", "closed", StatusFilled},
		{"executed upper", "EXECUTED", StatusFilled},
		{"canceled one l", "canceled", StatusCancelled},
		{"cancelled two l", "cancelled", StatusCancelled},
		{"expired", "expired", StatusCancelled},
		{"rejected", "rejected", StatusRejected},
		{"failed", "failed", StatusRejected},
		{"new maps to pending", "new", StatusPending},
		{"open maps to pending", "open", StatusPending},
		{"padded", "  filled ", StatusFilled},
		{"empty", "", StatusPending},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFromNative(tt.raw))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusFilled.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusPending.Terminal())
}
