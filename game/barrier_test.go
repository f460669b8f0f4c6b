package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBarrierCompletesOnLastSignal(t *testing.T) {
	b := NewBarrier(3)

	assert.False(t, b.Signal(0))
	assert.False(t, b.Signal(1))
	assert.True(t, b.Signal(2))
	assert.True(t, b.Done())

	// A completed barrier reports nothing further.
	assert.False(t, b.Signal(3))
	assert.False(t, b.Settle())
}

func TestBarrierIgnoresRepeatedSignals(t *testing.T) {
	b := NewBarrier(2)

	assert.False(t, b.Signal(4))
	assert.False(t, b.Signal(4))
	assert.Equal(t, 1, b.Acknowledged())
	assert.True(t, b.Signal(5))
}

func TestBarrierZeroTarget(t *testing.T) {
	b := NewBarrier(0)
	assert.True(t, b.Settle())
	assert.False(t, b.Settle())

	assert.Equal(t, 0, NewBarrier(-2).Target())
}

func TestBarrierPeerLoss(t *testing.T) {
	tests := []struct {
		name     string
		target   int
		signals  []Identity
		forget   Identity
		wantDone bool
		wantGap  int
	}{
		{
			name:     "silent peer leaves last",
			target:   3,
			signals:  []Identity{0, 1},
			forget:   2,
			wantDone: true,
		},
		{
			name:    "silent peer leaves early",
			target:  3,
			signals: []Identity{0},
			forget:  2,
			wantGap: 1,
		},
		{
			name:    "signalled peer leaves",
			target:  3,
			signals: []Identity{0, 1},
			forget:  1,
			wantGap: 1,
		},
		{
			name:     "only peer leaves",
			target:   1,
			forget:   0,
			wantDone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBarrier(tt.target)
			for _, id := range tt.signals {
				b.Signal(id)
			}

			assert.Equal(t, tt.wantDone, b.Forget(tt.forget))
			if !tt.wantDone {
				assert.Equal(t, tt.wantGap, b.Target()-b.Acknowledged())
				assert.False(t, b.Signalled(tt.forget))
			}
		})
	}
}

func TestBarrierShrinkNeverBelowAcknowledged(t *testing.T) {
	b := NewBarrier(2)
	b.Signal(0)

	assert.True(t, b.ShrinkTarget())
	assert.Equal(t, 1, b.Target())
}
