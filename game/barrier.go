package game

// Barrier is a rendezvous over distinct identities. It completes when the
// number of acknowledged identities reaches the target, either because the
// last one signalled or because peer loss shrank the target. Completion is
// reported exactly once; a completed barrier ignores further input.
type Barrier struct {
	target int
	acked  map[Identity]struct{}
	done   bool
}

func NewBarrier(target int) *Barrier {
	if target < 0 {
		target = 0
	}
	return &Barrier{
		target: target,
		acked:  make(map[Identity]struct{}),
	}
}

// Signal records id's acknowledgment. Repeated signals from the same
// identity count once. It returns true on the call that completes the
// barrier.
func (b *Barrier) Signal(id Identity) bool {
	if b.done {
		return false
	}
	b.acked[id] = struct{}{}
	return b.settle()
}

// ShrinkTarget lowers the target by one after losing a peer that had not
// signalled. It returns true if that completes the barrier.
func (b *Barrier) ShrinkTarget() bool {
	if b.done {
		return false
	}
	if b.target > len(b.acked) {
		b.target--
	}
	return b.settle()
}

// Forget handles the loss of id: its acknowledgment, if any, is withdrawn
// and the target shrinks by one, so the gap between target and
// acknowledged count is unchanged for a peer that had signalled.
func (b *Barrier) Forget(id Identity) bool {
	if b.done {
		return false
	}
	if _, ok := b.acked[id]; ok {
		delete(b.acked, id)
		if b.target > 0 {
			b.target--
		}
		return b.settle()
	}
	return b.ShrinkTarget()
}

// Settle completes a barrier whose target is already met, e.g. one armed
// with no peers to wait for.
func (b *Barrier) Settle() bool {
	if b.done {
		return false
	}
	return b.settle()
}

func (b *Barrier) settle() bool {
	if len(b.acked) >= b.target {
		b.done = true
		return true
	}
	return false
}

func (b *Barrier) Signalled(id Identity) bool {
	_, ok := b.acked[id]
	return ok
}

func (b *Barrier) Target() int       { return b.target }
func (b *Barrier) Acknowledged() int { return len(b.acked) }
func (b *Barrier) Done() bool        { return b.done }
