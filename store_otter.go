package roomreg

import "github.com/maypok86/otter/v2"

// otterStore keeps rooms in an otter cache with no size bound, so nothing is
// ever evicted.
type otterStore struct {
	c *otter.Cache[int, *room]
}

func newOtterStore(capacity int) *otterStore {
	return &otterStore{c: otter.Must(&otter.Options[int, *room]{InitialCapacity: capacity})}
}

func (s *otterStore) compute(id int, create bool, fn func(rm *room) *room) {
	s.c.Compute(id, func(old *room, found bool) (*room, otter.ComputeOp) {
		if !found && !create {
			return old, otter.CancelOp
		}
		rm := fn(old)
		if rm == nil || rm == old {
			return old, otter.CancelOp
		}
		return rm, otter.WriteOp
	})
}

func (s *otterStore) ids() []int {
	out := make([]int, 0, s.c.EstimatedSize())
	for id := range s.c.All() {
		out = append(out, id)
	}
	return out
}

func (s *otterStore) len() int {
	return s.c.EstimatedSize()
}
