package roomreg

import "github.com/puzpuzpuz/xsync/v4"

// xsyncStore keeps rooms in an xsync.Map. Compute holds the bucket lock for
// the duration of the callback.
type xsyncStore struct {
	m *xsync.Map[int, *room]
}

func newXsyncStore(capacity int) *xsyncStore {
	return &xsyncStore{m: xsync.NewMap[int, *room](xsync.WithPresize(capacity))}
}

func (s *xsyncStore) compute(id int, create bool, fn func(rm *room) *room) {
	s.m.Compute(id, func(old *room, loaded bool) (*room, xsync.ComputeOp) {
		if !loaded && !create {
			return old, xsync.CancelOp
		}
		rm := fn(old)
		if rm == nil || rm == old {
			return old, xsync.CancelOp
		}
		return rm, xsync.UpdateOp
	})
}

func (s *xsyncStore) ids() []int {
	out := make([]int, 0, s.m.Size())
	s.m.Range(func(id int, _ *room) bool {
		out = append(out, id)
		return true
	})
	return out
}

func (s *xsyncStore) len() int {
	return s.m.Size()
}
