package roomreg

import cmap "github.com/orcaman/concurrent-map/v2"

// cmapStore keeps rooms in a concurrent-map sharded by xxhash.
//
// Upsert always stores whatever its callback returns, so lookups that must
// not create a room check Has first. Rooms are never removed, so a room seen
// by Has is still present when Upsert takes the shard lock.
type cmapStore struct {
	m cmap.ConcurrentMap[int, *room]
}

func newCmapStore() *cmapStore {
	return &cmapStore{m: cmap.NewWithCustomShardingFunction[int, *room](func(id int) uint32 {
		return uint32(hashID(id))
	})}
}

func (s *cmapStore) compute(id int, create bool, fn func(rm *room) *room) {
	if !create && !s.m.Has(id) {
		return
	}
	s.m.Upsert(id, nil, func(exist bool, old, _ *room) *room {
		if !exist {
			old = nil
		}
		if rm := fn(old); rm != nil {
			return rm
		}
		return old
	})
}

func (s *cmapStore) ids() []int {
	return s.m.Keys()
}

func (s *cmapStore) len() int {
	return s.m.Count()
}
