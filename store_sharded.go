package roomreg

import "sync"

// shard is one lock stripe. The padding keeps neighbouring mutexes off the
// same cache line.
type shard struct {
	mu    sync.Mutex
	rooms map[int]*room
	_     [48]byte
}

// shardedStore is the default backend: a fixed number of stripes, each a
// plain Go map behind its own mutex.
type shardedStore struct {
	shards []shard
	mask   uint64
}

// newShardedStore rounds n up to a power of two so the stripe can be picked
// with a mask.
func newShardedStore(n, capacity int) *shardedStore {
	n = min(max(n, 1), MaxShards)
	count := int(nextPowerOf2(uint64(n)))
	per := capacity/count + 1
	s := &shardedStore{
		shards: make([]shard, count),
		mask:   uint64(count - 1),
	}
	for i := range s.shards {
		s.shards[i].rooms = make(map[int]*room, per)
	}
	return s
}

func (s *shardedStore) shardFor(id int) *shard {
	return &s.shards[hashID(id)&s.mask]
}

func (s *shardedStore) compute(id int, create bool, fn func(rm *room) *room) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	old := sh.rooms[id]
	if old == nil && !create {
		return
	}
	if rm := fn(old); rm != nil && rm != old {
		sh.rooms[id] = rm
	}
}

func (s *shardedStore) ids() []int {
	var out []int
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id := range sh.rooms {
			out = append(out, id)
		}
		sh.mu.Unlock()
	}
	return out
}

func (s *shardedStore) len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.rooms)
		sh.mu.Unlock()
	}
	return n
}

// nextPowerOf2 returns the smallest power of two >= n (1 for n == 0).
func nextPowerOf2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
