package roomreg

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrUnknownBackend is returned by ParseBackend for names it does not recognize.
var ErrUnknownBackend = errors.New("unknown backend")

// Backend selects the concurrent map that holds rooms.
type Backend int

const (
	// BackendSharded stripes rooms over a fixed set of mutex-guarded Go maps.
	BackendSharded Backend = iota
	// BackendXsync uses puzpuzpuz/xsync Map.Compute.
	BackendXsync
	// BackendOtter uses an unbounded otter cache and its Compute method.
	BackendOtter
	// BackendCmap uses orcaman/concurrent-map Upsert.
	BackendCmap
)

var backendNames = [...]string{
	BackendSharded: "sharded",
	BackendXsync:   "xsync",
	BackendOtter:   "otter",
	BackendCmap:    "cmap",
}

func (b Backend) String() string {
	if b < 0 || int(b) >= len(backendNames) {
		return fmt.Sprintf("Backend(%d)", int(b))
	}
	return backendNames[b]
}

// Backends lists every supported backend in declaration order.
func Backends() []Backend {
	return []Backend{BackendSharded, BackendXsync, BackendOtter, BackendCmap}
}

// ParseBackend maps a backend name back to its Backend.
func ParseBackend(name string) (Backend, error) {
	for i, n := range backendNames {
		if n == name {
			return Backend(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// roomStore is a keyed map with an atomic access-and-mutate operation per key.
//
// compute calls fn with exclusive access to the slot for id and releases the
// slot on every exit path of fn. When create is false an absent room is left
// absent and fn is not called. When create is true fn receives nil for an
// absent room and must return the room to store; a returned room different
// from the one passed in replaces it.
type roomStore interface {
	compute(id int, create bool, fn func(rm *room) *room)
	ids() []int
	len() int
}

func newRoomStore(o *options) roomStore {
	switch o.backend {
	case BackendXsync:
		return newXsyncStore(o.roomCapacity)
	case BackendOtter:
		return newOtterStore(o.roomCapacity)
	case BackendCmap:
		return newCmapStore()
	default:
		return newShardedStore(o.shards, o.roomCapacity)
	}
}

// hashID spreads integer ids with xxhash; sequential room ids would
// otherwise land in neighbouring stripes.
func hashID(id int) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return xxhash.Sum64(b[:])
}
