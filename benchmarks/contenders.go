// Package benchmarks compares the room registry backends against rooms built
// on general-purpose cache libraries.
package benchmarks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/codeGROOVE-dev/roomreg"
	"github.com/coocood/freecache"
	"github.com/dgraph-io/ristretto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/go-tinylfu"
)

// Contender is one implementation of the join/append workload.
type Contender interface {
	Name() string
	Join(room, user int)
	AddInput(room, user int, p []byte)
	// Users counts user records that survived; lossy contenders may report
	// fewer than were joined.
	Users() int
	// Exact reports whether the contender keeps every join and append.
	// Cache-backed contenders can drop entries through admission or eviction.
	Exact() bool
}

// Names lists every contender, registry backends first.
var Names = []string{"sharded", "xsync", "otter", "cmap", "baseline", "lru", "ristretto", "tinylfu", "freecache"}

// inputCapacity matches the registry's default per-user buffer.
const inputCapacity = 64

// New builds the named contender sized for rooms x users.
func New(name string, rooms, users int) (Contender, error) {
	if b, err := roomreg.ParseBackend(name); err == nil {
		return &registryContender{
			Registry: roomreg.New(roomreg.WithBackend(b), roomreg.WithRoomCapacity(rooms), roomreg.WithUserCapacity(users)),
		}, nil
	}
	switch name {
	case "baseline":
		return &baseline{rooms: make(map[int]map[int][]byte, rooms), users: users}, nil
	case "lru":
		return newLRUContender(rooms, users)
	case "ristretto":
		return newRistrettoContender(rooms, users)
	case "tinylfu":
		return newTinyLFUContender(rooms, users), nil
	case "freecache":
		return newFreecacheContender(rooms, users), nil
	}
	return nil, fmt.Errorf("unknown contender %q", name)
}

// MustNew is New for callers with a fixed, known-good name.
func MustNew(name string, rooms, users int) Contender {
	c, err := New(name, rooms, users)
	if err != nil {
		panic(err)
	}
	return c
}

// =============================================================================
// Registry backends
// =============================================================================

type registryContender struct {
	*roomreg.Registry
}

func (c *registryContender) Name() string                      { return c.Backend().String() }
func (c *registryContender) Join(room, user int)               { c.JoinRoom(room, user) }
func (c *registryContender) AddInput(room, user int, p []byte) { c.AddUserInput(room, user, p) }
func (c *registryContender) Users() int                        { return c.Stats().Users }
func (*registryContender) Exact() bool                         { return true }

// =============================================================================
// Baseline: one mutex over nested Go maps
// =============================================================================

type baseline struct {
	mu    sync.Mutex
	rooms map[int]map[int][]byte
	users int
}

func (*baseline) Name() string { return "baseline" }

func (c *baseline) Join(room, user int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rm, ok := c.rooms[room]
	if !ok {
		rm = make(map[int][]byte, c.users)
		c.rooms[room] = rm
	}
	rm[user] = make([]byte, 0, inputCapacity)
}

func (c *baseline) AddInput(room, user int, p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if buf, ok := c.rooms[room][user]; ok {
		c.rooms[room][user] = append(buf, p...)
	}
}

func (c *baseline) Users() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, rm := range c.rooms {
		n += len(rm)
	}
	return n
}

func (*baseline) Exact() bool { return true }

// lockedRoom is the room value for cache-backed contenders: the cache only
// finds the room, the room's own mutex guards its users.
type lockedRoom struct {
	mu    sync.Mutex
	users map[int][]byte
}

func newLockedRoom(users int) *lockedRoom {
	return &lockedRoom{users: make(map[int][]byte, users)}
}

func (rm *lockedRoom) join(user int) {
	rm.mu.Lock()
	rm.users[user] = make([]byte, 0, inputCapacity)
	rm.mu.Unlock()
}

func (rm *lockedRoom) add(user int, p []byte) {
	rm.mu.Lock()
	if buf, ok := rm.users[user]; ok {
		rm.users[user] = append(buf, p...)
	}
	rm.mu.Unlock()
}

func (rm *lockedRoom) len() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.users)
}

// =============================================================================
// hashicorp/golang-lru
// =============================================================================

type lruContender struct {
	cache *lru.Cache[int, *lockedRoom]
	users int
}

// newLRUContender sizes the cache to hold every room, so nothing is evicted.
func newLRUContender(rooms, users int) (*lruContender, error) {
	cache, err := lru.New[int, *lockedRoom](max(rooms, 1))
	if err != nil {
		return nil, fmt.Errorf("lru.New: %w", err)
	}
	return &lruContender{cache: cache, users: users}, nil
}

func (*lruContender) Name() string { return "lru" }

func (c *lruContender) Join(room, user int) {
	rm, ok := c.cache.Get(room)
	if !ok {
		fresh := newLockedRoom(c.users)
		if prev, found, _ := c.cache.PeekOrAdd(room, fresh); found {
			rm = prev
		} else {
			rm = fresh
		}
	}
	rm.join(user)
}

func (c *lruContender) AddInput(room, user int, p []byte) {
	if rm, ok := c.cache.Get(room); ok {
		rm.add(user, p)
	}
}

func (c *lruContender) Users() int {
	n := 0
	for _, rm := range c.cache.Values() {
		n += rm.len()
	}
	return n
}

func (*lruContender) Exact() bool { return true }

// =============================================================================
// dgraph-io/ristretto
// =============================================================================

// ristrettoContender buffers sets asynchronously; concurrent first joins of
// one room can race and lose a room.
type ristrettoContender struct {
	cache *ristretto.Cache
	rooms int
	users int
}

func newRistrettoContender(rooms, users int) (*ristrettoContender, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(max(rooms, 1) * 10),
		MaxCost:            int64(max(rooms, 1)),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto.NewCache: %w", err)
	}
	return &ristrettoContender{cache: cache, rooms: rooms, users: users}, nil
}

func (*ristrettoContender) Name() string { return "ristretto" }

func (c *ristrettoContender) Join(room, user int) {
	if v, ok := c.cache.Get(room); ok {
		v.(*lockedRoom).join(user) //nolint:forcetypeassert // only *lockedRoom is stored
		return
	}
	rm := newLockedRoom(c.users)
	rm.join(user)
	c.cache.Set(room, rm, 1)
	c.cache.Wait()
}

func (c *ristrettoContender) AddInput(room, user int, p []byte) {
	if v, ok := c.cache.Get(room); ok {
		v.(*lockedRoom).add(user, p) //nolint:forcetypeassert // only *lockedRoom is stored
	}
}

func (c *ristrettoContender) Users() int {
	n := 0
	for room := range c.rooms {
		if v, ok := c.cache.Get(room); ok {
			n += v.(*lockedRoom).len() //nolint:forcetypeassert // only *lockedRoom is stored
		}
	}
	return n
}

func (*ristrettoContender) Exact() bool { return false }

// =============================================================================
// vmihailenco/go-tinylfu
// =============================================================================

type tinyLFUContender struct {
	cache *tinylfu.SyncT
	keys  []string
	users int
}

func newTinyLFUContender(rooms, users int) *tinyLFUContender {
	// Pre-compute keys to keep strconv out of the hot path.
	keys := make([]string, rooms)
	for i := range rooms {
		keys[i] = strconv.Itoa(i)
	}
	return &tinyLFUContender{
		cache: tinylfu.NewSync(max(rooms, 1), max(rooms, 1)*10),
		keys:  keys,
		users: users,
	}
}

func (c *tinyLFUContender) key(room int) string {
	if room >= 0 && room < len(c.keys) {
		return c.keys[room]
	}
	return strconv.Itoa(room)
}

func (*tinyLFUContender) Name() string { return "tinylfu" }

func (c *tinyLFUContender) Join(room, user int) {
	k := c.key(room)
	if v, ok := c.cache.Get(k); ok {
		v.(*lockedRoom).join(user) //nolint:forcetypeassert // only *lockedRoom is stored
		return
	}
	rm := newLockedRoom(c.users)
	rm.join(user)
	c.cache.Set(&tinylfu.Item{Key: k, Value: rm})
}

func (c *tinyLFUContender) AddInput(room, user int, p []byte) {
	if v, ok := c.cache.Get(c.key(room)); ok {
		v.(*lockedRoom).add(user, p) //nolint:forcetypeassert // only *lockedRoom is stored
	}
}

func (c *tinyLFUContender) Users() int {
	n := 0
	for _, k := range c.keys {
		if v, ok := c.cache.Get(k); ok {
			n += v.(*lockedRoom).len() //nolint:forcetypeassert // only *lockedRoom is stored
		}
	}
	return n
}

func (*tinyLFUContender) Exact() bool { return false }

// =============================================================================
// coocood/freecache
// =============================================================================

// freecacheContender stores one flat byte buffer per (room, user) key.
// freecache copies values in and out, so every append rewrites the whole
// buffer; the mutex makes that read-modify-write atomic.
type freecacheContender struct {
	mu    sync.Mutex
	cache *freecache.Cache
}

func newFreecacheContender(rooms, users int) *freecacheContender {
	size := max(rooms*users*1024, 512*1024)
	return &freecacheContender{cache: freecache.NewCache(size)}
}

func userKey(room, user int) []byte {
	var k [16]byte
	binary.LittleEndian.PutUint64(k[:8], uint64(room))
	binary.LittleEndian.PutUint64(k[8:], uint64(user))
	return k[:]
}

func (*freecacheContender) Name() string { return "freecache" }

func (c *freecacheContender) Join(room, user int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(userKey(room, user), nil, 0) //nolint:errcheck // oversized entries are dropped; contender is lossy
}

func (c *freecacheContender) AddInput(room, user int, p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := userKey(room, user)
	buf, err := c.cache.Get(k)
	if errors.Is(err, freecache.ErrNotFound) {
		return
	}
	c.cache.Set(k, append(buf, p...), 0) //nolint:errcheck // oversized entries are dropped; contender is lossy
}

func (c *freecacheContender) Users() int {
	return int(c.cache.EntryCount())
}

func (*freecacheContender) Exact() bool { return false }
