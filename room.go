package roomreg

import "github.com/cockroachdb/swiss"

// user is one member of a room and the input it has sent.
type user struct {
	id     int
	inputs []byte
}

func newUser(id, inputCapacity int) *user {
	return &user{id: id, inputs: make([]byte, 0, inputCapacity)}
}

// appendInput appends p. When the buffer is too small it is reallocated to
// twice the required length so repeated small appends stay amortized O(1).
func (u *user) appendInput(p []byte) {
	need := len(u.inputs) + len(p)
	if need > cap(u.inputs) {
		grown := make([]byte, len(u.inputs), 2*need)
		copy(grown, u.inputs)
		u.inputs = grown
	}
	u.inputs = append(u.inputs, p...)
}

// room holds its users in a swiss table. Everything in a room, including
// user buffers and the optional filter, is guarded by the room's slot in
// the store.
type room struct {
	id     int
	users  *swiss.Map[int, *user]
	joined *blockBloomFilter // nil unless the user filter is enabled
}

func newRoom(id int, o *options) *room {
	rm := &room{
		id:    id,
		users: swiss.New[int, *user](o.userCapacity),
	}
	if o.filterFPRate > 0 {
		rm.joined = newBlockBloomFilter(o.userCapacity, o.filterFPRate)
	}
	return rm
}

// join inserts userID, replacing any existing record unless keep is set.
func (rm *room) join(userID int, o *options) {
	if o.rejoin == RejoinKeep {
		if _, ok := rm.users.Get(userID); ok {
			return
		}
	}
	rm.users.Put(userID, newUser(userID, o.inputCapacity))
	if rm.joined != nil {
		rm.joined.Add(hashID(userID))
	}
}

func (rm *room) lookup(userID int) *user {
	if rm.joined != nil && !rm.joined.Contains(hashID(userID)) {
		return nil
	}
	u, _ := rm.users.Get(userID)
	return u
}
