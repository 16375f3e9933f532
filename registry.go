// Package roomreg is a concurrent two-level registry of rooms and their users,
// where every user accumulates raw input bytes.
//
// Each room is guarded as one unit: joining or appending holds the room's
// slot in the backing map for the duration of the call, so calls for the
// same room serialize while calls for different rooms proceed in parallel.
// Nothing is atomic across rooms.
package roomreg

import "go.uber.org/zap"

// Registry maps room ids to rooms. It is safe for concurrent use.
type Registry struct {
	rooms roomStore
	opts  *options
	log   *zap.Logger
}

// Stats is an aggregate view of a registry. Rooms are visited one at a time,
// so under concurrent writes the totals are not a single point-in-time view.
type Stats struct {
	Rooms         int
	Users         int
	InputLength   int
	InputCapacity int
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	r := &Registry{
		rooms: newRoomStore(o),
		opts:  o,
		log:   o.logger.Named("roomreg"),
	}
	r.log.Info("registry created",
		zap.Stringer("backend", o.backend),
		zap.Int("room_capacity", o.roomCapacity),
		zap.Int("user_capacity", o.userCapacity),
		zap.Int("input_capacity", o.inputCapacity),
		zap.Stringer("rejoin", o.rejoin),
		zap.Bool("user_filter", o.filterFPRate > 0))
	return r
}

// Backend reports which map holds the rooms.
func (r *Registry) Backend() Backend {
	return r.opts.backend
}

// JoinRoom registers userID in roomID, creating the room if needed. Under
// the default RejoinReset policy an existing user is replaced with an empty
// record.
func (r *Registry) JoinRoom(roomID, userID int) {
	r.rooms.compute(roomID, true, func(rm *room) *room {
		if rm == nil {
			rm = newRoom(roomID, r.opts)
			if ce := r.log.Check(zap.DebugLevel, "room created"); ce != nil {
				ce.Write(zap.Int("room", roomID), zap.Int("first_user", userID))
			}
		}
		rm.join(userID, r.opts)
		return rm
	})
}

// AddUserInput appends input to the user's buffer. It does nothing if the
// room or the user does not exist. input is copied; the caller keeps it.
func (r *Registry) AddUserInput(roomID, userID int, input []byte) {
	r.rooms.compute(roomID, false, func(rm *room) *room {
		if u := rm.lookup(userID); u != nil {
			u.appendInput(input)
		}
		return rm
	})
}

// Input returns a copy of the user's accumulated input.
func (r *Registry) Input(roomID, userID int) ([]byte, bool) {
	var (
		out   []byte
		found bool
	)
	r.rooms.compute(roomID, false, func(rm *room) *room {
		if u := rm.lookup(userID); u != nil {
			out = append(make([]byte, 0, len(u.inputs)), u.inputs...)
			found = true
		}
		return rm
	})
	return out, found
}

// HasRoom reports whether roomID has been created.
func (r *Registry) HasRoom(roomID int) bool {
	found := false
	r.rooms.compute(roomID, false, func(rm *room) *room {
		found = true
		return rm
	})
	return found
}

// HasUser reports whether userID has joined roomID.
func (r *Registry) HasUser(roomID, userID int) bool {
	found := false
	r.rooms.compute(roomID, false, func(rm *room) *room {
		found = rm.lookup(userID) != nil
		return rm
	})
	return found
}

// Len returns the number of rooms.
func (r *Registry) Len() int {
	return r.rooms.len()
}

// Stats walks every room and totals users and buffer sizes.
func (r *Registry) Stats() Stats {
	var st Stats
	for _, id := range r.rooms.ids() {
		r.rooms.compute(id, false, func(rm *room) *room {
			st.Rooms++
			st.Users += rm.users.Len()
			rm.users.All(func(_ int, u *user) bool {
				st.InputLength += len(u.inputs)
				st.InputCapacity += cap(u.inputs)
				return true
			})
			return rm
		})
	}
	return st
}
