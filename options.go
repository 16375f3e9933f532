package roomreg

import "go.uber.org/zap"

const (
	defaultRoomCapacity  = 64
	defaultUserCapacity  = 32
	defaultInputCapacity = 64
	defaultShards        = 64
	defaultFilterFPRate  = 0.01
)

// MaxShards is the largest stripe count the sharded backend accepts.
const MaxShards = 1 << 16

// RejoinPolicy decides what JoinRoom does for a user already in the room.
type RejoinPolicy int

const (
	// RejoinReset replaces the user's record, emptying its input buffer.
	RejoinReset RejoinPolicy = iota
	// RejoinKeep leaves an existing record and its input untouched.
	RejoinKeep
)

func (p RejoinPolicy) String() string {
	if p == RejoinKeep {
		return "keep"
	}
	return "reset"
}

type options struct {
	backend       Backend
	roomCapacity  int
	userCapacity  int
	inputCapacity int
	shards        int
	rejoin        RejoinPolicy
	filterFPRate  float64
	logger        *zap.Logger
}

// Option configures a Registry.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		backend:       BackendSharded,
		roomCapacity:  defaultRoomCapacity,
		userCapacity:  defaultUserCapacity,
		inputCapacity: defaultInputCapacity,
		shards:        defaultShards,
		logger:        zap.NewNop(),
	}
}

// WithBackend selects the concurrent map used for rooms.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithRoomCapacity pre-sizes the room map.
func WithRoomCapacity(n int) Option {
	return func(o *options) {
		o.roomCapacity = max(n, 1)
	}
}

// WithUserCapacity pre-sizes each room's user map.
func WithUserCapacity(n int) Option {
	return func(o *options) {
		o.userCapacity = max(n, 1)
	}
}

// WithInputCapacity pre-sizes each user's input buffer, in bytes.
func WithInputCapacity(n int) Option {
	return func(o *options) {
		o.inputCapacity = max(n, 1)
	}
}

// WithShards sets the stripe count of the sharded backend. It is clamped to
// [1, MaxShards] and rounded up to a power of two.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = min(max(n, 1), MaxShards)
	}
}

// WithRejoin sets the rejoin policy. The default is RejoinReset.
func WithRejoin(p RejoinPolicy) Option {
	return func(o *options) {
		o.rejoin = p
	}
}

// WithUserFilter gives every room a bloom filter of joined user ids so that
// input for unknown users is dropped without a map lookup. Rates outside
// (0, 1) are ignored.
func WithUserFilter(fpRate float64) Option {
	return func(o *options) {
		if fpRate > 0 && fpRate < 1 {
			o.filterFPRate = fpRate
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
