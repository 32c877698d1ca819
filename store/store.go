// ABOUTME: Object store holding reference-counted slots and their bookkeeping
// ABOUTME: Provides allocation, lookup by id, statistics and graph snapshots

package store

import (
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// SlotID identifies one allocation within a Store. Ids start at 1 and are
// never reused; 0 means "no slot".
type SlotID uint64

// Store is an arena of reference-counted slots. Stores are fully isolated
// from each other; handles from one store never touch another.
//
// The slot table lock only guards inserting, looking up and removing slot
// records. Count changes take the lock of the slot they affect and nothing
// else, so unrelated objects never contend.
type Store struct {
	id      uuid.UUID
	name    string
	logger  *slog.Logger
	tracer  trace.Tracer
	handler ErrorHandler

	nextID atomic.Uint64

	mu    sync.RWMutex
	slots map[SlotID]*slot

	allocated       atomic.Int64
	finalized       atomic.Int64
	reclaimed       atomic.Int64
	finalizerPanics atomic.Int64
	violations      atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithName sets the store name used in logs and spans.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// WithLogger sets the logger. Finalization events are logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for finalization spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithErrorHandler sets the handler that receives every reported error.
// Pass nil to discard reports.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Store) {
		s.handler = h
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		id:     uuid.New(),
		name:   "default",
		slots:  make(map[SlotID]*slot),
		tracer: otel.Tracer("github.com/prateek/arclens/store"),
	}
	s.logger = slog.Default()
	s.handler = &LogHandler{}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(
		slog.String("component", "arclens.store"),
		slog.String("store", s.name),
		slog.String("store_id", s.id.String()),
	)
	if lh, ok := s.handler.(*LogHandler); ok && lh.Logger == nil {
		lh.Logger = s.logger
	}
	return s
}

// ID returns the store's unique instance id.
func (s *Store) ID() uuid.UUID {
	return s.id
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Allocate stores value in a new slot and returns the first strong
// reference to it. The slot starts with strong=1, weak=0.
func Allocate[T any](s *Store, value T) *Strong[T] {
	box := new(T)
	*box = value
	typ := reflect.TypeFor[T]()
	sl := &slot{
		id:     SlotID(s.nextID.Add(1)),
		owner:  s,
		typ:    typ,
		size:   uint64(typ.Size()),
		strong: 1,
		state:  StateLive,
		box:    box,
		load:   func() any { return *box },
		wipe: func() {
			var zero T
			*box = zero
		},
	}

	s.mu.Lock()
	s.slots[sl.id] = sl
	s.mu.Unlock()
	s.allocated.Add(1)

	return &Strong[T]{s: sl, box: box}
}

// Acquire returns a new strong reference to the slot with the given id.
//
// It fails with ErrGone if the slot is unknown or finalized, with
// ErrReviveDuringFinalization if the slot's finalizers are running (a
// finalizer may not resurrect its own object), and with ErrTypeMismatch if
// the slot does not hold a T.
func Acquire[T any](s *Store, id SlotID) (*Strong[T], error) {
	const op = "Store.Acquire"
	sl := s.lookup(id)
	if sl == nil {
		return nil, newError(op, KindGone, id, nil)
	}
	if sl.typ != reflect.TypeFor[T]() {
		return nil, s.report(newError(op, KindTypeMismatch, id, nil))
	}
	if err := sl.retain(op); err != nil {
		if err.Kind == KindGone {
			return nil, err
		}
		return nil, s.fail(err)
	}
	return &Strong[T]{s: sl, box: sl.box.(*T)}, nil
}

// Get returns the payload (a *T for a slot allocated with T) while the slot
// is live. It returns false once the slot is finalized.
func (s *Store) Get(id SlotID) (any, bool) {
	sl := s.lookup(id)
	if sl == nil {
		return nil, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.state != StateLive {
		return nil, false
	}
	return sl.box, true
}

// RegisterFinalizer registers fn to run exactly once when the slot is
// finalized. fn receives the payload by value (a T, boxed in any).
func (s *Store) RegisterFinalizer(id SlotID, fn func(any)) error {
	sl := s.lookup(id)
	if sl == nil {
		return newError("Store.RegisterFinalizer", KindGone, id, nil)
	}
	if err := sl.addFinalizer("Store.RegisterFinalizer", fn); err != nil {
		return err
	}
	return nil
}

// Len returns the number of slot records still tracked, including finalized
// slots kept for outstanding weak references.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Inspect returns a snapshot of one slot.
func (s *Store) Inspect(id SlotID) (SlotInfo, bool) {
	sl := s.lookup(id)
	if sl == nil {
		return SlotInfo{}, false
	}
	return sl.info(), true
}

// Snapshot returns every tracked slot, ordered by id, with the typed edges
// found in live payloads. Counts of different slots are read at slightly
// different instants; callers wanting an exact picture must quiesce mutators.
// Payload fields are read without the slot lock, so a snapshot must not
// overlap with the drop that finalizes a slot; a slot that is finalized while
// it is being read is reported in its new state with no edges.
func (s *Store) Snapshot() []SlotInfo {
	s.mu.RLock()
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	sort.Slice(slots, func(i, j int) bool { return slots[i].id < slots[j].id })

	infos := make([]SlotInfo, 0, len(slots))
	for _, sl := range slots {
		infos = append(infos, sl.info())
	}
	return infos
}

func (s *Store) lookup(id SlotID) *slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[id]
}

// reclaim drops the bookkeeping record of a finalized slot with no weak
// references left.
func (s *Store) reclaim(sl *slot) {
	s.mu.Lock()
	_, ok := s.slots[sl.id]
	delete(s.slots, sl.id)
	s.mu.Unlock()
	if ok {
		s.reclaimed.Add(1)
	}
}

// fail reports a fatal error and counts it.
func (s *Store) fail(err *Error) *Error {
	s.violations.Add(1)
	return s.report(err)
}
