// ABOUTME: Per-slot bookkeeping record and its count transitions
// ABOUTME: Every strong/weak count change goes through the slot's own mutex

package store

import (
	"reflect"
	"sync"
)

// State is the lifecycle state of a slot.
type State uint8

const (
	// StateLive means the slot has at least one strong reference.
	StateLive State = iota
	// StateFinalizing means the strong count reached zero and finalizers are
	// running on the goroutine that dropped the last reference.
	StateFinalizing
	// StateFinalized means the payload has been released. The record remains
	// only while weak references to it exist.
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateFinalizing:
		return "finalizing"
	case StateFinalized:
		return "finalized"
	default:
		return "invalid"
	}
}

// Strength is the ownership strength of a reference.
type Strength uint8

const (
	// Strong references own their referent.
	StrengthStrong Strength = iota + 1
	// Weak references observe liveness without owning.
	StrengthWeak
	// Unowned references trust liveness without checking it up front.
	StrengthUnowned
)

func (s Strength) String() string {
	switch s {
	case StrengthStrong:
		return "strong"
	case StrengthWeak:
		return "weak"
	case StrengthUnowned:
		return "unowned"
	default:
		return "invalid"
	}
}

// Handle is implemented by *Strong[T], *Weak[T] and *Unowned[T].
type Handle interface {
	// Slot returns the referenced slot, or 0 for a nil or dropped handle.
	Slot() SlotID
	// Strength returns the kind of reference.
	Strength() Strength

	// teardown releases the handle when the payload holding it is
	// finalized. It returns a follow-up finalization, if any.
	teardown() *finalJob
}

// Referencer is implemented by payloads that store handles in their fields,
// either on *T or, for a pointer payload such as *Node, on the payload
// itself. References must return every handle the payload holds; nil and dropped
// handles are ignored. When the payload is finalized the store releases the
// strong and weak handles listed here, which is how ownership cascades.
type Referencer interface {
	References() []Handle
}

// Edge is a typed reference from one slot's payload to another slot.
type Edge struct {
	To       SlotID
	Strength Strength
}

// SlotInfo is a point-in-time view of one slot.
type SlotInfo struct {
	ID     SlotID
	Type   string
	Size   uint64
	Strong uint32
	Weak   uint32
	State  State
	Edges  []Edge
}

type slot struct {
	id    SlotID
	owner *Store
	typ   reflect.Type
	size  uint64

	// box is the *T the payload lives in; load copies the payload out and
	// wipe zeroes it once finalization is done.
	box  any
	load func() any
	wipe func()

	mu         sync.Mutex
	strong     uint32
	weak       uint32
	state      State
	finalizers []func(any)
}

// finalJob carries a slot through the deallocation engine.
type finalJob struct {
	s          *slot
	finalizers []func(any)
}

func (sl *slot) retain(op string) *Error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	switch sl.state {
	case StateFinalizing:
		return newError(op, KindReviveDuringFinalization, sl.id, nil)
	case StateFinalized:
		return newError(op, KindGone, sl.id, nil)
	}
	sl.strong++
	return nil
}

// tryRetain is the check-and-increment used by weak resolution. It shares the
// slot lock with release, so it can never succeed on a slot whose strong
// count has already reached zero. It returns the state it observed; the
// retain happened only if that state is StateLive.
func (sl *slot) tryRetain() State {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.state != StateLive {
		return sl.state
	}
	sl.strong++
	return StateLive
}

// release drops one strong reference. On the transition to zero the slot
// becomes finalizing and the returned job must be run by the caller.
func (sl *slot) release(op string) (*finalJob, *Error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.strong == 0 {
		return nil, newError(op, KindCountUnderflow, sl.id, nil)
	}
	sl.strong--
	if sl.strong > 0 {
		return nil, nil
	}
	if sl.state != StateLive {
		return nil, newError(op, KindDoubleFinalization, sl.id, nil)
	}
	sl.state = StateFinalizing
	job := &finalJob{s: sl, finalizers: sl.finalizers}
	sl.finalizers = nil
	return job, nil
}

func (sl *slot) retainWeak() {
	sl.mu.Lock()
	sl.weak++
	sl.mu.Unlock()
}

func (sl *slot) releaseWeak(op string) *Error {
	sl.mu.Lock()
	if sl.weak == 0 {
		sl.mu.Unlock()
		return newError(op, KindCountUnderflow, sl.id, nil)
	}
	sl.weak--
	reclaim := sl.weak == 0 && sl.state == StateFinalized
	sl.mu.Unlock()
	if reclaim {
		sl.owner.reclaim(sl)
	}
	return nil
}

// finish marks the slot finalized once its finalizers and teardown are done.
func (sl *slot) finish() {
	sl.mu.Lock()
	if sl.state != StateFinalizing {
		sl.mu.Unlock()
		panic(sl.owner.fail(newError("finalize", KindDoubleFinalization, sl.id, nil)))
	}
	sl.state = StateFinalized
	reclaim := sl.weak == 0
	sl.mu.Unlock()
	if reclaim {
		sl.owner.reclaim(sl)
	}
}

func (sl *slot) live() bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.state == StateLive
}

func (sl *slot) addFinalizer(op string, fn func(any)) *Error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.state != StateLive {
		return newError(op, KindGone, sl.id, nil)
	}
	sl.finalizers = append(sl.finalizers, fn)
	return nil
}

func (sl *slot) info() SlotInfo {
	sl.mu.Lock()
	info := SlotInfo{
		ID:     sl.id,
		Type:   sl.typ.String(),
		Size:   sl.size,
		Strong: sl.strong,
		Weak:   sl.weak,
		State:  sl.state,
	}
	live := sl.state == StateLive
	sl.mu.Unlock()
	if !live {
		return info
	}

	// References runs user code, so it is called without the slot lock.
	for _, h := range sl.references() {
		if h == nil {
			continue
		}
		if to := h.Slot(); to != 0 {
			info.Edges = append(info.Edges, Edge{To: to, Strength: h.Strength()})
		}
	}

	// A slot finalized while its edges were read reports its new state and
	// no edges; the payload it held is being torn down.
	sl.mu.Lock()
	if sl.state != StateLive {
		info.Strong, info.Weak, info.State = sl.strong, sl.weak, sl.state
		info.Edges = nil
	}
	sl.mu.Unlock()
	return info
}

// references returns the handles held by the payload. The pointer to the
// payload is checked first; pointer payloads may implement Referencer on
// the payload value itself.
func (sl *slot) references() []Handle {
	if r, ok := sl.box.(Referencer); ok {
		return r.References()
	}
	v := sl.load()
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	if r, ok := v.(Referencer); ok {
		return r.References()
	}
	return nil
}
