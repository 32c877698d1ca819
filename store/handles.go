// ABOUTME: Typed strong, weak and unowned handles over store slots
// ABOUTME: Encapsulates the count mutation rules for each reference strength

package store

import (
	"log/slog"
	"sync/atomic"
)

// Strong is an owning reference. While any Strong to a slot exists the
// slot is live and its payload is intact.
//
// Each Strong is one reference: Clone produces a new one, and every handle
// must be dropped exactly once. Dropping the same handle twice returns
// ErrDoubleDrop and leaves the count untouched. Using a dropped handle
// panics with ErrReleasedHandle.
type Strong[T any] struct {
	s        *slot
	box      *T
	released atomic.Bool
}

// Slot returns the referenced slot id, or 0 if r is nil or dropped.
func (r *Strong[T]) Slot() SlotID {
	if r == nil || r.s == nil || r.released.Load() {
		return 0
	}
	return r.s.id
}

// Strength returns StrengthStrong.
func (r *Strong[T]) Strength() Strength {
	return StrengthStrong
}

// Get returns the payload. The pointer is valid while r is held.
func (r *Strong[T]) Get() *T {
	r.mustHold("Strong.Get")
	return r.box
}

// Clone returns a new strong reference to the same slot.
func (r *Strong[T]) Clone() *Strong[T] {
	const op = "Strong.Clone"
	r.mustHold(op)
	if err := r.s.retain(op); err != nil {
		panic(r.s.owner.fail(err))
	}
	return &Strong[T]{s: r.s, box: r.box}
}

// Downgrade returns a weak reference to the same slot.
func (r *Strong[T]) Downgrade() *Weak[T] {
	r.mustHold("Strong.Downgrade")
	r.s.retainWeak()
	return &Weak[T]{s: r.s, box: r.box}
}

// Unowned returns an unowned reference to the same slot. It does not change
// any count. Resolving it is only safe while something else is known to keep
// the slot alive; see Unowned.
func (r *Strong[T]) Unowned() *Unowned[T] {
	r.mustHold("Strong.Unowned")
	return &Unowned[T]{s: r.s, box: r.box}
}

// RegisterFinalizer registers fn to run once, with the payload by value,
// when the slot is finalized.
func (r *Strong[T]) RegisterFinalizer(fn func(T)) error {
	const op = "Strong.RegisterFinalizer"
	r.mustHold(op)
	if err := r.s.addFinalizer(op, func(v any) { fn(v.(T)) }); err != nil {
		return err
	}
	return nil
}

// StrongCount returns the current strong count of the slot.
func (r *Strong[T]) StrongCount() uint32 {
	r.mustHold("Strong.StrongCount")
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.strong
}

// WeakCount returns the current weak count of the slot.
func (r *Strong[T]) WeakCount() uint32 {
	r.mustHold("Strong.WeakCount")
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.weak
}

// Drop releases this reference. If it was the last strong reference the slot
// is finalized before Drop returns, on the calling goroutine, including any
// objects whose last strong reference was held by the payload.
func (r *Strong[T]) Drop() error {
	const op = "Strong.Drop"
	if r == nil || r.s == nil {
		return nil
	}
	if !r.released.CompareAndSwap(false, true) {
		return r.s.owner.report(newError(op, KindDoubleDrop, r.s.id, nil))
	}
	r.s.owner.dropStrong(r.s, op)
	return nil
}

func (r *Strong[T]) teardown() *finalJob {
	if r == nil || r.s == nil || !r.released.CompareAndSwap(false, true) {
		return nil
	}
	return r.s.owner.releaseStrong(r.s, "teardown")
}

func (r *Strong[T]) mustHold(op string) {
	if r == nil || r.s == nil {
		panic(newError(op, KindReleasedHandle, 0, nil))
	}
	if r.released.Load() {
		panic(r.s.owner.fail(newError(op, KindReleasedHandle, r.s.id, nil)))
	}
}

// Weak is a non-owning reference that tracks liveness. Resolving it yields a
// strong reference while the slot is live and nothing afterwards.
type Weak[T any] struct {
	s        *slot
	box      *T
	released atomic.Bool
}

// Slot returns the referenced slot id, or 0 if w is nil or dropped.
func (w *Weak[T]) Slot() SlotID {
	if w == nil || w.s == nil || w.released.Load() {
		return 0
	}
	return w.s.id
}

// Strength returns StrengthWeak.
func (w *Weak[T]) Strength() Strength {
	return StrengthWeak
}

// Resolve returns a new strong reference if the slot is still live. A false
// result is the normal signal that the referent is gone.
func (w *Weak[T]) Resolve() (*Strong[T], bool) {
	if w == nil || w.s == nil || w.released.Load() {
		return nil, false
	}
	switch w.s.tryRetain() {
	case StateLive:
		return &Strong[T]{s: w.s, box: w.box}, true
	case StateFinalizing:
		w.s.owner.logger.Debug("weak resolve during finalization",
			slog.Uint64("slot", uint64(w.s.id)),
			slog.String("kind", KindReviveDuringFinalization.String()),
		)
	}
	return nil, false
}

// Alive reports whether the referent is still live. The answer may be stale
// by the time the caller acts on it; use Resolve to act.
func (w *Weak[T]) Alive() bool {
	if w == nil || w.s == nil || w.released.Load() {
		return false
	}
	return w.s.live()
}

// Clone returns a new weak reference to the same slot. Cloning is allowed
// after the referent is finalized.
func (w *Weak[T]) Clone() *Weak[T] {
	if w == nil || w.s == nil {
		panic(newError("Weak.Clone", KindReleasedHandle, 0, nil))
	}
	if w.released.Load() {
		panic(w.s.owner.fail(newError("Weak.Clone", KindReleasedHandle, w.s.id, nil)))
	}
	w.s.retainWeak()
	return &Weak[T]{s: w.s, box: w.box}
}

// Drop releases this weak reference. The last weak reference to a finalized
// slot frees its bookkeeping record.
func (w *Weak[T]) Drop() error {
	const op = "Weak.Drop"
	if w == nil || w.s == nil {
		return nil
	}
	if !w.released.CompareAndSwap(false, true) {
		return w.s.owner.report(newError(op, KindDoubleDrop, w.s.id, nil))
	}
	if err := w.s.releaseWeak(op); err != nil {
		panic(w.s.owner.fail(err))
	}
	return nil
}

func (w *Weak[T]) teardown() *finalJob {
	if w == nil || w.s == nil || !w.released.CompareAndSwap(false, true) {
		return nil
	}
	if err := w.s.releaseWeak("teardown"); err != nil {
		panic(w.s.owner.fail(err))
	}
	return nil
}

// Unowned is a non-owning reference that does not track liveness in any
// count. It is only correct under an ownership-direction invariant: the
// referent must outlive every holder of the Unowned (typically because the
// referent strongly owns the holder). The store cannot prove that invariant;
// it only detects a violation when Get is called on a finalized referent.
type Unowned[T any] struct {
	s   *slot
	box *T
}

// Slot returns the referenced slot id, or 0 if u is nil.
func (u *Unowned[T]) Slot() SlotID {
	if u == nil || u.s == nil {
		return 0
	}
	return u.s.id
}

// Strength returns StrengthUnowned.
func (u *Unowned[T]) Strength() Strength {
	return StrengthUnowned
}

// Get returns the payload, or ErrUseAfterFree if the referent has been
// finalized. Such an error is a broken ownership contract, never an expected
// outcome.
func (u *Unowned[T]) Get() (*T, error) {
	const op = "Unowned.Get"
	if u == nil || u.s == nil {
		return nil, newError(op, KindUseAfterFree, 0, nil)
	}
	if !u.s.live() {
		return nil, u.s.owner.fail(newError(op, KindUseAfterFree, u.s.id, nil))
	}
	return u.box, nil
}

// MustGet is like Get but panics on a finalized referent.
func (u *Unowned[T]) MustGet() *T {
	v, err := u.Get()
	if err != nil {
		panic(err)
	}
	return v
}

func (u *Unowned[T]) teardown() *finalJob {
	return nil
}
