// ABOUTME: Structured error kinds for the reference-counted object store
// ABOUTME: Contract violations, invariant failures and lookup misses share one Error type

package store

import (
	"fmt"
	"time"
)

// Kind identifies the category of a store error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindUseAfterFree indicates an unowned reference was resolved after its
	// referent was finalized.
	KindUseAfterFree
	// KindReviveDuringFinalization indicates an attempt to take a new strong
	// reference to a slot while its finalizers are running.
	KindReviveDuringFinalization
	// KindDoubleFinalization indicates the engine was asked to finalize a slot
	// that is no longer live. This is a counting bug, never a normal path.
	KindDoubleFinalization
	// KindDoubleDrop indicates a handle instance was dropped twice.
	KindDoubleDrop
	// KindReleasedHandle indicates a dropped strong handle was used.
	KindReleasedHandle
	// KindTypeMismatch indicates a slot was acquired with the wrong type.
	KindTypeMismatch
	// KindFinalizerPanic indicates a finalizer callback panicked.
	KindFinalizerPanic
	// KindGone indicates a slot id is unknown or already finalized.
	KindGone
	// KindCountUnderflow indicates a strong or weak count went below zero.
	KindCountUnderflow
)

func (k Kind) String() string {
	switch k {
	case KindUseAfterFree:
		return "use-after-free"
	case KindReviveDuringFinalization:
		return "revive-during-finalization"
	case KindDoubleFinalization:
		return "double-finalization"
	case KindDoubleDrop:
		return "double-drop"
	case KindReleasedHandle:
		return "released-handle"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindFinalizerPanic:
		return "finalizer-panic"
	case KindGone:
		return "gone"
	case KindCountUnderflow:
		return "count-underflow"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind are contract or invariant
// violations rather than expected outcomes.
func (k Kind) Fatal() bool {
	switch k {
	case KindUseAfterFree, KindReviveDuringFinalization, KindDoubleFinalization,
		KindReleasedHandle, KindCountUnderflow:
		return true
	}
	return false
}

// Error is a structured store error.
type Error struct {
	// Op is the operation that failed (e.g. "Unowned.Get").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Slot is the slot involved, 0 if none.
	Slot SlotID
	// Err is the underlying error, if any.
	Err error
	// StackTrace is captured for fatal kinds and finalizer panics.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	if e.Slot != 0 {
		msg += fmt.Sprintf(" slot=%d", e.Slot)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so the sentinels below work with
// errors.Is regardless of Op or Slot.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Slot == 0
}

// Sentinels for errors.Is.
var (
	ErrUseAfterFree             = &Error{Kind: KindUseAfterFree}
	ErrReviveDuringFinalization = &Error{Kind: KindReviveDuringFinalization}
	ErrDoubleFinalization       = &Error{Kind: KindDoubleFinalization}
	ErrDoubleDrop               = &Error{Kind: KindDoubleDrop}
	ErrReleasedHandle           = &Error{Kind: KindReleasedHandle}
	ErrTypeMismatch             = &Error{Kind: KindTypeMismatch}
	ErrFinalizerPanic           = &Error{Kind: KindFinalizerPanic}
	ErrGone                     = &Error{Kind: KindGone}
	ErrCountUnderflow           = &Error{Kind: KindCountUnderflow}
)

func newError(op string, kind Kind, id SlotID, err error) *Error {
	e := &Error{
		Op:        op,
		Kind:      kind,
		Slot:      id,
		Err:       err,
		Timestamp: time.Now(),
	}
	if kind.Fatal() {
		e.StackTrace = CaptureStack()
	}
	return e
}
