// ABOUTME: Tests for the deallocation engine
// ABOUTME: Covers finalizer semantics, cascading teardown and ownership scenarios

package store

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestFinalizerReceivesPayloadByValue(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, node{name: "a"})

	var got node
	calls := 0
	a.RegisterFinalizer(func(n node) {
		calls++
		got = n
	})
	a.Get().name = "renamed"

	a.Drop()
	if calls != 1 {
		t.Fatalf("finalizer ran %d times, want 1", calls)
	}
	if got.name != "renamed" {
		t.Errorf("finalizer saw name %q, want %q", got.name, "renamed")
	}
}

func TestFinalizersRunInRegistrationOrder(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, 7)

	var order []string
	a.RegisterFinalizer(func(int) { order = append(order, "typed") })
	s.RegisterFinalizer(a.Slot(), func(v any) {
		if v.(int) != 7 {
			t.Errorf("untyped finalizer got %v, want 7", v)
		}
		order = append(order, "untyped")
	})

	a.Drop()
	want := []string{"typed", "untyped"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRegisterFinalizerOnFinalizedSlot(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, 1)
	w := a.Downgrade()
	defer w.Drop()
	a.Drop()

	err := s.RegisterFinalizer(w.Slot(), func(any) {})
	if !errors.Is(err, ErrGone) {
		t.Errorf("RegisterFinalizer after finalization = %v, want ErrGone", err)
	}
}

func TestFinalizerPanicIsRecovered(t *testing.T) {
	s, rec := newTestStore(t)
	a := Allocate(s, 1)

	second := false
	a.RegisterFinalizer(func(int) { panic("boom") })
	a.RegisterFinalizer(func(int) { second = true })

	a.Drop()
	if !second {
		t.Error("finalizer after a panicking one did not run")
	}
	if kinds := rec.kinds(); len(kinds) != 1 || kinds[0] != KindFinalizerPanic {
		t.Errorf("reported kinds = %v, want [finalizer-panic]", kinds)
	}
	if s.Stats().FinalizerPanics != 1 {
		t.Errorf("FinalizerPanics = %d, want 1", s.Stats().FinalizerPanics)
	}
	if s.Stats().Finalized != 1 {
		t.Errorf("Finalized = %d, want 1", s.Stats().Finalized)
	}
}

func TestReviveDuringFinalization(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	id := a.Slot()
	w := a.Downgrade()
	defer w.Drop()

	var acquireErr error
	resolved := true
	stateDuring := StateLive
	a.RegisterFinalizer(func(node) {
		_, acquireErr = Acquire[node](s, id)
		_, resolved = w.Resolve()
		info, _ := s.Inspect(id)
		stateDuring = info.State
	})

	a.Drop()
	if !errors.Is(acquireErr, ErrReviveDuringFinalization) {
		t.Errorf("Acquire inside finalizer = %v, want ErrReviveDuringFinalization", acquireErr)
	}
	if resolved {
		t.Error("weak Resolve inside own finalizer returned a strong reference")
	}
	if stateDuring != StateFinalizing {
		t.Errorf("state during finalizer = %v, want finalizing", stateDuring)
	}
	if info, _ := s.Inspect(id); info.State != StateFinalized {
		t.Errorf("state after Drop = %v, want finalized", info.State)
	}
}

func TestUnownedInsideOwnFinalizer(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, 1)
	u := a.Unowned()

	var err error
	a.RegisterFinalizer(func(int) { _, err = u.Get() })
	a.Drop()
	if !errors.Is(err, ErrUseAfterFree) {
		t.Errorf("Unowned.Get inside finalizer = %v, want ErrUseAfterFree", err)
	}
}

func TestPayloadWipedAfterFinalization(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	p := a.Get()
	a.Drop()
	if p.name != "" {
		t.Errorf("payload still holds %q after finalization", p.name)
	}
}

func TestCascadeFinalizesOwnedObjects(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	b := Allocate(s, node{name: "b"})
	c := Allocate(s, node{name: "c"})

	var order []string
	for _, h := range []*Strong[node]{a, b, c} {
		h.RegisterFinalizer(func(n node) { order = append(order, n.name) })
	}

	// a -> b -> c, each the sole owner of the next.
	a.Get().next = b
	b.Get().next = c

	a.Drop()
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("finalization order = %v, want %v", order, want)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestCascadeStopsAtSharedObject(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	b := Allocate(s, node{name: "b"})
	a.Get().next = b.Clone()

	a.Drop()
	if got := b.StrongCount(); got != 1 {
		t.Errorf("b StrongCount = %d, want 1", got)
	}
	if b.Get().name != "b" {
		t.Error("b payload damaged by a's finalization")
	}
	b.Drop()
}

func TestFinalizerMayDropOwnedFieldsEarly(t *testing.T) {
	s, rec := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	b := Allocate(s, node{name: "b"})
	bFinalized := 0
	b.RegisterFinalizer(func(node) { bFinalized++ })
	a.Get().next = b
	a.RegisterFinalizer(func(n node) { n.next.Drop() })

	a.Drop()
	if bFinalized != 1 {
		t.Errorf("b finalized %d times, want 1", bFinalized)
	}
	if len(rec.kinds()) != 0 {
		t.Errorf("teardown of an already dropped field reported %v", rec.kinds())
	}
}

func TestLongChainDoesNotRecurse(t *testing.T) {
	s, _ := newTestStore(t)
	const n = 100000
	head := Allocate(s, node{})
	cur := head.Clone()
	for i := 0; i < n; i++ {
		next := Allocate(s, node{})
		cur.Get().next = next.Clone()
		cur.Drop()
		cur = next
	}
	cur.Drop()

	head.Drop()
	if got := s.Stats().Finalized; got != n+1 {
		t.Errorf("Finalized = %d, want %d", got, n+1)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestWeakBackReferenceScenario(t *testing.T) {
	// A owns B; B points back at A weakly. Dropping the external reference
	// to A finalizes A, B's back reference resolves to nothing, and B is
	// untouched while something else holds it.
	s, _ := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	b := Allocate(s, node{name: "b"})
	a.Get().next = b.Clone()
	b.Get().back = a.Downgrade()

	aFinalized := false
	a.RegisterFinalizer(func(node) { aFinalized = true })

	a.Drop()
	if !aFinalized {
		t.Fatal("A was not finalized")
	}
	if _, ok := b.Get().back.Resolve(); ok {
		t.Error("B's weak reference to A still resolves")
	}
	if b.Get().name != "b" || b.StrongCount() != 1 {
		t.Errorf("B affected: name=%q strong=%d", b.Get().name, b.StrongCount())
	}

	bID := b.Slot()
	aID := b.Get().back.Slot()
	if _, ok := s.Inspect(aID); !ok {
		t.Error("A's record reclaimed while B's weak reference exists")
	}
	b.Drop()
	if _, ok := s.Inspect(aID); ok {
		t.Error("A's record not reclaimed after B released its weak reference")
	}
	if _, ok := s.Inspect(bID); ok {
		t.Error("B's record not reclaimed")
	}
}

func TestUnownedBackReferenceScenario(t *testing.T) {
	// A uniquely owns B; B refers back to A unowned. Dropping A finalizes A
	// and then B. B's finalizer never touches A, so the unowned reference
	// is never resolved against a dead object during teardown.
	s, rec := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	b := Allocate(s, node{name: "b"})
	b.Get().owner = a.Unowned()
	a.Get().next = b
	bHandle := b.Get()
	u := bHandle.owner

	var order []string
	a.RegisterFinalizer(func(n node) { order = append(order, n.name) })
	b.RegisterFinalizer(func(n node) { order = append(order, n.name) })

	if got, err := u.Get(); err != nil || got.name != "a" {
		t.Fatalf("unowned Get while A alive = %v, %v", got, err)
	}

	a.Drop()
	if want := []string{"a", "b"}; !reflect.DeepEqual(order, want) {
		t.Errorf("finalization order = %v, want %v", order, want)
	}
	if len(rec.kinds()) != 0 {
		t.Errorf("unexpected reports during teardown: %v", rec.kinds())
	}

	// Reaching through the stale unowned reference afterwards is the
	// contract violation the ownership direction prevents.
	if _, err := u.Get(); !errors.Is(err, ErrUseAfterFree) {
		t.Errorf("stale unowned Get = %v, want ErrUseAfterFree", err)
	}
}

func TestMutualStrongCycleNeverFinalizes(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, node{name: "a"})
	b := Allocate(s, node{name: "b"})
	a.Get().next = b.Clone()
	b.Get().next = a.Clone()

	finalized := 0
	a.RegisterFinalizer(func(node) { finalized++ })
	b.RegisterFinalizer(func(node) { finalized++ })

	a.Drop()
	b.Drop()
	if finalized != 0 {
		t.Errorf("%d objects of a strong cycle finalized", finalized)
	}
	if got := s.Stats().Live; got != 2 {
		t.Errorf("Live = %d, want 2", got)
	}
}

// pnode is stored by pointer; References is on *pnode, the payload type.
type pnode struct {
	name string
	next *Strong[*pnode]
}

func (p *pnode) References() []Handle {
	return []Handle{p.next}
}

func TestPointerPayloadCascades(t *testing.T) {
	s, rec := newTestStore(t)
	a := Allocate(s, &pnode{name: "a"})
	b := Allocate(s, &pnode{name: "b"})
	idA, idB := a.Slot(), b.Slot()

	var order []string
	for _, h := range []*Strong[*pnode]{a, b} {
		h.RegisterFinalizer(func(p *pnode) { order = append(order, p.name) })
	}
	(*a.Get()).next = b

	info, _ := s.Inspect(idA)
	if want := []Edge{{To: idB, Strength: StrengthStrong}}; !reflect.DeepEqual(info.Edges, want) {
		t.Fatalf("edges of pointer payload = %v, want %v", info.Edges, want)
	}

	a.Drop()
	if want := []string{"a", "b"}; !reflect.DeepEqual(order, want) {
		t.Errorf("finalization order = %v, want %v", order, want)
	}
	if _, ok := s.Inspect(idB); ok {
		t.Error("slot owned only by a pointer payload was not reclaimed")
	}
	if st := s.Stats(); st.Live != 0 || st.Tracked != 0 {
		t.Errorf("store not empty after cascade: %+v", st)
	}
	if len(rec.kinds()) != 0 {
		t.Errorf("unexpected reports: %v", rec.kinds())
	}
}

func TestNilPointerPayload(t *testing.T) {
	s, _ := newTestStore(t)
	a := Allocate(s, (*pnode)(nil))

	info, ok := s.Inspect(a.Slot())
	if !ok || len(info.Edges) != 0 {
		t.Errorf("Inspect(nil payload) = %+v, %v", info, ok)
	}
	a.Drop()
	if s.Stats().Finalized != 1 {
		t.Errorf("Finalized = %d, want 1", s.Stats().Finalized)
	}
}

// dropOnRead finalizes its own slot the first time its edges are read.
type dropOnRead struct {
	child  *Strong[node]
	onRead func()
}

func (d *dropOnRead) References() []Handle {
	child := d.child
	if fn := d.onRead; fn != nil {
		d.onRead = nil
		fn()
	}
	return []Handle{child}
}

func TestInspectDuringFinalization(t *testing.T) {
	s, _ := newTestStore(t)
	x := Allocate(s, dropOnRead{child: Allocate(s, node{name: "child"})})
	x.Get().onRead = func() { x.Drop() }

	info, ok := s.Inspect(x.Slot())
	if !ok {
		t.Fatal("Inspect returned no record")
	}
	if info.State != StateFinalized || info.Strong != 0 || info.Edges != nil {
		t.Errorf("slot finalized during Inspect reported %+v, want finalized with no edges", info)
	}
	if s.Stats().Finalized != 2 {
		t.Errorf("Finalized = %d, want 2", s.Stats().Finalized)
	}
}

func TestWeakResolveDuringFinalizationIsLogged(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	s := New(
		WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithErrorHandler(rec),
	)
	a := Allocate(s, node{name: "a"})
	w := a.Downgrade()
	defer w.Drop()

	a.RegisterFinalizer(func(node) {
		if r, ok := w.Resolve(); ok {
			r.Drop()
		}
	})
	a.Drop()

	out := buf.String()
	if !strings.Contains(out, "weak resolve during finalization") ||
		!strings.Contains(out, "kind=revive-during-finalization") {
		t.Errorf("resolve during finalization not logged:\n%s", out)
	}
	if s.Stats().ContractViolations != 0 || len(rec.kinds()) != 0 {
		t.Errorf("weak resolve counted as a violation: %v", rec.kinds())
	}
}
