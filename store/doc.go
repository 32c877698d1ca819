// ABOUTME: Package documentation for the reference-counted object store
// ABOUTME: Describes handles, ownership graphs and concurrency guarantees

// Package store implements a deterministic reference-counted object store.
//
// # Overview
//
// Every value placed in a Store lives in a slot with a strong count and a
// weak count. Three handle types refer to slots:
//
//   - Strong owns the slot. The payload is intact while any Strong exists.
//   - Weak observes the slot. Resolve yields a new Strong while the slot is
//     live and reports false once it is gone.
//   - Unowned trusts the slot. It keeps no count; Get fails with
//     ErrUseAfterFree if the referent was finalized.
//
// # Basic Usage
//
//	s := store.New()
//	a := store.Allocate(s, Person{Name: "John"})
//	a.RegisterFinalizer(func(p Person) { fmt.Println(p.Name, "is being deinitialized") })
//
//	w := a.Downgrade()
//	a.Drop() // finalizer runs here, before Drop returns
//
//	if _, ok := w.Resolve(); !ok {
//		// gone
//	}
//	w.Drop()
//
// # Ownership Graphs
//
// Payloads that hold handles implement Referencer, on the pointer to the
// payload or, when the payload is itself a pointer, on that pointer type.
// When such a payload is finalized its strong handles are released, which
// finalizes anything it was the last owner of. A cycle made only of strong edges never reaches
// zero; break it with a Weak or Unowned edge, and use package audit to find
// the ones that slipped through.
//
// # Concurrency
//
// All count changes take the lock of the affected slot only. Finalizers run
// synchronously on the goroutine that dropped the last strong reference and
// must not block waiting for another finalizer.
package store
