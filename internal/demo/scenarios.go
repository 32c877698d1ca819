// ABOUTME: Classic ownership scenarios driven against a store
// ABOUTME: Weak and unowned back references, closure capture and a leaking cycle

package demo

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/prateek/arclens/store"
)

// Scenario is a named ownership demonstration.
type Scenario struct {
	Name        string
	Description string
	run         func(s *store.Store, out io.Writer, r *Run) error
}

// Run is what a scenario leaves behind: the slots it still holds from
// outside the store, which an audit should treat as roots.
type Run struct {
	Scenario string
	Roots    []store.SlotID
	closers  []func() error
}

// hold records an external reference the scenario keeps after returning.
func (r *Run) hold(id store.SlotID, release func() error) {
	r.Roots = append(r.Roots, id)
	r.closers = append(r.closers, release)
}

// onClose registers cleanup that does not correspond to a root.
func (r *Run) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Close drops every handle the scenario still holds and breaks any cycle it
// leaked on purpose, in reverse order of acquisition.
func (r *Run) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	r.Roots = nil
	return errors.Join(errs...)
}

// Run executes the scenario against s, writing its narration to out.
func (sc Scenario) Run(s *store.Store, out io.Writer) (*Run, error) {
	r := &Run{Scenario: sc.Name}
	if err := sc.run(s, out, r); err != nil {
		return nil, errors.Join(fmt.Errorf("scenario %s: %w", sc.Name, err), r.Close())
	}
	return r, nil
}

var scenarios = map[string]Scenario{
	"apartment": {
		Name:        "apartment",
		Description: "person strongly owns an apartment that refers back weakly",
		run:         runApartment,
	},
	"card": {
		Name:        "card",
		Description: "customer strongly owns a credit card that refers back unowned",
		run:         runCard,
	},
	"closure": {
		Name:        "closure",
		Description: "element owns a render closure that captures it weakly",
		run:         runClosure,
	},
	"leak": {
		Name:        "leak",
		Description: "mutual strong references and a strongly captured closure",
		run:         runLeak,
	},
}

// Lookup returns the scenario with the given name.
func Lookup(name string) (Scenario, bool) {
	sc, ok := scenarios[name]
	return sc, ok
}

// Scenarios returns every scenario sorted by name.
func Scenarios() []Scenario {
	all := make([]Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		all = append(all, sc)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func deinit(out io.Writer, what string) {
	fmt.Fprintf(out, "%s is being deinitialized\n", what)
}

func runApartment(s *store.Store, out io.Writer, r *Run) error {
	john := store.Allocate(s, Person{Name: "John Appleseed"})
	if err := john.RegisterFinalizer(func(p Person) { deinit(out, p.Name) }); err != nil {
		return err
	}
	unit4A := store.Allocate(s, Apartment{Unit: "4A"})
	if err := unit4A.RegisterFinalizer(func(a Apartment) { deinit(out, "Apartment "+a.Unit) }); err != nil {
		return err
	}

	john.Get().apartment = unit4A.Clone()
	unit4A.Get().tenant = john.Downgrade()
	fmt.Fprintf(out, "Apartment %s tenant: %s\n", unit4A.Get().Unit, unit4A.Get().Tenant())

	if err := john.Drop(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Apartment %s tenant: %s\n", unit4A.Get().Unit, unit4A.Get().Tenant())

	r.hold(unit4A.Slot(), unit4A.Drop)
	return nil
}

func runCard(s *store.Store, out io.Writer, r *Run) error {
	john := store.Allocate(s, Customer{Name: "John Appleseed"})
	if err := john.RegisterFinalizer(func(c Customer) { deinit(out, c.Name) }); err != nil {
		return err
	}
	card := store.Allocate(s, CreditCard{Number: 1234_5678_9012_3456, customer: john.Unowned()})
	if err := card.RegisterFinalizer(func(c CreditCard) { deinit(out, fmt.Sprintf("Card #%d", c.Number)) }); err != nil {
		return err
	}

	holder, err := card.Get().Holder()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Card #%d belongs to %s\n", card.Get().Number, holder)

	john.Get().card = card
	return john.Drop()
}

func runClosure(s *store.Store, out io.Writer, r *Run) error {
	paragraph := store.Allocate(s, HTMLElement{Name: "p", Text: "hello, world"})
	if err := paragraph.RegisterFinalizer(func(e HTMLElement) { deinit(out, e.Name) }); err != nil {
		return err
	}
	paragraph.Get().asHTML = store.Allocate(s, Renderer{weakSelf: paragraph.Downgrade()})

	fmt.Fprintln(out, paragraph.Get().AsHTML())
	return paragraph.Drop()
}

func runLeak(s *store.Store, out io.Writer, r *Run) error {
	a := store.Allocate(s, Node{Name: "A"})
	b := store.Allocate(s, Node{Name: "B"})
	for _, n := range []*store.Strong[Node]{a, b} {
		if err := n.RegisterFinalizer(func(v Node) { deinit(out, v.Name) }); err != nil {
			return err
		}
	}
	a.Get().peer = b.Clone()
	b.Get().peer = a.Clone()

	heading := store.Allocate(s, HTMLElement{Name: "h1"})
	if err := heading.RegisterFinalizer(func(e HTMLElement) { deinit(out, e.Name) }); err != nil {
		return err
	}
	renderer := store.Allocate(s, Renderer{strongSelf: heading.Clone()})
	heading.Get().asHTML = renderer.Clone()
	fmt.Fprintln(out, heading.Get().AsHTML())

	leaked := []store.SlotID{a.Slot(), b.Slot(), heading.Slot(), renderer.Slot()}
	leakedA, leakedRenderer := a.Unowned(), renderer.Unowned()
	for _, drop := range []func() error{a.Drop, b.Drop, heading.Drop, renderer.Drop} {
		if err := drop(); err != nil {
			return err
		}
	}
	alive := 0
	for _, id := range leaked {
		if info, ok := s.Inspect(id); ok && info.State == store.StateLive {
			alive++
		}
	}
	fmt.Fprintf(out, "%d objects still alive with no outside references\n", alive)

	r.onClose(func() error {
		n, err := leakedA.Get()
		if err != nil {
			return err
		}
		return n.peer.Drop()
	})
	r.onClose(func() error {
		rd, err := leakedRenderer.Get()
		if err != nil {
			return err
		}
		return rd.strongSelf.Drop()
	})
	return nil
}
