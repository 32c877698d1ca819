// ABOUTME: Payload types for the demo ownership scenarios
// ABOUTME: Each type exposes the handles it stores so the store can tear them down

package demo

import (
	"fmt"

	"github.com/prateek/arclens/store"
)

// Person may rent an apartment, which it owns strongly.
type Person struct {
	Name      string
	apartment *store.Strong[Apartment]
}

func (p *Person) References() []store.Handle {
	return []store.Handle{p.apartment}
}

// Apartment refers back to its tenant weakly; a tenant can move out or go
// away while the apartment stays.
type Apartment struct {
	Unit   string
	tenant *store.Weak[Person]
}

func (a *Apartment) References() []store.Handle {
	return []store.Handle{a.tenant}
}

// Tenant returns the current tenant's name, or "none".
func (a *Apartment) Tenant() string {
	p, ok := a.tenant.Resolve()
	if !ok {
		return "none"
	}
	defer p.Drop()
	return p.Get().Name
}

// Customer owns their credit card.
type Customer struct {
	Name string
	card *store.Strong[CreditCard]
}

func (c *Customer) References() []store.Handle {
	return []store.Handle{c.card}
}

// CreditCard never outlives its customer, so it holds the customer unowned.
type CreditCard struct {
	Number   uint64
	customer *store.Unowned[Customer]
}

func (c *CreditCard) References() []store.Handle {
	return []store.Handle{c.customer}
}

// Holder returns the card holder's name.
func (c *CreditCard) Holder() (string, error) {
	cust, err := c.customer.Get()
	if err != nil {
		return "", err
	}
	return cust.Name, nil
}

// HTMLElement owns a lazily built renderer closure.
type HTMLElement struct {
	Name   string
	Text   string
	asHTML *store.Strong[Renderer]
}

func (e *HTMLElement) References() []store.Handle {
	return []store.Handle{e.asHTML}
}

// AsHTML renders the element through its renderer.
func (e *HTMLElement) AsHTML() string {
	if e.asHTML == nil {
		return ""
	}
	return e.asHTML.Get().Render()
}

// Renderer is the captured environment of an element's render closure. It
// captures the element either weakly or, in the leaking variant, strongly.
type Renderer struct {
	weakSelf   *store.Weak[HTMLElement]
	strongSelf *store.Strong[HTMLElement]
}

func (r *Renderer) References() []store.Handle {
	return []store.Handle{r.weakSelf, r.strongSelf}
}

// Render formats the captured element, or returns "" once it is gone.
func (r *Renderer) Render() string {
	var el *HTMLElement
	if r.strongSelf != nil {
		el = r.strongSelf.Get()
	} else {
		self, ok := r.weakSelf.Resolve()
		if !ok {
			return ""
		}
		defer self.Drop()
		el = self.Get()
	}
	if el.Text == "" {
		return fmt.Sprintf("<%s />", el.Name)
	}
	return fmt.Sprintf("<%s>%s</%s>", el.Name, el.Text, el.Name)
}

// Node is a plain object that strongly owns a peer.
type Node struct {
	Name string
	peer *store.Strong[Node]
}

func (n *Node) References() []store.Handle {
	return []store.Handle{n.peer}
}
