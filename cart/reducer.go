package cart

import (
	"fmt"
	"strings"
)

// QuantityPolicy decides what happens to quantities outside [1, stock].
type QuantityPolicy int

const (
	// QuantityClamp clamps quantities into [1, stock] and ignores adds of
	// products that are out of stock or invalid.
	QuantityClamp QuantityPolicy = iota

	// QuantityStrict rejects out-of-range quantities and invalid products.
	QuantityStrict
)

// ParseQuantityPolicy parses "clamp" or "strict".
func ParseQuantityPolicy(s string) (QuantityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return QuantityClamp, nil
	case "strict":
		return QuantityStrict, nil
	default:
		return QuantityClamp, fmt.Errorf("cart: unknown quantity policy %q", s)
	}
}

func (p QuantityPolicy) String() string {
	if p == QuantityStrict {
		return "strict"
	}
	return "clamp"
}

// Action is a cart mutation.
type Action interface {
	// Kind names the action for logs and metrics.
	Kind() string
}

// AddItem upserts a line for Product with Quantity.
type AddItem struct {
	Product  Product
	Quantity int
}

// RemoveItem removes the line for ProductID. Absent ids are a no-op.
type RemoveItem struct {
	ProductID string
}

// SetShippingAddress records the delivery address.
type SetShippingAddress struct {
	Address ShippingAddress
}

// SetPaymentMethod records the payment method.
type SetPaymentMethod struct {
	Method string
}

// Clear empties the cart and unsets shipping address and payment method.
type Clear struct{}

func (AddItem) Kind() string            { return "add_item" }
func (RemoveItem) Kind() string         { return "remove_item" }
func (SetShippingAddress) Kind() string { return "set_shipping_address" }
func (SetPaymentMethod) Kind() string   { return "set_payment_method" }
func (Clear) Kind() string              { return "clear" }

// Reducer applies actions under a quantity policy and pricing rules.
type Reducer struct {
	Policy  QuantityPolicy
	Pricing Pricing
}

// Apply applies a with DefaultPricing.
func Apply(s State, a Action, policy QuantityPolicy) (State, error) {
	return Reducer{Policy: policy, Pricing: DefaultPricing()}.Apply(s, a)
}

// Apply returns the state after a. The input state is never modified.
// On error the returned state equals the input.
func (r Reducer) Apply(s State, a Action) (State, error) {
	next := s.Clone()

	switch act := a.(type) {
	case AddItem:
		line, ok, err := r.line(act)
		if err != nil {
			return s.Clone(), err
		}
		if !ok {
			return next, nil
		}
		next.Lines = upsert(next.Lines, line)

	case RemoveItem:
		next.Lines = remove(next.Lines, act.ProductID)

	case SetShippingAddress:
		addr := act.Address
		next.ShippingAddress = &addr
		if addr.isZero() {
			next.ShippingAddress = nil
		}
		return next, nil

	case SetPaymentMethod:
		next.PaymentMethod = strings.TrimSpace(act.Method)
		return next, nil

	case Clear:
		next = State{}

	default:
		return s.Clone(), fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}

	r.Pricing.Compute(next.Lines).apply(&next)
	return next, nil
}

// Recompute rederives the totals of s from its lines.
func (r Reducer) Recompute(s State) State {
	next := s.Clone()
	r.Pricing.Compute(next.Lines).apply(&next)
	return next
}

// line builds the line for an add, reporting ok=false when the add is ignored.
func (r Reducer) line(a AddItem) (Line, bool, error) {
	p := a.Product
	if strings.TrimSpace(p.ID) == "" || p.Price.IsNegative() {
		if r.Policy == QuantityStrict {
			return Line{}, false, fmt.Errorf("%w: id %q price %s", ErrInvalidProduct, p.ID, p.Price)
		}
		return Line{}, false, nil
	}
	if p.CountInStock < 1 {
		if r.Policy == QuantityStrict {
			return Line{}, false, fmt.Errorf("%w: %s", ErrOutOfStock, p.ID)
		}
		return Line{}, false, nil
	}

	qty := a.Quantity
	if qty < 1 || qty > p.CountInStock {
		if r.Policy == QuantityStrict {
			return Line{}, false, fmt.Errorf("%w: %d not in [1, %d]", ErrQuantityOutOfRange, qty, p.CountInStock)
		}
		qty = min(max(qty, 1), p.CountInStock)
	}

	return Line{
		ProductID:    p.ID,
		Name:         p.Name,
		Image:        p.Image,
		Price:        p.Price,
		CountInStock: p.CountInStock,
		Quantity:     qty,
	}, true, nil
}

func upsert(lines []Line, line Line) []Line {
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i] = line
			return lines
		}
	}
	return append(lines, line)
}

func remove(lines []Line, productID string) []Line {
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
