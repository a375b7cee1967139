package cart

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the catalog data needed to put a product in the cart.
type Product struct {
	ID           string
	Name         string
	Image        string
	Price        decimal.Decimal
	CountInStock int
}

// Line is one product and its quantity. Lines are identified by ProductID.
type Line struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"countInStock"`
	Quantity     int             `json:"qty"`
}

// Subtotal returns Price × Quantity, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// IsComplete reports whether every field is set.
func (a ShippingAddress) IsComplete() bool {
	for _, v := range []string{a.Address, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

func (a ShippingAddress) isZero() bool {
	return a == ShippingAddress{}
}

// State is a cart snapshot. The four totals are derived from Lines and are
// only ever written by the reducer.
type State struct {
	Lines           []Line           `json:"cartItems"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	ItemsTotal      string           `json:"itemsTotal"`
	ShippingCost    string           `json:"shippingCost"`
	TaxAmount       string           `json:"taxAmount"`
	GrandTotal      string           `json:"grandTotal"`
}

// Empty returns a cart with no lines and zero totals.
func Empty() State {
	s := State{}
	DefaultPricing().Compute(nil).apply(&s)
	return s
}

// IsEmpty reports whether the cart has no lines.
func (s State) IsEmpty() bool {
	return len(s.Lines) == 0
}

// ItemCount returns the total quantity across all lines.
func (s State) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// Line returns the line for productID, if present.
func (s State) Line(productID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Lines != nil {
		out.Lines = make([]Line, len(s.Lines))
		copy(out.Lines, s.Lines)
	}
	if s.ShippingAddress != nil {
		addr := *s.ShippingAddress
		out.ShippingAddress = &addr
	}
	return out
}

type stateJSON State

// MarshalJSON always emits cartItems as an array.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON(s)
	if out.Lines == nil {
		out.Lines = []Line{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a stored cart. An empty shipping address object
// decodes as unset.
func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Lines) == 0 {
		in.Lines = nil
	}
	if in.ShippingAddress != nil && in.ShippingAddress.isZero() {
		in.ShippingAddress = nil
	}
	*s = State(in)
	return nil
}
