package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/jonwraymond/storefront/cart"
)

func checkoutState(t *testing.T) cart.State {
	t.Helper()
	s := cart.Empty()
	steps := []cart.Action{
		cart.AddItem{Product: cart.Product{ID: "p1", Name: "Mouse", Image: "/m.jpg", Price: decimal.RequireFromString("19.99"), CountInStock: 5}, Quantity: 3},
		cart.AddItem{Product: cart.Product{ID: "p2", Name: "Pad", Image: "/p.jpg", Price: decimal.RequireFromString("5.00"), CountInStock: 5}, Quantity: 1},
		cart.SetShippingAddress{Address: cart.ShippingAddress{Address: "1 Main St", City: "Boston", PostalCode: "02101", Country: "USA"}},
		cart.SetPaymentMethod{Method: "PayPal"},
	}
	for _, a := range steps {
		var err error
		if s, err = cart.Apply(s, a, cart.QuantityClamp); err != nil {
			t.Fatalf("Apply(%s) error = %v", a.Kind(), err)
		}
	}
	return s
}

func TestNewOrderRequest(t *testing.T) {
	got := NewOrderRequest(checkoutState(t))
	want := OrderRequest{
		OrderItems: []OrderItem{
			{Product: "p1", Name: "Mouse", Image: "/m.jpg", Price: decimal.RequireFromString("19.99"), Qty: 3},
			{Product: "p2", Name: "Pad", Image: "/p.jpg", Price: decimal.RequireFromString("5.00"), Qty: 1},
		},
		ShippingAddress: cart.ShippingAddress{Address: "1 Main St", City: "Boston", PostalCode: "02101", Country: "USA"},
		PaymentMethod:   "PayPal",
		ItemsPrice:      "64.97",
		ShippingPrice:   "10.00",
		TaxPrice:        "9.75",
		TotalPrice:      "84.72",
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("NewOrderRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFakeAPI(t)
	var (
		mu   sync.Mutex
		body map[string]any
	)
	f.handle("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			message(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"_id":         "o1",
			"user":        "u1",
			"orderItems":  body["orderItems"],
			"totalPrice":  84.72,
			"isPaid":      false,
			"isDelivered": false,
		})
	})

	c := f.client()
	order, err := c.CreateOrder(context.Background(), NewOrderRequest(checkoutState(t)))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "o1" || order.User == nil || order.User.ID != "u1" {
		t.Errorf("CreateOrder() = %+v", order)
	}
	if !order.TotalPrice.Equal(decimal.RequireFromString("84.72")) {
		t.Errorf("TotalPrice = %s", order.TotalPrice)
	}
	if len(order.OrderItems) != 2 || order.OrderItems[0].Qty != 3 {
		t.Errorf("OrderItems = %+v", order.OrderItems)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, k := range []string{"orderItems", "shippingAddress", "paymentMethod", "itemsPrice", "shippingPrice", "taxPrice", "totalPrice"} {
		if _, ok := body[k]; !ok {
			t.Errorf("request body missing %q", k)
		}
	}
	if body["totalPrice"] != "84.72" {
		t.Errorf("totalPrice = %v, want \"84.72\"", body["totalPrice"])
	}
}

func TestCreateOrder_EmptyRejectedLocally(t *testing.T) {
	f := newFakeAPI(t)
	_, err := f.client().CreateOrder(context.Background(), OrderRequest{})
	if !IsValidation(err) {
		t.Fatalf("CreateOrder() error = %v, want validation", err)
	}
	if f.last() != nil {
		t.Error("empty order reached the server")
	}
}

func TestPayOrder_RefreshesOrderAndLists(t *testing.T) {
	f := newFakeAPI(t)
	var paid atomic.Bool
	f.handle("GET /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Order{ID: r.PathValue("id"), IsPaid: paid.Load()})
	})
	f.handle("GET /api/orders/mine", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []Order{{ID: "o1", IsPaid: paid.Load()}})
	})
	var (
		mu     sync.Mutex
		result PaymentResult
	)
	f.handle("PUT /api/orders/{id}/pay", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&result)
		paid.Store(true)
		writeJSON(w, http.StatusOK, Order{ID: r.PathValue("id"), IsPaid: true})
	})

	c := f.client()
	ctx := context.Background()

	_, orderSub, err := Watch(ctx, c, OrderQuery("o1"), nil)
	if err != nil {
		t.Fatalf("Watch(order) error = %v", err)
	}
	defer orderSub.Close()
	_, listSub, err := Watch(ctx, c, MyOrdersQuery(), nil)
	if err != nil {
		t.Fatalf("Watch(mine) error = %v", err)
	}
	defer listSub.Close()

	pr := PaymentResult{ID: "PAY-1", Status: "COMPLETED", UpdateTime: "2026-01-01T00:00:00Z", Payer: &Payer{EmailAddress: "buyer@example.com"}}
	if _, err := c.PayOrder(ctx, "o1", pr); err != nil {
		t.Fatalf("PayOrder() error = %v", err)
	}
	mu.Lock()
	if diff := cmp.Diff(pr, result); diff != "" {
		t.Errorf("payment result mismatch (-want +got):\n%s", diff)
	}
	mu.Unlock()

	order, err := orderSub.Result(ctx)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if o, _ := order.Payload.(Order); !o.IsPaid {
		t.Error("order not refreshed after payment")
	}
	list, err := listSub.Result(ctx)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if l, _ := list.Payload.([]Order); len(l) != 1 || !l[0].IsPaid {
		t.Error("order list not refreshed after payment")
	}
}

func TestOrder_CanDeliver(t *testing.T) {
	tests := []struct {
		order Order
		want  bool
	}{
		{Order{}, false},
		{Order{IsPaid: true}, true},
		{Order{IsPaid: true, IsDelivered: true}, false},
	}
	for _, tt := range tests {
		if got := tt.order.CanDeliver(); got != tt.want {
			t.Errorf("CanDeliver(paid=%v delivered=%v) = %v", tt.order.IsPaid, tt.order.IsDelivered, got)
		}
	}
}

func TestOrderUser_Unmarshal(t *testing.T) {
	var o struct {
		A OrderUser `json:"a"`
		B OrderUser `json:"b"`
	}
	raw := `{"a":"u1","b":{"_id":"u2","name":"Jane"}}`
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if o.A.ID != "u1" || o.B.ID != "u2" || o.B.Name != "Jane" {
		t.Errorf("got %+v", o)
	}
}
