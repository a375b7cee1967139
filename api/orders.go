package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonwraymond/storefront/cart"
	"github.com/jonwraymond/storefront/observe"
)

// OrderItem is one line of an order.
type OrderItem struct {
	Product string          `json:"product"`
	Name    string          `json:"name"`
	Image   string          `json:"image"`
	Price   decimal.Decimal `json:"price"`
	Qty     int             `json:"qty"`
}

// OrderRequest is the body of a new order: the cart's lines, address,
// payment method and totals at the moment of placing it.
type OrderRequest struct {
	OrderItems      []OrderItem          `json:"orderItems"`
	ShippingAddress cart.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string               `json:"paymentMethod"`
	ItemsPrice      string               `json:"itemsPrice"`
	ShippingPrice   string               `json:"shippingPrice"`
	TaxPrice        string               `json:"taxPrice"`
	TotalPrice      string               `json:"totalPrice"`
}

// NewOrderRequest builds an order from a cart snapshot.
func NewOrderRequest(s cart.State) OrderRequest {
	items := make([]OrderItem, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, OrderItem{
			Product: l.ProductID,
			Name:    l.Name,
			Image:   l.Image,
			Price:   l.Price,
			Qty:     l.Quantity,
		})
	}
	req := OrderRequest{
		OrderItems:    items,
		PaymentMethod: s.PaymentMethod,
		ItemsPrice:    s.ItemsTotal,
		ShippingPrice: s.ShippingCost,
		TaxPrice:      s.TaxAmount,
		TotalPrice:    s.GrandTotal,
	}
	if s.ShippingAddress != nil {
		req.ShippingAddress = *s.ShippingAddress
	}
	return req
}

// OrderUser is the customer on an order. The API sends either the id
// alone or the populated user.
type OrderUser struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// UnmarshalJSON accepts an id string or an object.
func (u *OrderUser) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*u = OrderUser{ID: id}
		return nil
	}
	type plain OrderUser
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = OrderUser(p)
	return nil
}

// PaymentResult is the payment gateway's confirmation, forwarded as is.
type PaymentResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      *Payer `json:"payer,omitempty"`
}

// Payer identifies who paid.
type Payer struct {
	EmailAddress string `json:"email_address"`
}

// Order is a placed order.
type Order struct {
	ID              string               `json:"_id"`
	User            *OrderUser           `json:"user,omitempty"`
	OrderItems      []OrderItem          `json:"orderItems"`
	ShippingAddress cart.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string               `json:"paymentMethod"`
	PaymentResult   *PaymentResult       `json:"paymentResult,omitempty"`
	ItemsPrice      decimal.Decimal      `json:"itemsPrice"`
	TaxPrice        decimal.Decimal      `json:"taxPrice"`
	ShippingPrice   decimal.Decimal      `json:"shippingPrice"`
	TotalPrice      decimal.Decimal      `json:"totalPrice"`
	IsPaid          bool                 `json:"isPaid"`
	PaidAt          *time.Time           `json:"paidAt,omitempty"`
	IsDelivered     bool                 `json:"isDelivered"`
	DeliveredAt     *time.Time           `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time            `json:"createdAt,omitzero"`
}

// CanDeliver reports whether an admin may mark o delivered: it is paid and
// not yet delivered.
func (o Order) CanDeliver() bool { return o.IsPaid && !o.IsDelivered }

type paypalConfig struct {
	ClientID string `json:"clientId"`
}

const resourceOrders = "orders"

// OrderQuery loads one order.
func OrderQuery(id string) Query[Order] {
	return Query[Order]{
		resource: resourceOrders,
		endpoint: "getOrderDetails",
		path:     "/orders/" + url.PathEscape(id),
		args:     map[string]string{"id": id},
		tags:     []string{TagOrder},
	}
}

// MyOrdersQuery loads the signed-in user's orders.
func MyOrdersQuery() Query[[]Order] {
	return Query[[]Order]{
		resource: resourceOrders,
		endpoint: "getMyOrders",
		path:     "/orders/mine",
		tags:     []string{TagOrders},
	}
}

// OrdersQuery loads every order. Admin only.
func OrdersQuery() Query[[]Order] {
	return Query[[]Order]{
		resource: resourceOrders,
		endpoint: "getOrders",
		path:     "/orders",
		tags:     []string{TagOrders},
	}
}

func payPalQuery() Query[paypalConfig] {
	return Query[paypalConfig]{
		resource: "config",
		endpoint: "getPaypalClientId",
		path:     "/config/paypal",
	}
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, in OrderRequest) (Order, error) {
	if len(in.OrderItems) == 0 {
		return Order{}, &Error{Kind: KindValidation, Message: "no order items"}
	}
	var out Order
	err := c.write(ctx, KindCreateOrder, request{
		op:   orderOp(KindCreateOrder, http.MethodPost),
		path: "/orders",
		body: jsonBody(in),
		out:  &out,
	})
	return out, err
}

// Order returns order id.
func (c *Client) Order(ctx context.Context, id string) (Order, error) {
	if err := requireID(id); err != nil {
		return Order{}, err
	}
	return Get(ctx, c, OrderQuery(id))
}

// PayOrder marks order id paid with the gateway's result.
func (c *Client) PayOrder(ctx context.Context, id string, result PaymentResult) (Order, error) {
	if err := requireID(id); err != nil {
		return Order{}, err
	}
	var out Order
	err := c.write(ctx, KindPayOrder, request{
		op:   orderOp(KindPayOrder, http.MethodPut),
		path: "/orders/" + url.PathEscape(id) + "/pay",
		body: jsonBody(result),
		out:  &out,
	})
	return out, err
}

// DeliverOrder marks order id delivered. Admin only.
func (c *Client) DeliverOrder(ctx context.Context, id string) (Order, error) {
	if err := requireID(id); err != nil {
		return Order{}, err
	}
	var out Order
	err := c.write(ctx, KindDeliverOrder, request{
		op:   orderOp(KindDeliverOrder, http.MethodPut),
		path: "/orders/" + url.PathEscape(id) + "/deliver",
		out:  &out,
	})
	return out, err
}

// MyOrders returns the signed-in user's orders.
func (c *Client) MyOrders(ctx context.Context) ([]Order, error) {
	return Get(ctx, c, MyOrdersQuery())
}

// Orders returns every order. Admin only.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	return Get(ctx, c, OrdersQuery())
}

// PayPalClientID returns the public PayPal client id.
func (c *Client) PayPalClientID(ctx context.Context) (string, error) {
	cfg, err := Get(ctx, c, payPalQuery())
	return cfg.ClientID, err
}

func orderOp(name, method string) observe.OperationMeta {
	return observe.OperationMeta{Resource: resourceOrders, Name: name, Method: method}
}
