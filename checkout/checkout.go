package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/storefront/api"
	"github.com/jonwraymond/storefront/auth"
	"github.com/jonwraymond/storefront/cart"
	"github.com/jonwraymond/storefront/observe"
)

// DefaultPaymentMethod is selected when none is given.
const DefaultPaymentMethod = "PayPal"

// Sentinel errors for checkout steps.
var (
	ErrIncompleteAddress = errors.New("checkout: shipping address is incomplete")
	ErrStepRequired      = errors.New("checkout: an earlier step is not done")
	ErrEmptyCart         = errors.New("checkout: cart is empty")
	ErrAlreadyPaid       = errors.New("checkout: order is already paid")
	ErrNotDeliverable    = errors.New("checkout: order cannot be delivered")
)

// Step is a stage of checkout.
type Step int

const (
	StepLogin Step = iota
	StepShipping
	StepPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepLogin:
		return "login"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Title is the label shown in the progress bar.
func (s Step) Title() string {
	switch s {
	case StepLogin:
		return "Sign In"
	case StepShipping:
		return "Shipping"
	case StepPayment:
		return "Payment"
	case StepReview:
		return "Place Order"
	default:
		return s.String()
	}
}

// Progress is one entry of the progress bar.
type Progress struct {
	Step    Step
	Enabled bool
}

// Users reports the signed-in user. *auth.Session implements it.
type Users interface {
	User(ctx context.Context) (*auth.UserInfo, bool)
}

// Orders places and updates orders. *api.Client implements it.
type Orders interface {
	CreateOrder(ctx context.Context, in api.OrderRequest) (api.Order, error)
	Order(ctx context.Context, id string) (api.Order, error)
	PayOrder(ctx context.Context, id string, result api.PaymentResult) (api.Order, error)
	DeliverOrder(ctx context.Context, id string) (api.Order, error)
}

// Flow connects the cart, the session and the order API.
type Flow struct {
	cart   *cart.Store
	users  Users
	orders Orders
	logger observe.Logger
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Flow.
func New(c *cart.Store, users Users, orders Orders, opts ...Option) *Flow {
	f := &Flow{cart: c, users: users, orders: orders, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(observe.F("component", "checkout"))
	return f
}

// NextStep returns the first step that is not done yet.
func (f *Flow) NextStep(ctx context.Context) Step {
	if _, ok := f.users.User(ctx); !ok {
		return StepLogin
	}
	return nextStep(f.cart.State())
}

func nextStep(s cart.State) Step {
	switch {
	case s.ShippingAddress == nil || !s.ShippingAddress.IsComplete():
		return StepShipping
	case s.PaymentMethod == "":
		return StepPayment
	default:
		return StepReview
	}
}

// Steps returns the progress bar: every step up to the next one is enabled.
func (f *Flow) Steps(ctx context.Context) []Progress {
	next := f.NextStep(ctx)
	out := make([]Progress, 0, 4)
	for s := StepLogin; s <= StepReview; s++ {
		out = append(out, Progress{Step: s, Enabled: s <= next})
	}
	return out
}

// SaveShipping stores the shipping address.
func (f *Flow) SaveShipping(ctx context.Context, addr cart.ShippingAddress) (cart.State, error) {
	if _, err := f.requireUser(ctx); err != nil {
		return f.cart.State(), err
	}
	if !addr.IsComplete() {
		return f.cart.State(), ErrIncompleteAddress
	}
	return f.cart.SetShippingAddress(ctx, addr)
}

// SelectPayment stores the payment method. An empty method selects
// DefaultPaymentMethod.
func (f *Flow) SelectPayment(ctx context.Context, method string) (cart.State, error) {
	if _, err := f.requireUser(ctx); err != nil {
		return f.cart.State(), err
	}
	if nextStep(f.cart.State()) == StepShipping {
		return f.cart.State(), fmt.Errorf("%w: %s", ErrStepRequired, StepShipping)
	}
	if strings.TrimSpace(method) == "" {
		method = DefaultPaymentMethod
	}
	return f.cart.SetPaymentMethod(ctx, method)
}

// PlaceOrder sends the cart as an order. On success the cart is cleared and
// the created order returned; on failure the cart is left as it was.
func (f *Flow) PlaceOrder(ctx context.Context) (api.Order, error) {
	if _, err := f.requireUser(ctx); err != nil {
		return api.Order{}, err
	}
	snapshot := f.cart.State()
	if step := nextStep(snapshot); step != StepReview {
		return api.Order{}, fmt.Errorf("%w: %s", ErrStepRequired, step)
	}
	if snapshot.IsEmpty() {
		return api.Order{}, ErrEmptyCart
	}

	order, err := f.orders.CreateOrder(ctx, api.NewOrderRequest(snapshot))
	if err != nil {
		return api.Order{}, fmt.Errorf("checkout: place order: %w", err)
	}
	f.logger.Info(ctx, "order placed",
		observe.F("order_id", order.ID),
		observe.F("items", snapshot.ItemCount()),
		observe.F("total", snapshot.GrandTotal))

	if _, err := f.cart.Clear(ctx); err != nil {
		// The order exists; a failed cart write must not hide it.
		f.logger.Warn(ctx, "failed to persist cleared cart", observe.F("order_id", order.ID), observe.F("error", err))
	}
	return order, nil
}

// Pay records the payment gateway's result for order id.
func (f *Flow) Pay(ctx context.Context, id string, result api.PaymentResult) (api.Order, error) {
	if _, err := f.requireUser(ctx); err != nil {
		return api.Order{}, err
	}
	current, err := f.orders.Order(ctx, id)
	if err != nil {
		return api.Order{}, fmt.Errorf("checkout: load order: %w", err)
	}
	if current.IsPaid {
		return current, ErrAlreadyPaid
	}
	order, err := f.orders.PayOrder(ctx, id, result)
	if err != nil {
		return api.Order{}, fmt.Errorf("checkout: pay order: %w", err)
	}
	f.logger.Info(ctx, "order paid", observe.F("order_id", id), observe.F("payment_id", result.ID))
	return order, nil
}

// Deliver marks order id delivered. Only admins may, and only for paid,
// undelivered orders.
func (f *Flow) Deliver(ctx context.Context, id string) (api.Order, error) {
	u, ok := f.users.User(ctx)
	if !ok {
		return api.Order{}, auth.ErrUnauthenticated
	}
	if _, err := auth.RequireAdmin(auth.WithUser(ctx, u)); err != nil {
		return api.Order{}, err
	}
	current, err := f.orders.Order(ctx, id)
	if err != nil {
		return api.Order{}, fmt.Errorf("checkout: load order: %w", err)
	}
	if !current.CanDeliver() {
		return current, ErrNotDeliverable
	}
	order, err := f.orders.DeliverOrder(ctx, id)
	if err != nil {
		return api.Order{}, fmt.Errorf("checkout: deliver order: %w", err)
	}
	return order, nil
}

func (f *Flow) requireUser(ctx context.Context) (*auth.UserInfo, error) {
	u, ok := f.users.User(ctx)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return u, nil
}
