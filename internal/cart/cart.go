package cart

import (
	"sync"

	"github.com/ikkim/storefront-cart/pkg/logger"
)

// Listener is called after every dispatch with the previous and next state.
// Both states are shared with the cart and must not be modified.
type Listener func(prev, next State)

// DefectReporter receives sanitizer defects for products entering the cart.
type DefectReporter func(item LineItem, defects []Defect)

// Cart owns one cart state and is the public surface used by the rest of
// the application. All mutation goes through Dispatch.
type Cart struct {
	// dispatchMu serializes dispatches so listeners observe transitions in
	// order. Listeners must not dispatch on the same cart synchronously.
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners []subscription
	nextID    int
	onDefect  DefectReporter
}

type subscription struct {
	id int
	fn Listener
}

// Option configures a Cart.
type Option func(*Cart)

// WithDefectReporter replaces the default defect logging.
func WithDefectReporter(r DefectReporter) Option {
	return func(c *Cart) { c.onDefect = r }
}

// New returns an empty cart.
func New(opts ...Option) *Cart {
	c := &Cart{
		state:    EmptyState(),
		onDefect: LogDefects,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LogDefects is the default DefectReporter: one warning per product.
func LogDefects(item LineItem, defects []Defect) {
	kinds := make([]string, 0, len(defects))
	for _, d := range defects {
		kinds = append(kinds, string(d.Kind))
	}
	fields := map[string]interface{}{
		"product_id":    item.ID,
		"line_item_key": item.LineItemKey,
		"defects":       kinds,
	}
	if HasDefect(defects, DefectPriceDefaulted) {
		logger.Warn("Product price invalid, defaulted to 0", fields)
		return
	}
	logger.Debug("Product input sanitized with defaults", fields)
}

// Dispatch reduces action into the cart state and notifies listeners.
func (c *Cart) Dispatch(action Action) State {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if add, ok := action.(Add); ok && c.onDefect != nil {
		if item, defects := SanitizeWithDefects(add.Product); len(defects) > 0 {
			c.onDefect(item, defects)
		}
	}

	c.mu.Lock()
	prev := c.state
	next := Reduce(prev, action)
	c.state = next
	listeners := make([]Listener, 0, len(c.listeners))
	for _, s := range c.listeners {
		listeners = append(listeners, s.fn)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	next.Items = clone(next.Items)
	return next
}

// Subscribe registers l and returns a function that removes it.
func (c *Cart) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, subscription{id: id, fn: l})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.listeners {
			if s.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// State returns a snapshot of the current state.
func (c *Cart) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.Items = clone(s.Items)
	return s
}

func (c *Cart) AddToCart(product RawProduct) State {
	return c.Dispatch(Add{Product: product})
}

func (c *Cart) RemoveFromCart(key string) State {
	return c.Dispatch(Remove{Key: key})
}

func (c *Cart) UpdateQuantity(key string, quantity int) State {
	return c.Dispatch(UpdateQuantity{Key: key, Quantity: quantity})
}

func (c *Cart) UpdateCustomization(key string, fields map[string]string) State {
	return c.Dispatch(UpdateCustomization{Key: key, Fields: fields})
}

func (c *Cart) ToggleSelect(key string) State {
	return c.Dispatch(ToggleSelect{Key: key})
}

func (c *Cart) SelectAll() State {
	return c.Dispatch(SelectAll{})
}

func (c *Cart) DeselectAll() State {
	return c.Dispatch(DeselectAll{})
}

func (c *Cart) ClearCart() State {
	return c.Dispatch(Clear{})
}

func (c *Cart) ShowNotification(message string, t NotificationType) State {
	return c.Dispatch(ShowNotification{Message: message, Type: t})
}

func (c *Cart) HideNotification() State {
	return c.Dispatch(HideNotification{})
}

// Items returns a copy of the current rows.
func (c *Cart) Items() []LineItem {
	return c.State().Items
}

func (c *Cart) SelectedItems() []LineItem {
	return SelectedItems(c.Items())
}

func (c *Cart) SelectedTotal() float64 {
	return SelectedTotal(c.Items())
}

func (c *Cart) ItemsCount() int {
	return ItemsCount(c.Items())
}

func (c *Cart) Total() float64 {
	return Total(c.Items())
}
