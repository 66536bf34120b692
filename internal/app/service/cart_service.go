package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/sheet"
	"github.com/ikkim/storefront-cart/pkg/logger"
	"github.com/ikkim/storefront-cart/pkg/metrics"
)

var (
	ErrOwnerRequired   = errors.New("cart owner is required")
	ErrUnpricedProduct = errors.New("product has no valid price")
)

// EventCartUpdated is the websocket event type sent after every change.
const EventCartUpdated = "cart_updated"

type CartService interface {
	GetCart(ctx context.Context, owner string) (cart.State, error)
	AddToCart(ctx context.Context, owner string, product cart.RawProduct) (cart.State, error)
	RemoveFromCart(ctx context.Context, owner, key string) (cart.State, error)
	UpdateQuantity(ctx context.Context, owner, key string, quantity int) (cart.State, error)
	UpdateCustomization(ctx context.Context, owner, key string, fields map[string]string) (cart.State, error)
	ToggleSelect(ctx context.Context, owner, key string) (cart.State, error)
	SelectAll(ctx context.Context, owner string) (cart.State, error)
	DeselectAll(ctx context.Context, owner string) (cart.State, error)
	ClearCart(ctx context.Context, owner string) (cart.State, error)
	Dispatch(ctx context.Context, owner string, env cart.Envelope) (cart.State, error)
	ShowNotification(ctx context.Context, owner, message string, t cart.NotificationType) (cart.State, error)
	HideNotification(ctx context.Context, owner string) (cart.State, error)
	SelectedItems(ctx context.Context, owner string) ([]cart.LineItem, error)
	ExportXLSX(ctx context.Context, owner string) ([]byte, error)
	Subscribe(ctx context.Context, owner string, l cart.Listener) (func(), error)
	SweepIdle(ctx context.Context) (int, error)
	FlushAll(ctx context.Context) error
	LiveStorageKeys() []string
	ActiveSessions() int
}

// Publisher pushes cart events to an owner's live connections.
type Publisher interface {
	SendToOwner(owner string, message interface{}) error
	IsOwnerOnline(owner string) bool
}

// CartView is the cart state plus derived totals, as served to clients.
type CartView struct {
	Items         []cart.LineItem   `json:"items"`
	Notification  cart.Notification `json:"notification"`
	ItemsCount    int               `json:"items_count"`
	SelectedCount int               `json:"selected_count"`
	Total         float64           `json:"total"`
	SelectedTotal float64           `json:"selected_total"`
}

func NewCartView(state cart.State) CartView {
	items := state.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return CartView{
		Items:         items,
		Notification:  state.Notification,
		ItemsCount:    cart.ItemsCount(items),
		SelectedCount: len(cart.SelectedItems(items)),
		Total:         cart.Total(items),
		SelectedTotal: cart.SelectedTotal(items),
	}
}

// CartEvent is the websocket frame published on every state change.
type CartEvent struct {
	Type string   `json:"type"`
	Cart CartView `json:"cart"`
}

type CartServiceConfig struct {
	KeyPrefix       string
	DebounceWindow  time.Duration
	IdleTTL         time.Duration
	NotificationTTL time.Duration
	RejectUnpriced  bool
}

type CartServiceOption func(*cartService)

// WithPublisher enables live updates.
func WithPublisher(p Publisher) CartServiceOption {
	return func(s *cartService) { s.publisher = p }
}

// WithMetrics records actions, defects and persistence outcomes.
func WithMetrics(m *metrics.CartMetrics) CartServiceOption {
	return func(s *cartService) { s.metrics = m }
}

// WithClock replaces the scheduler used for debouncing and notification
// auto-hide.
func WithClock(c cart.Clock) CartServiceOption {
	return func(s *cartService) { s.clock = c }
}

// WithNow replaces the time source used for idle tracking.
func WithNow(now func() time.Time) CartServiceOption {
	return func(s *cartService) { s.now = now }
}

type cartSession struct {
	owner     string
	cart      *cart.Cart
	persister *cart.Persister
	ready     chan struct{}
	err       error
	detach    []func()

	mu          sync.Mutex
	lastAccess  time.Time
	hideTimer   cart.Timer
	subscribers int
}

func (sess *cartSession) touch(now time.Time) {
	sess.mu.Lock()
	sess.lastAccess = now
	sess.mu.Unlock()
}

type cartService struct {
	storage   cart.Storage
	cfg       CartServiceConfig
	publisher Publisher
	metrics   *metrics.CartMetrics
	clock     cart.Clock
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*cartSession
}

func NewCartService(storage cart.Storage, cfg CartServiceConfig, opts ...CartServiceOption) CartService {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "cart"
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = cart.DefaultDebounceWindow
	}
	s := &cartService{
		storage:  storage,
		cfg:      cfg,
		clock:    cart.SystemClock(),
		now:      time.Now,
		sessions: make(map[string]*cartSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StorageKey is where an owner's snapshot lives.
func (s *cartService) StorageKey(owner string) string {
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, owner)
}

// session returns the owner's live cart, hydrating it on first use.
func (s *cartService) session(ctx context.Context, owner string) (*cartSession, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}

	s.mu.Lock()
	if sess, ok := s.sessions[owner]; ok {
		sess.touch(s.now())
		s.mu.Unlock()
		select {
		case <-sess.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if sess.err != nil {
			return nil, sess.err
		}
		return sess, nil
	}

	sess := s.newSession(owner)
	s.sessions[owner] = sess
	s.mu.Unlock()

	if err := sess.persister.Hydrate(ctx, sess.cart); err != nil {
		s.mu.Lock()
		delete(s.sessions, owner)
		s.mu.Unlock()
		sess.err = err
		close(sess.ready)
		return nil, err
	}

	sess.detach = append(sess.detach, sess.persister.Attach(sess.cart))
	if s.publisher != nil {
		sess.detach = append(sess.detach, sess.cart.Subscribe(func(_, next cart.State) {
			s.publish(owner, next)
		}))
	}
	close(sess.ready)

	active := s.ActiveSessions()
	s.metrics.SetActiveSessions(active)
	logger.Debug("Cart session opened", map[string]interface{}{
		"owner":           owner,
		"items":           len(sess.cart.Items()),
		"active_sessions": active,
	})
	return sess, nil
}

func (s *cartService) newSession(owner string) *cartSession {
	c := cart.New(cart.WithDefectReporter(func(item cart.LineItem, defects []cart.Defect) {
		cart.LogDefects(item, defects)
		s.metrics.ObserveDefects(defects)
	}))

	opts := []cart.PersisterOption{
		cart.WithDebounceWindow(s.cfg.DebounceWindow),
		cart.WithClock(s.clock),
	}
	if s.metrics != nil {
		opts = append(opts, cart.WithObserver(s.metrics))
	}

	return &cartSession{
		owner:      owner,
		cart:       c,
		persister:  cart.NewPersister(s.storage, s.StorageKey(owner), opts...),
		ready:      make(chan struct{}),
		lastAccess: s.now(),
	}
}

func (s *cartService) publish(owner string, state cart.State) {
	if !s.publisher.IsOwnerOnline(owner) {
		return
	}
	event := CartEvent{Type: EventCartUpdated, Cart: NewCartView(state)}
	if err := s.publisher.SendToOwner(owner, event); err != nil {
		logger.Warn("Failed to publish cart update", map[string]interface{}{
			"owner": owner,
			"error": err.Error(),
		})
	}
}

func (s *cartService) dispatch(ctx context.Context, owner string, action cart.Action) (cart.State, error) {
	sess, err := s.session(ctx, owner)
	if err != nil {
		return cart.State{}, err
	}
	label := action.ActionType()
	if _, ok := action.(cart.Noop); ok {
		label = "unknown"
	}
	s.metrics.IncAction(label)
	state := sess.cart.Dispatch(action)

	switch action.(type) {
	case cart.ShowNotification:
		s.scheduleHide(sess)
	case cart.HideNotification:
		s.cancelHide(sess)
	}
	return state, nil
}

// notify shows a toast that is hidden again after the notification TTL.
func (s *cartService) notify(ctx context.Context, owner, message string, t cart.NotificationType) (cart.State, error) {
	return s.dispatch(ctx, owner, cart.ShowNotification{Message: message, Type: t})
}

func (s *cartService) scheduleHide(sess *cartSession) {
	if s.cfg.NotificationTTL <= 0 {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.hideTimer != nil {
		sess.hideTimer.Stop()
	}
	c := sess.cart
	sess.hideTimer = s.clock.AfterFunc(s.cfg.NotificationTTL, func() {
		c.HideNotification()
	})
}

func (s *cartService) cancelHide(sess *cartSession) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.hideTimer != nil {
		sess.hideTimer.Stop()
		sess.hideTimer = nil
	}
}

func (s *cartService) GetCart(ctx context.Context, owner string) (cart.State, error) {
	sess, err := s.session(ctx, owner)
	if err != nil {
		return cart.State{}, err
	}
	return sess.cart.State(), nil
}

func (s *cartService) AddToCart(ctx context.Context, owner string, product cart.RawProduct) (cart.State, error) {
	item, defects := cart.SanitizeWithDefects(product)
	if s.cfg.RejectUnpriced && (product.Price == nil || cart.HasDefect(defects, cart.DefectPriceDefaulted)) {
		logger.Warn("Rejected unpriced product", map[string]interface{}{
			"owner":      owner,
			"product_id": item.ID,
			"price":      product.Price,
		})
		return cart.State{}, ErrUnpricedProduct
	}

	if _, err := s.dispatch(ctx, owner, cart.Add{Product: product}); err != nil {
		return cart.State{}, err
	}

	logger.Info("Item added to cart", map[string]interface{}{
		"owner":         owner,
		"product_id":    item.ID,
		"line_item_key": item.LineItemKey,
		"quantity":      item.Quantity,
	})
	return s.notify(ctx, owner, fmt.Sprintf("%s added to cart", item.Name), cart.NotificationSuccess)
}

func (s *cartService) RemoveFromCart(ctx context.Context, owner, key string) (cart.State, error) {
	sess, err := s.session(ctx, owner)
	if err != nil {
		return cart.State{}, err
	}
	var removed *cart.LineItem
	for _, item := range sess.cart.Items() {
		if item.LineItemKey == key {
			removed = &item
			break
		}
	}

	state, err := s.dispatch(ctx, owner, cart.Remove{Key: key})
	if err != nil || removed == nil {
		return state, err
	}

	logger.Info("Item removed from cart", map[string]interface{}{
		"owner":         owner,
		"line_item_key": key,
	})
	return s.notify(ctx, owner, fmt.Sprintf("%s removed from cart", removed.Name), cart.NotificationSuccess)
}

func (s *cartService) UpdateQuantity(ctx context.Context, owner, key string, quantity int) (cart.State, error) {
	return s.dispatch(ctx, owner, cart.UpdateQuantity{Key: key, Quantity: quantity})
}

func (s *cartService) UpdateCustomization(ctx context.Context, owner, key string, fields map[string]string) (cart.State, error) {
	return s.dispatch(ctx, owner, cart.UpdateCustomization{Key: key, Fields: fields})
}

func (s *cartService) ToggleSelect(ctx context.Context, owner, key string) (cart.State, error) {
	return s.dispatch(ctx, owner, cart.ToggleSelect{Key: key})
}

func (s *cartService) SelectAll(ctx context.Context, owner string) (cart.State, error) {
	return s.dispatch(ctx, owner, cart.SelectAll{})
}

func (s *cartService) DeselectAll(ctx context.Context, owner string) (cart.State, error) {
	return s.dispatch(ctx, owner, cart.DeselectAll{})
}

func (s *cartService) ClearCart(ctx context.Context, owner string) (cart.State, error) {
	if _, err := s.dispatch(ctx, owner, cart.Clear{}); err != nil {
		return cart.State{}, err
	}
	logger.Info("Cart cleared", map[string]interface{}{
		"owner": owner,
	})
	return s.notify(ctx, owner, "Cart cleared", cart.NotificationSuccess)
}

// Dispatch applies a wire-format action. Unknown types are accepted and
// leave the cart unchanged.
func (s *cartService) Dispatch(ctx context.Context, owner string, env cart.Envelope) (cart.State, error) {
	action, err := cart.DecodeAction(env)
	if err != nil {
		return cart.State{}, err
	}
	if add, ok := action.(cart.Add); ok {
		return s.AddToCart(ctx, owner, add.Product)
	}
	if _, ok := action.(cart.Noop); ok {
		logger.Debug("Ignoring unknown cart action", map[string]interface{}{
			"owner": owner,
			"type":  env.Type,
		})
	}
	return s.dispatch(ctx, owner, action)
}

func (s *cartService) ShowNotification(ctx context.Context, owner, message string, t cart.NotificationType) (cart.State, error) {
	return s.notify(ctx, owner, message, t)
}

func (s *cartService) HideNotification(ctx context.Context, owner string) (cart.State, error) {
	return s.dispatch(ctx, owner, cart.HideNotification{})
}

func (s *cartService) SelectedItems(ctx context.Context, owner string) ([]cart.LineItem, error) {
	sess, err := s.session(ctx, owner)
	if err != nil {
		return nil, err
	}
	return sess.cart.SelectedItems(), nil
}

func (s *cartService) ExportXLSX(ctx context.Context, owner string) ([]byte, error) {
	sess, err := s.session(ctx, owner)
	if err != nil {
		return nil, err
	}
	data, err := sheet.WriteCart(sess.cart.Items())
	if err != nil {
		logger.Error("Failed to export cart", err, map[string]interface{}{
			"owner": owner,
		})
		return nil, err
	}
	return data, nil
}

// Subscribe registers l on the owner's cart. A subscribed session is never
// swept as idle.
func (s *cartService) Subscribe(ctx context.Context, owner string, l cart.Listener) (func(), error) {
	sess, err := s.session(ctx, owner)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.subscribers++
	sess.mu.Unlock()

	unsubscribe := sess.cart.Subscribe(l)
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			sess.mu.Lock()
			sess.subscribers--
			sess.mu.Unlock()
		})
	}, nil
}

// SweepIdle flushes and evicts sessions untouched for longer than the idle
// TTL. Sessions with subscribers or open sockets are kept. Returns the
// number evicted.
func (s *cartService) SweepIdle(ctx context.Context) (int, error) {
	if s.cfg.IdleTTL <= 0 {
		return 0, nil
	}

	var candidates []*cartSession
	s.mu.Lock()
	for _, sess := range s.sessions {
		if s.isIdle(sess) {
			candidates = append(candidates, sess)
		}
	}
	s.mu.Unlock()

	var errs []error
	evicted := 0
	for _, sess := range candidates {
		if err := sess.persister.Flush(ctx); err != nil {
			errs = append(errs, err)
			continue
		}

		s.mu.Lock()
		current, ok := s.sessions[sess.owner]
		if !ok || current != sess || !s.isIdle(sess) {
			s.mu.Unlock()
			continue
		}
		delete(s.sessions, sess.owner)
		s.mu.Unlock()

		s.closeSession(sess)
		// Non-empty carts are rewritten even when unchanged; retention may
		// have pruned the stored copy.
		var err error
		if items := sess.cart.Items(); len(items) > 0 {
			err = sess.persister.Save(ctx, items)
		} else {
			err = sess.persister.Flush(ctx)
		}
		if err != nil {
			errs = append(errs, err)
		}
		evicted++
	}

	active := s.ActiveSessions()
	s.metrics.SetActiveSessions(active)
	if evicted > 0 {
		logger.Info("Idle cart sessions evicted", map[string]interface{}{
			"evicted":         evicted,
			"active_sessions": active,
		})
	}
	return evicted, errors.Join(errs...)
}

func (s *cartService) isIdle(sess *cartSession) bool {
	select {
	case <-sess.ready:
	default:
		return false
	}
	if sess.err != nil {
		return false
	}
	sess.mu.Lock()
	idle := s.now().Sub(sess.lastAccess) >= s.cfg.IdleTTL && sess.subscribers == 0
	sess.mu.Unlock()
	if !idle {
		return false
	}
	return s.publisher == nil || !s.publisher.IsOwnerOnline(sess.owner)
}

func (s *cartService) closeSession(sess *cartSession) {
	for _, fn := range sess.detach {
		fn()
	}
	s.cancelHide(sess)
}

// FlushAll writes every pending snapshot. Used on shutdown.
func (s *cartService) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*cartSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var errs []error
	flushed := 0
	for _, sess := range sessions {
		select {
		case <-sess.ready:
		default:
			continue
		}
		if sess.err != nil || !sess.persister.Pending() {
			continue
		}
		if err := sess.persister.Flush(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		flushed++
	}

	logger.Info("Cart sessions flushed", map[string]interface{}{
		"sessions": len(sessions),
		"flushed":  flushed,
		"failed":   len(errs),
	})
	return errors.Join(errs...)
}

// LiveStorageKeys lists the storage keys of carts held in memory,
// including ones still hydrating.
func (s *cartService) LiveStorageKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.sessions))
	for owner := range s.sessions {
		keys = append(keys, s.StorageKey(owner))
	}
	return keys
}

func (s *cartService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
