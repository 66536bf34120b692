package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ikkim/storefront-cart/pkg/logger"
)

const (
	DefaultDebounceWindow = 500 * time.Millisecond
	defaultWriteTimeout   = 5 * time.Second
)

// Clock schedules deferred calls. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock schedules on the real time package.
func SystemClock() Clock { return systemClock{} }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// HydrateOutcome classifies what Hydrate found in storage.
type HydrateOutcome string

const (
	HydrateLoaded  HydrateOutcome = "loaded"
	HydrateEmpty   HydrateOutcome = "empty"
	HydrateCorrupt HydrateOutcome = "corrupt"
	HydrateFailed  HydrateOutcome = "error"
)

// PersistObserver is told about every storage round trip.
type PersistObserver interface {
	ObserveWrite(err error)
	ObserveHydrate(outcome HydrateOutcome)
}

type nopObserver struct{}

func (nopObserver) ObserveWrite(error)            {}
func (nopObserver) ObserveHydrate(HydrateOutcome) {}

// Persister mirrors a cart's items into Storage under one key. Writes are
// debounced: each item change restarts the window, and at most one write
// happens per window. A process that dies inside the window loses the
// last change; Flush closes the window early on orderly shutdown.
type Persister struct {
	storage  Storage
	key      string
	window   time.Duration
	timeout  time.Duration
	clock    Clock
	observer PersistObserver

	mu      sync.Mutex
	timer   Timer
	pending []LineItem
	dirty   bool
	gen     uint64
	seq     uint64

	writeMu     sync.Mutex
	lastWritten uint64
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

func WithDebounceWindow(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.window = d
		}
	}
}

func WithClock(c Clock) PersisterOption {
	return func(p *Persister) { p.clock = c }
}

func WithWriteTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithObserver(o PersistObserver) PersisterOption {
	return func(p *Persister) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewPersister builds a persister for key in storage.
func NewPersister(storage Storage, key string, opts ...PersisterOption) *Persister {
	p := &Persister{
		storage:  storage,
		key:      key,
		window:   DefaultDebounceWindow,
		timeout:  defaultWriteTimeout,
		clock:    systemClock{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key is the storage key this persister owns.
func (p *Persister) Key() string {
	return p.key
}

// Hydrate loads the stored snapshot into c. A missing snapshot leaves c
// empty. A corrupted one is discarded and deleted from storage. Every
// stored row is re-sanitized before loading. Call before Attach.
func (p *Persister) Hydrate(ctx context.Context, c *Cart) error {
	raw, err := p.storage.Get(ctx, p.key)
	if errors.Is(err, ErrNotFound) {
		p.observer.ObserveHydrate(HydrateEmpty)
		return nil
	}
	if err != nil {
		logger.Error("Failed to read cart snapshot", err, map[string]interface{}{
			"key": p.key,
		})
		p.observer.ObserveHydrate(HydrateFailed)
		return fmt.Errorf("read cart snapshot %q: %w", p.key, err)
	}

	items, err := DecodeSnapshot(raw)
	if err != nil {
		logger.Warn("Discarding corrupted cart snapshot", map[string]interface{}{
			"key":   p.key,
			"error": err.Error(),
		})
		if delErr := p.storage.Delete(ctx, p.key); delErr != nil {
			logger.Error("Failed to delete corrupted cart snapshot", delErr, map[string]interface{}{
				"key": p.key,
			})
		}
		p.observer.ObserveHydrate(HydrateCorrupt)
		return nil
	}

	rows := make([]RawProduct, 0, len(items))
	for _, item := range items {
		rows = append(rows, item.Raw())
	}
	c.Dispatch(Load{Items: rows})
	p.observer.ObserveHydrate(HydrateLoaded)
	logger.Debug("Cart hydrated from storage", map[string]interface{}{
		"key":   p.key,
		"items": len(items),
	})
	return nil
}

// Attach subscribes the persister to c and returns the unsubscribe func.
func (p *Persister) Attach(c *Cart) func() {
	return c.Subscribe(func(prev, next State) {
		if slices.Equal(prev.Items, next.Items) {
			return
		}
		p.schedule(next.Items)
	})
}

// Pending reports whether a change is waiting for its debounce window.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

func (p *Persister) schedule(items []LineItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = clone(items)
	p.dirty = true
	p.seq++
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.window, func() { p.fire(gen) })
}

func (p *Persister) fire(gen uint64) {
	items, seq, ok := p.take(gen)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_ = p.write(ctx, items, seq)
}

// take claims the pending snapshot. gen 0 claims regardless of timer.
func (p *Persister) take(gen uint64) ([]LineItem, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty || (gen != 0 && gen != p.gen) {
		return nil, 0, false
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	p.dirty = false
	items := p.pending
	p.pending = nil
	return items, p.seq, true
}

// Flush writes any pending snapshot now instead of waiting for the window.
func (p *Persister) Flush(ctx context.Context) error {
	items, seq, ok := p.take(0)
	if !ok {
		return nil
	}
	return p.write(ctx, items, seq)
}

// Save writes items now, superseding any pending snapshot. Use it when the
// stored copy may be gone even though nothing changed in memory.
func (p *Persister) Save(ctx context.Context, items []LineItem) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	p.dirty = false
	p.pending = nil
	p.seq++
	seq := p.seq
	p.mu.Unlock()
	return p.write(ctx, clone(items), seq)
}

// write stores items unless a newer snapshot already landed.
func (p *Persister) write(ctx context.Context, items []LineItem, seq uint64) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if seq <= p.lastWritten {
		return nil
	}

	payload, err := EncodeSnapshot(items)
	if err == nil {
		err = p.storage.Set(ctx, p.key, payload)
	}
	p.observer.ObserveWrite(err)
	if err != nil {
		logger.Error("Failed to persist cart snapshot", err, map[string]interface{}{
			"key":   p.key,
			"items": len(items),
		})
		return fmt.Errorf("write cart snapshot %q: %w", p.key, err)
	}
	p.lastWritten = seq
	logger.Debug("Cart snapshot persisted", map[string]interface{}{
		"key":   p.key,
		"items": len(items),
	})
	return nil
}

// EncodeSnapshot serializes items into the stored JSON array.
func EncodeSnapshot(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var errNotArray = errors.New("snapshot is not a JSON array")

// DecodeSnapshot parses a stored snapshot and re-sanitizes every row.
// Rows that are not objects are dropped.
func DecodeSnapshot(raw string) ([]LineItem, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errNotArray
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, err
	}

	items := make([]LineItem, 0, len(entries))
	for i, entry := range entries {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 || entry[0] != '{' {
			logger.Warn("Skipping non-object cart snapshot row", map[string]interface{}{
				"index": i,
			})
			continue
		}
		var product RawProduct
		if err := json.Unmarshal(entry, &product); err != nil {
			logger.Warn("Skipping unreadable cart snapshot row", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			continue
		}
		item, defects := SanitizeWithDefects(product)
		if len(defects) > 0 {
			LogDefects(item, defects)
		}
		items = append(items, item)
	}
	return items, nil
}
