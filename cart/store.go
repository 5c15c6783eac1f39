// Package cart owns the shopping cart: its line items, derived totals and
// the snapshot persisted after every accepted mutation.
//
// A Store is safe for concurrent use. Only AddItem blocks on I/O outside the
// lock (the catalog lookup); its completion re-reads current state, so an add
// that races a remove of the same product still adds a fresh line item.
// Snapshots are overwritten wholesale; two stores sharing one key resolve
// as last write wins.
package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
	"goflare.io/storefront/storage"
)

const (
	DefaultKey = "cart"

	// MaxQuantity caps a single line item.
	MaxQuantity = math.MaxInt32
)

// ProductSource is the catalog lookup AddItem depends on.
type ProductSource interface {
	GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error)
}

// AddResult is the line item after an add and the totals of the whole cart.
type AddResult struct {
	Item   models.LineItem
	Totals models.Totals
}

type Store struct {
	mu sync.Mutex

	key      string
	repo     storage.Repository
	products ProductSource
	logger   *zap.Logger

	phase   enum.CartPhase
	items   []models.LineItem
	version uint64

	observers    map[int]func(models.CartChange)
	nextObserver int
}

type Option func(*Store)

// WithKey sets the storage key the snapshot is read from and written to.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func NewStore(repo storage.Repository, products ProductSource, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		key:       DefaultKey,
		repo:      repo,
		products:  products,
		logger:    logger,
		phase:     enum.CartPhaseUninitialized,
		observers: make(map[int]func(models.CartChange)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Key() string {
	return s.key
}

func (s *Store) Phase() enum.CartPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Hydrate replaces the in-memory cart with the stored snapshot. A missing,
// unreadable or malformed snapshot yields an empty cart; it never fails.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	s.loadLocked(ctx)
	change := s.changeLocked(models.CartChangeHydrated, "")
	s.unlockAndNotify(change)
}

// Reload re-reads the stored snapshot into an already hydrated cart. Unlike
// Hydrate it keeps the current items when the snapshot cannot be read or
// decoded, so a later mutation never persists a cart truncated by a
// transient failure. A missing snapshot still empties the cart.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()

	data, err := s.repo.Read(ctx, s.key)
	var items []models.LineItem
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.mu.Unlock()
		s.logger.Warn("Failed to reload cart snapshot, keeping current items", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("failed to reload cart %s: %w", s.key, err)
	default:
		items, err = decodeSnapshot(data)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("Ignoring malformed cart snapshot on reload", zap.String("key", s.key), zap.Error(err))
			return fmt.Errorf("failed to reload cart %s: %w", s.key, err)
		}
	}

	s.items = items
	s.phase = enum.CartPhaseReady
	change := s.changeLocked(models.CartChangeHydrated, "")
	s.unlockAndNotify(change)
	return nil
}

func (s *Store) AddItem(ctx context.Context, id models.ProductID) (*AddResult, error) {
	return s.AddItemQuantity(ctx, id, 1)
}

// AddItemQuantity looks the product up in the catalog, then increments the
// existing line item or appends a new one with the fetched title, price and
// image. A failed lookup returns ErrProductUnavailable and changes nothing.
func (s *Store) AddItemQuantity(ctx context.Context, id models.ProductID, delta int) (*AddResult, error) {
	if delta < 1 {
		return nil, ErrInvalidQuantity
	}
	if delta > MaxQuantity {
		return nil, fmt.Errorf("%w: %d > %d", ErrQuantityLimit, delta, MaxQuantity)
	}

	// 1. 查詢目錄（不持有鎖）
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		s.logger.Warn("Product lookup failed", zap.String("product_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrProductUnavailable, id, err)
	}
	if product == nil || product.Price < 0 {
		return nil, fmt.Errorf("%w: %s: invalid catalog record", ErrProductUnavailable, id)
	}

	// 2. 重新讀取目前狀態後再修改
	s.mu.Lock()
	s.ensureHydratedLocked(ctx)

	idx := s.indexLocked(id)
	if idx >= 0 {
		if current := s.items[idx].Quantity; current > MaxQuantity-delta {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s has %d, adding %d", ErrQuantityLimit, id, current, delta)
		}
		s.items[idx].Quantity += delta
	} else {
		s.items = append(s.items, models.LineItem{
			ProductID: id,
			Title:     product.Title,
			UnitPrice: decimal.NewFromFloat(product.Price),
			Image:     product.Image,
			Quantity:  delta,
			QuotedID:  product.QuotedID,
		})
		idx = len(s.items) - 1
	}
	result := &AddResult{
		Item:   s.items[idx],
		Totals: models.ComputeTotals(s.items),
	}

	// 3. 寫入完整快照
	persistErr := s.persistLocked(ctx)
	change := s.changeLocked(models.CartChangeItemAdded, id)
	s.unlockAndNotify(change)

	return result, persistErr
}

// SetQuantity sets an absolute quantity. A quantity below 1 removes the item.
// It returns ErrItemNotFound when id is not in the cart, whatever qty is, and
// ErrQuantityLimit without changing anything when qty exceeds MaxQuantity.
func (s *Store) SetQuantity(ctx context.Context, id models.ProductID, qty int) (models.Totals, error) {
	s.mu.Lock()
	s.ensureHydratedLocked(ctx)

	idx := s.indexLocked(id)
	if idx < 0 {
		totals := models.ComputeTotals(s.items)
		s.mu.Unlock()
		return totals, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if qty > MaxQuantity {
		totals := models.ComputeTotals(s.items)
		s.mu.Unlock()
		return totals, fmt.Errorf("%w: %d > %d", ErrQuantityLimit, qty, MaxQuantity)
	}

	reason := models.CartChangeQuantitySet
	if qty < 1 {
		s.removeAtLocked(idx)
		reason = models.CartChangeItemRemoved
	} else {
		s.items[idx].Quantity = qty
	}
	totals := models.ComputeTotals(s.items)

	persistErr := s.persistLocked(ctx)
	change := s.changeLocked(reason, id)
	s.unlockAndNotify(change)

	return totals, persistErr
}

// RemoveItem removes id if present. Removing an absent item is a no-op and
// does not write the snapshot.
func (s *Store) RemoveItem(ctx context.Context, id models.ProductID) (models.Totals, error) {
	s.mu.Lock()
	s.ensureHydratedLocked(ctx)

	idx := s.indexLocked(id)
	if idx < 0 {
		totals := models.ComputeTotals(s.items)
		s.mu.Unlock()
		return totals, nil
	}

	s.removeAtLocked(idx)
	totals := models.ComputeTotals(s.items)

	persistErr := s.persistLocked(ctx)
	change := s.changeLocked(models.CartChangeItemRemoved, id)
	s.unlockAndNotify(change)

	return totals, persistErr
}

// Clear empties the cart and persists an empty list.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.ensureHydratedLocked(ctx)

	s.items = nil

	persistErr := s.persistLocked(ctx)
	change := s.changeLocked(models.CartChangeCleared, "")
	s.unlockAndNotify(change)

	return persistErr
}

// Totals is computed from memory only. Before the first hydrate the cart is empty.
func (s *Store) Totals() models.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ComputeTotals(s.items)
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]models.LineItem, len(s.items))
	copy(items, s.items)
	return items
}

// Subscribe registers fn to be called outside the store lock after every
// hydrate and accepted mutation. Concurrent mutations may deliver out of
// order; CartChange.Version tells which is newer. The returned func
// unsubscribes.
func (s *Store) Subscribe(fn func(models.CartChange)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) ensureHydratedLocked(ctx context.Context) {
	if s.phase == enum.CartPhaseUninitialized {
		s.loadLocked(ctx)
	}
}

func (s *Store) loadLocked(ctx context.Context) {
	s.items = nil
	s.phase = enum.CartPhaseReady

	data, err := s.repo.Read(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("Failed to read cart snapshot, starting empty", zap.String("key", s.key), zap.Error(err))
		return
	}

	items, err := decodeSnapshot(data)
	if err != nil {
		s.logger.Warn("Discarding malformed cart snapshot", zap.String("key", s.key), zap.Error(err))
		return
	}
	s.items = items
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := encodeSnapshot(s.items)
	if err == nil {
		err = s.repo.Write(ctx, s.key, data)
	}
	if err != nil {
		s.logger.Error("Failed to persist cart", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return nil
}

func (s *Store) indexLocked(id models.ProductID) int {
	for i := range s.items {
		if s.items[i].ProductID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAtLocked(idx int) {
	items := make([]models.LineItem, 0, len(s.items)-1)
	items = append(items, s.items[:idx]...)
	s.items = append(items, s.items[idx+1:]...)
}

type pendingChange struct {
	change    models.CartChange
	observers []func(models.CartChange)
}

func (s *Store) changeLocked(reason models.CartChangeReason, id models.ProductID) pendingChange {
	s.version++
	totals := models.ComputeTotals(s.items)
	observers := make([]func(models.CartChange), 0, len(s.observers))
	for i := 0; i < s.nextObserver; i++ {
		if fn, ok := s.observers[i]; ok {
			observers = append(observers, fn)
		}
	}
	return pendingChange{
		change: models.CartChange{
			Reason:    reason,
			ProductID: id,
			ItemCount: len(s.items),
			Totals:    totals,
			Version:   s.version,
		},
		observers: observers,
	}
}

func (s *Store) unlockAndNotify(p pendingChange) {
	s.mu.Unlock()
	for _, fn := range p.observers {
		fn(p.change)
	}
}
