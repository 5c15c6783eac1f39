// Package storefront is the page-facing service of the store: catalog
// browsing, the cart and checkout, with cart changes broadcast over NATS.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/checkout"
	"goflare.io/storefront/event"
	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
)

// ErrEmptyCart is returned by Checkout when there is nothing to buy.
var ErrEmptyCart = errors.New("cart is empty")

const (
	defaultWorkers  = 4
	defaultEventTTL = 24 * time.Hour

	fallbackCategoryImage = "https://images.unsplash.com/photo-1560472354-b33ff0c44a43?w=400&h=300&fit=crop"
)

var categoryImages = map[string]string{
	"electronics":      "https://images.unsplash.com/photo-1498049794561-7780e7231661?w=400&h=300&fit=crop",
	"jewelery":         "https://images.unsplash.com/photo-1515562141207-7a88fb7ce338?w=400&h=300&fit=crop",
	"men's clothing":   "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400&h=300&fit=crop",
	"women's clothing": "https://images.unsplash.com/photo-1434389677669-e08b4cac3105?w=400&h=300&fit=crop",
}

type Service interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	SearchProducts(ctx context.Context, query string) ([]*models.Product, error)
	ListProductsByCategory(ctx context.Context, category string) ([]*models.Product, error)
	ListCategories(ctx context.Context) ([]*models.CategorySummary, error)
	GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error)

	AddToCart(ctx context.Context, id models.ProductID, quantity int) (*cart.AddResult, error)
	UpdateCartItemQuantity(ctx context.Context, id models.ProductID, quantity int) (models.Totals, error)
	RemoveItemFromCart(ctx context.Context, id models.ProductID) (models.Totals, error)
	ClearCart(ctx context.Context) error
	CartItems(ctx context.Context) []models.LineItem
	CartTotals(ctx context.Context) models.Totals

	Checkout(ctx context.Context, form checkout.Form) (*models.Receipt, error)

	Close() error
}

type service struct {
	catalog catalog.Repository
	cart    *cart.Store
	events  event.Repository

	eventManager *EventManager
	workerPool   *WorkerPool
	unsubscribe  func()

	sessionID          string
	syncAcrossSessions bool
	workers            int

	logger *zap.Logger
}

type Option func(*service)

// WithSessionID names this process in published events. Defaults to a random uuid.
func WithSessionID(id string) Option {
	return func(s *service) { s.sessionID = id }
}

// WithSyncAcrossSessions reloads the cart when another session changes the same cart key.
func WithSyncAcrossSessions(enabled bool) Option {
	return func(s *service) { s.syncAcrossSessions = enabled }
}

func WithEventRepository(repo event.Repository) Option {
	return func(s *service) { s.events = repo }
}

func WithWorkers(n int) Option {
	return func(s *service) { s.workers = n }
}

// NewService wires the catalog and cart together. When bus is nil no events
// are published or consumed.
func NewService(catalogRepo catalog.Repository, store *cart.Store, bus Bus, logger *zap.Logger, opts ...Option) (Service, error) {
	s := &service{
		catalog:   catalogRepo,
		cart:      store,
		sessionID: uuid.NewString(),
		workers:   defaultWorkers,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = event.NewMemoryRepository(defaultEventTTL)
	}

	if bus == nil {
		return s, nil
	}

	s.eventManager = NewEventManager(bus, logger)
	s.workerPool = NewWorkerPool(s.workers, s, logger)
	s.registerEventHandlers()

	// 訂閱事件
	if err := s.eventManager.SubscribeToEvents(s.workerPool); err != nil {
		s.workerPool.Shutdown()
		return nil, err
	}
	s.unsubscribe = s.cart.Subscribe(s.publishCartChange)

	return s, nil
}

func (s *service) ListProducts(ctx context.Context) ([]*models.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) SearchProducts(ctx context.Context, query string) ([]*models.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Search(products, query), nil
}

func (s *service) ListProductsByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	products, err := s.catalog.ListProductsByCategory(ctx, catalog.NormalizeCategory(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list products in %q: %w", category, err)
	}
	return products, nil
}

// ListCategories fetches categories and products concurrently and counts
// products per normalized category.
func (s *service) ListCategories(ctx context.Context) ([]*models.CategorySummary, error) {
	var (
		categories []string
		products   []*models.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.catalog.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.catalog.ListProducts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	counts := catalog.CountByCategory(products)
	summaries := make([]*models.CategorySummary, 0, len(categories))
	for _, name := range categories {
		normalized := catalog.NormalizeCategory(name)
		image, ok := categoryImages[normalized]
		if !ok {
			image = fallbackCategoryImage
		}
		summaries = append(summaries, &models.CategorySummary{
			Name:         name,
			DisplayName:  displayName(name),
			ProductCount: counts[normalized],
			Image:        image,
		})
	}
	return summaries, nil
}

func (s *service) GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error) {
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return product, nil
}

func (s *service) AddToCart(ctx context.Context, id models.ProductID, quantity int) (*cart.AddResult, error) {
	return s.cart.AddItemQuantity(ctx, id, quantity)
}

func (s *service) UpdateCartItemQuantity(ctx context.Context, id models.ProductID, quantity int) (models.Totals, error) {
	return s.cart.SetQuantity(ctx, id, quantity)
}

func (s *service) RemoveItemFromCart(ctx context.Context, id models.ProductID) (models.Totals, error) {
	return s.cart.RemoveItem(ctx, id)
}

func (s *service) ClearCart(ctx context.Context) error {
	return s.cart.Clear(ctx)
}

func (s *service) CartItems(ctx context.Context) []models.LineItem {
	s.ensureHydrated(ctx)
	return s.cart.Items()
}

func (s *service) CartTotals(ctx context.Context) models.Totals {
	s.ensureHydrated(ctx)
	return s.cart.Totals()
}

// Checkout validates form, builds a receipt for the current cart and clears
// it. A receipt is returned even if clearing the stored cart fails.
func (s *service) Checkout(ctx context.Context, form checkout.Form) (*models.Receipt, error) {
	// 1. 驗證表單
	if err := checkout.Validate(form); err != nil {
		return nil, err
	}

	// 2. 檢查購物車
	s.ensureHydrated(ctx)
	items := s.cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	// 3. 建立收據
	totals := models.ComputeTotals(items)
	summary := checkout.Summarize(totals, form.Shipping)
	receipt := &models.Receipt{
		Reference:    uuid.NewString(),
		Items:        items,
		ItemCount:    totals.TotalItemCount,
		Shipping:     form.Shipping,
		Currency:     totals.Currency,
		Subtotal:     summary.Subtotal,
		ShippingCost: summary.Shipping,
		Total:        summary.Total,
		PlacedAt:     time.Now().UTC(),
	}

	// 4. 發布事件
	if s.eventManager != nil {
		evt, err := newEvent(enum.EventTypeCheckoutCompleted, s.sessionID, s.cart.Key(), receipt)
		if err == nil {
			err = s.eventManager.Publish(evt)
		}
		if err != nil {
			s.logger.Warn("Checkout not broadcast", zap.String("reference", receipt.Reference), zap.Error(err))
		}
	}

	// 5. 清空購物車
	if err := s.cart.Clear(ctx); err != nil {
		return receipt, err
	}

	return receipt, nil
}

func (s *service) Close() error {
	if s.eventManager == nil {
		return nil
	}
	s.unsubscribe()
	err := s.eventManager.Close()
	s.workerPool.Shutdown()
	return err
}

func (s *service) ensureHydrated(ctx context.Context) {
	if s.cart.Phase() == enum.CartPhaseUninitialized {
		s.cart.Hydrate(ctx)
	}
}

// displayName capitalizes the first letter of each space-separated word.
func displayName(category string) string {
	words := strings.Split(strings.TrimSpace(category), " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if r == utf8.RuneError {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
