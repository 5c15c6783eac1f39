package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/checkout"
	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
	"goflare.io/storefront/storage"
)

type fakeCatalog struct {
	products []*models.Product
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: []*models.Product{
		{ID: "1", Title: "Fjallraven Backpack", Price: 109.95, Description: "Everyday pack", Category: "men's clothing", Image: "b.png"},
		{ID: "2", Title: "Slim Fit T-Shirt", Price: 22.3, Description: "Casual cotton", Category: "men's clothing", Image: "t.png"},
		{ID: "5", Title: "Dragon Bracelet", Price: 695, Description: "Silver chain", Category: "jewelery", Image: "d.png"},
		{ID: "9", Title: "WD 2TB Drive", Price: 64, Description: "USB storage", Category: "electronics", Image: "w.png"},
	}}
}

func (c *fakeCatalog) GetProduct(_ context.Context, id models.ProductID) (*models.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (c *fakeCatalog) ListProducts(context.Context) ([]*models.Product, error) {
	return c.products, nil
}

func (c *fakeCatalog) ListCategories(context.Context) ([]string, error) {
	return []string{"electronics", "jewelery", "men's clothing", "women's clothing", "garden"}, nil
}

func (c *fakeCatalog) ListProductsByCategory(_ context.Context, category string) ([]*models.Product, error) {
	return catalog.FilterByCategory(c.products, category), nil
}

// fakeBus delivers every published message synchronously to all subscribers.
type fakeBus struct {
	mu        sync.Mutex
	handlers  []nats.MsgHandler
	published []*nats.Msg
}

func (b *fakeBus) Publish(subj string, data []byte) error {
	msg := &nats.Msg{Subject: subj, Data: data}
	b.mu.Lock()
	b.published = append(b.published, msg)
	handlers := append([]nats.MsgHandler(nil), b.handlers...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

func (b *fakeBus) Subscribe(_ string, cb nats.MsgHandler) (*nats.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, cb)
	return nil, nil
}

func (b *fakeBus) events(t *testing.T, eventType enum.EventType) []*models.Event {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*models.Event
	for _, msg := range b.published {
		if msg.Subject != subjectFor(eventType) {
			continue
		}
		var evt models.Event
		require.NoError(t, json.Unmarshal(msg.Data, &evt))
		out = append(out, &evt)
	}
	return out
}

func newTestService(t *testing.T, repo storage.Repository, bus Bus, opts ...Option) Service {
	t.Helper()
	logger := zaptest.NewLogger(t)
	products := newFakeCatalog()
	store := cart.NewStore(repo, products, logger)

	svc, err := NewService(products, store, bus, logger, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, svc.Close()) })
	return svc
}

func TestService_ListCategories(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryRepository(), nil)

	summaries, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 5)

	byName := make(map[string]*models.CategorySummary)
	for _, s := range summaries {
		byName[s.Name] = s
	}
	require.Equal(t, "Men's Clothing", byName["men's clothing"].DisplayName)
	require.Equal(t, 2, byName["men's clothing"].ProductCount)
	require.Equal(t, 0, byName["women's clothing"].ProductCount)
	require.Equal(t, categoryImages["jewelery"], byName["jewelery"].Image)
	require.Equal(t, fallbackCategoryImage, byName["garden"].Image)
}

func TestService_SearchAndCategory(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryRepository(), nil)
	ctx := context.Background()

	found, err := svc.SearchProducts(ctx, "SILVER")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, models.ProductID("5"), found[0].ID)

	mens, err := svc.ListProductsByCategory(ctx, "  Men's Clothing")
	require.NoError(t, err)
	require.Len(t, mens, 2)

	_, err = svc.GetProduct(ctx, "404")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_CartChangesArePublished(t *testing.T) {
	bus := &fakeBus{}
	svc := newTestService(t, storage.NewMemoryRepository(), bus, WithSessionID("session-a"))
	ctx := context.Background()

	require.Zero(t, svc.CartTotals(ctx).TotalItemCount)

	res, err := svc.AddToCart(ctx, "1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.Totals.TotalItemCount)

	_, err = svc.UpdateCartItemQuantity(ctx, "1", 3)
	require.NoError(t, err)
	_, err = svc.RemoveItemFromCart(ctx, "1")
	require.NoError(t, err)

	events := bus.events(t, enum.EventTypeCartUpdated)
	require.Len(t, events, 3)
	for _, evt := range events {
		require.Equal(t, "session-a", evt.SessionID)
		require.Equal(t, cart.DefaultKey, evt.CartKey)
	}

	var data models.CartUpdatedData
	require.NoError(t, json.Unmarshal(events[1].Data, &data))
	require.Equal(t, models.CartChangeQuantitySet, data.Reason)
	require.Equal(t, 3, data.TotalItemCount)
	require.Equal(t, "329.85", data.Subtotal)
}

func TestService_Checkout(t *testing.T) {
	bus := &fakeBus{}
	repo := storage.NewMemoryRepository()
	svc := newTestService(t, repo, bus)
	ctx := context.Background()

	form := checkout.Form{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Address:    "12 St James's Square",
		City:       "London",
		Zip:        "10001",
		CardNumber: "4242424242424242",
		Expiry:     "08/27",
		CVV:        "123",
		Shipping:   enum.ShippingMethodExpress,
	}

	_, err := svc.Checkout(ctx, form)
	require.ErrorIs(t, err, ErrEmptyCart)

	bad := form
	bad.CVV = "12"
	var verr *checkout.ValidationError
	_, err = svc.Checkout(ctx, bad)
	require.ErrorAs(t, err, &verr)

	_, err = svc.AddToCart(ctx, "2", 2)
	require.NoError(t, err)

	receipt, err := svc.Checkout(ctx, form)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.Reference)
	require.Equal(t, 2, receipt.ItemCount)
	require.Equal(t, "44.60", models.FormatAmount(receipt.Subtotal))
	require.Equal(t, "9.99", models.FormatAmount(receipt.ShippingCost))
	require.Equal(t, "54.59", models.FormatAmount(receipt.Total))
	require.Equal(t, models.DefaultCurrency, receipt.Currency)

	require.Empty(t, svc.CartItems(ctx))
	data, err := repo.Read(ctx, cart.DefaultKey)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))

	completed := bus.events(t, enum.EventTypeCheckoutCompleted)
	require.Len(t, completed, 1)
	var published models.Receipt
	require.NoError(t, json.Unmarshal(completed[0].Data, &published))
	require.Equal(t, receipt.Reference, published.Reference)
}

func TestService_SyncAcrossSessions(t *testing.T) {
	bus := &fakeBus{}
	repo := storage.NewMemoryRepository()
	ctx := context.Background()

	a := newTestService(t, repo, bus, WithSessionID("a"), WithSyncAcrossSessions(true))
	b := newTestService(t, repo, bus, WithSessionID("b"), WithSyncAcrossSessions(true))
	require.Empty(t, b.CartItems(ctx))

	_, err := a.AddToCart(ctx, "9", 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		items := b.CartItems(ctx)
		return len(items) == 1 && items[0].ProductID == "9"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_NoSyncKeepsLocalCart(t *testing.T) {
	bus := &fakeBus{}
	repo := storage.NewMemoryRepository()
	ctx := context.Background()

	a := newTestService(t, repo, bus, WithSessionID("a"))
	b := newTestService(t, repo, bus, WithSessionID("b"))
	require.Empty(t, b.CartItems(ctx))

	_, err := a.AddToCart(ctx, "9", 1)
	require.NoError(t, err)

	// 沒有同步時，已載入的購物車不會被其他工作階段改變
	require.NoError(t, b.(*service).ProcessEvent(ctx, bus.events(t, enum.EventTypeCartUpdated)[0]))
	require.Empty(t, b.CartItems(ctx))
}

func TestService_ProcessEventOnce(t *testing.T) {
	bus := &fakeBus{}
	svc := newTestService(t, storage.NewMemoryRepository(), bus).(*service)
	ctx := context.Background()

	var calls int32
	svc.eventManager.RegisterHandler(enum.EventTypeCheckoutCompleted, func(context.Context, *models.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	evt := &models.Event{ID: "evt-1", Type: enum.EventTypeCheckoutCompleted}
	require.NoError(t, svc.ProcessEvent(ctx, evt))
	require.NoError(t, svc.ProcessEvent(ctx, evt))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	err := svc.ProcessEvent(ctx, &models.Event{ID: "evt-2", Type: "unknown.type"})
	require.Error(t, err)
}

func TestService_ProcessEventRetriesFailedHandler(t *testing.T) {
	bus := &fakeBus{}
	svc := newTestService(t, storage.NewMemoryRepository(), bus).(*service)
	ctx := context.Background()

	var calls int32
	svc.eventManager.RegisterHandler(enum.EventTypeCheckoutCompleted, func(context.Context, *models.Event) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("temporary failure")
		}
		return nil
	})

	evt := &models.Event{ID: "evt-1", Type: enum.EventTypeCheckoutCompleted}
	require.Error(t, svc.ProcessEvent(ctx, evt))
	require.NoError(t, svc.ProcessEvent(ctx, evt))
	require.NoError(t, svc.ProcessEvent(ctx, evt))
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// flakyRepository fails every Read while failReads is set. Writes pass through.
type flakyRepository struct {
	storage.Repository
	failReads   atomic.Bool
	failedReads atomic.Int32
}

func (r *flakyRepository) Read(ctx context.Context, key string) ([]byte, error) {
	if r.failReads.Load() {
		r.failedReads.Add(1)
		return nil, errors.New("connection reset")
	}
	return r.Repository.Read(ctx, key)
}

func TestService_SyncKeepsCartWhenReloadFails(t *testing.T) {
	bus := &fakeBus{}
	repo := &flakyRepository{Repository: storage.NewMemoryRepository()}
	ctx := context.Background()

	a := newTestService(t, repo, bus, WithSessionID("a"), WithSyncAcrossSessions(true))
	b := newTestService(t, repo, bus, WithSessionID("b"), WithSyncAcrossSessions(true))
	require.Empty(t, a.CartItems(ctx))

	_, err := b.AddToCart(ctx, "5", 2)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(a.CartItems(ctx)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	repo.failReads.Store(true)
	_, err = a.AddToCart(ctx, "9", 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return repo.failedReads.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)

	// 讀取失敗時 b 保留原本的內容
	items := b.CartItems(ctx)
	require.Len(t, items, 1)
	require.Equal(t, models.ProductID("5"), items[0].ProductID)
	require.Equal(t, 2, items[0].Quantity)

	_, err = b.AddToCart(ctx, "1", 1)
	require.NoError(t, err)

	repo.failReads.Store(false)
	fresh := cart.NewStore(repo, newFakeCatalog(), zaptest.NewLogger(t))
	fresh.Hydrate(ctx)
	ids := make([]models.ProductID, 0, 2)
	for _, item := range fresh.Items() {
		ids = append(ids, item.ProductID)
	}
	require.Equal(t, []models.ProductID{"5", "1"}, ids)
}

type countingProcessor struct {
	processed int32
	fail      bool
}

func (p *countingProcessor) ProcessEvent(context.Context, *models.Event) error {
	atomic.AddInt32(&p.processed, 1)
	if p.fail {
		return errors.New("handler failed")
	}
	return nil
}

func TestWorkerPool_ShutdownDrainsQueue(t *testing.T) {
	processor := &countingProcessor{}
	wp := NewWorkerPool(3, processor, zaptest.NewLogger(t))

	for i := 0; i < 50; i++ {
		wp.Submit(context.Background(), &models.Event{ID: "evt", Type: enum.EventTypeCartUpdated})
	}
	wp.Shutdown()
	require.Equal(t, int32(50), atomic.LoadInt32(&processor.processed))

	// 關閉後提交的事件會被丟棄
	wp.Submit(context.Background(), &models.Event{ID: "late", Type: enum.EventTypeCartUpdated})
	wp.Shutdown()
	require.Equal(t, int32(50), atomic.LoadInt32(&processor.processed))
}

func TestWorkerPool_HandlerErrorsAreLogged(t *testing.T) {
	processor := &countingProcessor{fail: true}
	wp := NewWorkerPool(1, processor, zaptest.NewLogger(t))

	wp.Submit(context.Background(), &models.Event{ID: "evt", Type: enum.EventTypeCartUpdated})
	wp.Shutdown()
	require.Equal(t, int32(1), atomic.LoadInt32(&processor.processed))
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Men's Clothing", displayName("men's clothing"))
	require.Equal(t, "Electronics", displayName("electronics"))
	require.Equal(t, "", displayName(""))
}
