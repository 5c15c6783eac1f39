package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
)

const (
	eventSubjectPrefix = "storefront.events."
	eventSubjectAll    = eventSubjectPrefix + ">"
)

var _ Bus = (*nats.Conn)(nil)

// Bus is the part of *nats.Conn the event manager uses.
type Bus interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type EventHandler func(context.Context, *models.Event) error

type EventManager struct {
	bus      Bus
	mu       sync.RWMutex
	handlers map[enum.EventType]EventHandler
	sub      *nats.Subscription
	logger   *zap.Logger
}

func NewEventManager(bus Bus, logger *zap.Logger) *EventManager {
	return &EventManager{
		bus:      bus,
		handlers: make(map[enum.EventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType enum.EventType, handler EventHandler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType enum.EventType) (EventHandler, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	handler, exists := em.handlers[eventType]
	return handler, exists
}

func subjectFor(eventType enum.EventType) string {
	return eventSubjectPrefix + string(eventType)
}

// Publish sends event as JSON on storefront.events.<type>.
func (em *EventManager) Publish(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err = em.bus.Publish(subjectFor(event.Type), data); err != nil {
		em.logger.Error("Failed to publish event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return nil
}

func (em *EventManager) SubscribeToEvents(wp *WorkerPool) error {
	sub, err := em.bus.Subscribe(eventSubjectAll, func(msg *nats.Msg) {
		var event models.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("Failed to unmarshal event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}

		wp.Submit(context.Background(), &event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eventSubjectAll, err)
	}
	em.sub = sub
	return nil
}

func (em *EventManager) Close() error {
	if em.sub == nil {
		return nil
	}
	return em.sub.Unsubscribe()
}

func newEvent(eventType enum.EventType, sessionID, cartKey string, data any) (*models.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		SessionID:  sessionID,
		CartKey:    cartKey,
		Data:       raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

func (s *service) registerEventHandlers() {
	eventHandlers := map[enum.EventType]EventHandler{
		enum.EventTypeCartUpdated:       s.handleCartUpdated,
		enum.EventTypeCheckoutCompleted: s.handleCheckoutCompleted,
	}

	for eventType, handler := range eventHandlers {
		s.eventManager.RegisterHandler(eventType, handler)
	}
}

// publishCartChange is the cart observer. Hydrates are not published, so
// sessions re-hydrating each other never loop.
func (s *service) publishCartChange(change models.CartChange) {
	if change.Reason == models.CartChangeHydrated {
		return
	}
	event, err := newEvent(enum.EventTypeCartUpdated, s.sessionID, s.cart.Key(), models.CartUpdatedData{
		Reason:         change.Reason,
		TotalItemCount: change.Totals.TotalItemCount,
		Subtotal:       change.Totals.SubtotalString(),
	})
	if err != nil {
		s.logger.Error("Failed to build cart event", zap.Error(err))
		return
	}
	if err = s.eventManager.Publish(event); err != nil {
		s.logger.Warn("Cart change not broadcast", zap.Error(err))
	}
}

func (s *service) handleCartUpdated(ctx context.Context, event *models.Event) error {
	if !s.syncAcrossSessions || event.SessionID == s.sessionID || event.CartKey != s.cart.Key() {
		return nil
	}

	var data models.CartUpdatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal cart event: %w", err)
	}

	// 其他工作階段寫入了同一個購物車，重新載入（最後寫入者勝出）
	s.logger.Info("Reloading cart changed by another session",
		zap.String("event_id", event.ID),
		zap.String("session_id", event.SessionID),
		zap.String("reason", string(data.Reason)),
		zap.Int("total_item_count", data.TotalItemCount))
	// 讀取失敗時保留目前內容，交由重送再試
	return s.cart.Reload(ctx)
}

func (s *service) handleCheckoutCompleted(_ context.Context, event *models.Event) error {
	var receipt models.Receipt
	if err := json.Unmarshal(event.Data, &receipt); err != nil {
		return fmt.Errorf("failed to unmarshal receipt: %w", err)
	}

	s.logger.Info("Checkout completed",
		zap.String("event_id", event.ID),
		zap.String("session_id", event.SessionID),
		zap.String("reference", receipt.Reference),
		zap.Int("item_count", receipt.ItemCount),
		zap.String("total", models.FormatAmount(receipt.Total)))

	return nil
}

func (s *service) ProcessEvent(ctx context.Context, event *models.Event) error {

	first, err := s.events.MarkProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if !first {
		s.logger.Info("Event already processed", zap.String("event_id", event.ID))
		return nil
	}

	handler, exists := s.eventManager.GetHandler(event.Type)
	if !exists {
		return fmt.Errorf("no handler registered for event type: %s", event.Type)
	}

	if err = handler(ctx, event); err != nil {
		s.logger.Error("處理事件時出錯",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		// 撤銷標記，重送時才會再處理
		if releaseErr := s.events.Release(ctx, event.ID); releaseErr != nil {
			s.logger.Warn("Failed to release event mark", zap.String("event_id", event.ID), zap.Error(releaseErr))
		}
		return err
	}

	s.logger.Debug("Storefront event processed", zap.String("event_id", event.ID))

	return nil
}
