package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type memoryOrderStore struct {
	mu      sync.Mutex
	orders  map[string]Order
	updates []PaymentUpdate
	err     error
}

func newMemoryOrderStore(orders ...Order) *memoryOrderStore {
	store := &memoryOrderStore{orders: map[string]Order{}}
	for _, order := range orders {
		store.orders[order.ID] = order
	}
	return store
}

func (s *memoryOrderStore) UpdateOrderOnPayment(_ context.Context, update PaymentUpdate) (PaymentOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	if s.err != nil {
		return PaymentOutcome{}, s.err
	}
	order, ok := s.orders[update.OrderID]
	if !ok {
		return PaymentOutcome{}, OrderNotFoundError(update.OrderID, nil)
	}
	if order.UserID != update.UserID {
		return PaymentOutcome{}, InvalidOrderMetadataError("", MetadataKeyUserID)
	}
	if order.IsPaid {
		return PaymentOutcome{Order: order, AlreadyPaid: true}, nil
	}
	paidAt := update.PaidAt
	shipping := update.ShippingAddress
	billing := update.BillingAddress
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.ShippingAddress = &shipping
	order.BillingAddress = &billing
	s.orders[order.ID] = order
	return PaymentOutcome{Order: order}, nil
}

func (s *memoryOrderStore) MarkConfirmationSent(_ context.Context, orderID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return OrderNotFoundError(orderID, nil)
	}
	if order.ConfirmationSentAt == nil {
		order.ConfirmationSentAt = &sentAt
		s.orders[orderID] = order
	}
	return nil
}

// paymentOnlyStore hides MarkConfirmationSent from the service.
type paymentOnlyStore struct {
	OrderStore
}

func (s *memoryOrderStore) order(id string) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memoryOrderStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []OrderConfirmation
	err  error
}

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, confirmation OrderConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, confirmation)
	return nil
}

func (n *recordingNotifier) messages() []OrderConfirmation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]OrderConfirmation(nil), n.sent...)
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	messages []*JobExecutionMessage
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func pendingOrder(id string, userID string, createdAt time.Time) Order {
	return Order{ID: id, UserID: userID, CreatedAt: createdAt, UpdatedAt: createdAt}
}

func checkoutEvent(id string, object map[string]any) InboundEvent {
	raw, err := json.Marshal(object)
	if err != nil {
		panic(err)
	}
	return InboundEvent{
		ID:         id,
		ProviderID: "stripe",
		Type:       EventTypeCheckoutSessionCompleted,
		Data:       raw,
	}
}

func completedSession() map[string]any {
	return map[string]any{
		"id": "cs_test_1",
		"customer_details": map[string]any{
			"email": "a@b.com",
			"name":  "A B",
			"address": map[string]any{
				"city":        "Alexandria",
				"country":     "EG",
				"line1":       "1 Corniche",
				"postal_code": "21500",
				"state":       "ALX",
			},
		},
		"shipping_details": map[string]any{
			"address": map[string]any{
				"city":    "Cairo",
				"country": "EG",
			},
		},
		"metadata": map[string]any{
			"orderId": "o1",
			"userId":  "u1",
		},
	}
}
