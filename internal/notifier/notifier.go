// Package notifier реализует ленту уведомлений администратора о новых
// заказах: периодический опрос последних заказов, вычисление разницы со
// множеством уже увиденных и рассылка событий подписчикам.
package notifier

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zonabotin/storefront-system/internal/model"
)

// Параметры опроса ленты заказов.
const (
	pollInterval = 5 * time.Second
	recentLimit  = 20
)

// OrderLister возвращает последние заказы для ленты.
type OrderLister interface {
	RecentOrders(ctx context.Context, n int) ([]model.Order, error)
}

// Event — уведомление о новом заказе.
type Event struct {
	OrderID   string    `json:"orderId"`
	BuyerName string    `json:"buyerName"`
	Total     int64     `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// Состояния ленты. Первый успешный снимок только заполняет множество
// увиденных заказов: существующие на момент запуска заказы уведомлений
// не порождают.
type state int

const (
	stateUninitialized state = iota
	statePrimed
)

// Notifier опрашивает последние заказы и рассылает события о новых
// pending-заказах всем подписчикам.
type Notifier struct {
	lister OrderLister
	logger *zap.Logger

	mu    sync.Mutex
	state state
	seen  map[string]struct{}
	subs  map[chan Event]struct{}
}

// New создаёт ленту уведомлений поверх указанного источника заказов.
func New(lister OrderLister, logger *zap.Logger) *Notifier {
	return &Notifier{
		lister: lister,
		logger: logger,
		seen:   make(map[string]struct{}),
		subs:   make(map[chan Event]struct{}),
	}
}

// Run опрашивает источник заказов до отмены контекста.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orders, err := n.lister.RecentOrders(ctx, recentLimit)
			if err != nil {
				n.logger.Warn("notifier poll failed", zap.Error(err))
				continue
			}
			for _, e := range n.observe(orders) {
				n.Publish(e)
			}
		}
	}
}

// observe обновляет множество увиденных заказов и возвращает события для
// рассылки. Первый снимок только переводит ленту в рабочее состояние.
func (n *Notifier) observe(orders []model.Order) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == stateUninitialized {
		for _, o := range orders {
			n.seen[o.ID] = struct{}{}
		}
		n.state = statePrimed
		return nil
	}

	var events []Event
	for _, o := range orders {
		if _, ok := n.seen[o.ID]; ok {
			continue
		}
		n.seen[o.ID] = struct{}{}
		if o.Status != model.OrderStatusPending {
			continue
		}
		events = append(events, Event{
			OrderID:   o.ID,
			BuyerName: o.Buyer.FullName(),
			Total:     o.Total,
			CreatedAt: o.CreatedAt,
		})
	}
	return events
}

// Subscribe регистрирует подписчика и возвращает канал событий вместе с
// функцией отписки. Медленный подписчик события теряет, а не блокирует
// рассылку.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

// Publish рассылает событие всем подписчикам.
func (n *Notifier) Publish(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
