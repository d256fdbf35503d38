package notifier

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zonabotin/storefront-system/internal/model"
)

func newTestNotifier() *Notifier {
	return New(nil, zap.NewNop())
}

func TestObserve_FirstSnapshotOnlyPrimes(t *testing.T) {
	n := newTestNotifier()

	events := n.observe([]model.Order{
		{ID: "a", Status: model.OrderStatusPending},
		{ID: "b", Status: model.OrderStatusApproved},
	})

	if len(events) != 0 {
		t.Fatalf("priming snapshot emitted %d events, want 0", len(events))
	}
	if n.state != statePrimed {
		t.Fatalf("state = %v, want primed", n.state)
	}
}

func TestObserve_NewPendingOrderEmitsOnce(t *testing.T) {
	n := newTestNotifier()
	n.observe([]model.Order{{ID: "a", Status: model.OrderStatusPending}})

	snapshot := []model.Order{
		{ID: "b", Status: model.OrderStatusPending, Total: 31000,
			Buyer: model.Buyer{Name: "Juan", Surname: "Pérez"}, CreatedAt: time.Now()},
		{ID: "a", Status: model.OrderStatusPending},
	}

	events := n.observe(snapshot)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].OrderID != "b" || events[0].BuyerName != "Juan Pérez" || events[0].Total != 31000 {
		t.Fatalf("event = %+v", events[0])
	}

	// Повторный снимок с теми же заказами не порождает дубликатов.
	if again := n.observe(snapshot); len(again) != 0 {
		t.Fatalf("repeated snapshot emitted %d events, want 0", len(again))
	}
}

func TestObserve_NonPendingOrdersAreSilent(t *testing.T) {
	n := newTestNotifier()
	n.observe(nil)

	events := n.observe([]model.Order{{ID: "c", Status: model.OrderStatusApproved}})
	if len(events) != 0 {
		t.Fatalf("non-pending order emitted %d events, want 0", len(events))
	}

	// Заказ уже учтён: переход в pending позже события не порождает.
	if again := n.observe([]model.Order{{ID: "c", Status: model.OrderStatusPending}}); len(again) != 0 {
		t.Fatalf("already-seen order emitted %d events, want 0", len(again))
	}
}

func TestSubscribe_ReceivesPublishedEvent(t *testing.T) {
	n := newTestNotifier()
	ch, cancel := n.Subscribe()
	defer cancel()

	n.Publish(Event{OrderID: "x"})

	select {
	case e := <-ch:
		if e.OrderID != "x" {
			t.Fatalf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event received")
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	n := newTestNotifier()
	ch, cancel := n.Subscribe()

	cancel()
	cancel() // повторная отписка безопасна

	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after cancel")
	}
}
