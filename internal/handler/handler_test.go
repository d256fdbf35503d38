package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zonabotin/storefront-system/internal/cart"
	"github.com/zonabotin/storefront-system/internal/catalog"
	"github.com/zonabotin/storefront-system/internal/mercadopago"
	"github.com/zonabotin/storefront-system/internal/middleware"
	"github.com/zonabotin/storefront-system/internal/model"
	"github.com/zonabotin/storefront-system/internal/notifier"
	"github.com/zonabotin/storefront-system/internal/repository"
	"github.com/zonabotin/storefront-system/internal/service"
	"github.com/zonabotin/storefront-system/internal/validation"
)

type stubService struct {
	registerUser  *model.User
	registerAdmin bool
	registerErr   error

	authUser  *model.User
	authAdmin bool
	authErr   error

	profile    *model.User
	profileErr error

	products    []model.Product
	productsErr error

	product    *model.Product
	productErr error

	checkoutRes *service.CheckoutResult
	checkoutErr error

	notificationErr error
	notifications   []string

	orders    []model.Order
	ordersErr error

	order    *model.Order
	orderErr error

	statusErr error

	saveRes *service.SaveProductResult
	saveErr error
}

func (s *stubService) RegisterUser(ctx context.Context, req service.RegisterRequest) (*model.User, bool, error) {
	return s.registerUser, s.registerAdmin, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (*model.User, bool, error) {
	return s.authUser, s.authAdmin, s.authErr
}

func (s *stubService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.profile, s.profileErr
}

func (s *stubService) UpdateProfile(ctx context.Context, u *model.User) error {
	return s.profileErr
}

func (s *stubService) ListCatalog(ctx context.Context, search, brand string, sort catalog.SortMode) ([]model.Product, error) {
	return s.products, s.productsErr
}

func (s *stubService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubService) Checkout(ctx context.Context, c *cart.Cart, buyer model.Buyer, note, idempotencyKey string) (*service.CheckoutResult, error) {
	return s.checkoutRes, s.checkoutErr
}

func (s *stubService) ProcessPaymentNotification(ctx context.Context, eventType, paymentID string) error {
	s.notifications = append(s.notifications, eventType+":"+paymentID)
	return s.notificationErr
}

func (s *stubService) ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error) {
	return s.orders, s.ordersErr
}

func (s *stubService) RecentOrders(ctx context.Context, n int) ([]model.Order, error) {
	return s.orders, s.ordersErr
}

func (s *stubService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	return s.statusErr
}

func (s *stubService) MarkOrderRead(ctx context.Context, id string) error { return nil }

func (s *stubService) MarkOrdersRead(ctx context.Context, ids []string) error { return nil }

func (s *stubService) SaveProduct(ctx context.Context, draft *model.Product, files []service.ImageFile, progress func(int)) (*service.SaveProductResult, error) {
	return s.saveRes, s.saveErr
}

func (s *stubService) DeleteProduct(ctx context.Context, id string) error { return nil }

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	auth := middleware.NewAuthMiddleware("test-secret")
	feed := notifier.New(nil, zap.NewNop())

	return NewHandler(svc, nil, feed, zap.NewNop(), auth)
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: 42, Email: "user@example.com"},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Email:    "user@example.com",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie not set")
	}
}

func TestRegister_ConflictOnExistingEmail(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{Email: "user@example.com", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestRegister_ValidationErrorExposesMessage(t *testing.T) {
	svc := &stubService{registerErr: &validation.Error{Field: "email", Message: "invalid email address"}}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{Email: "not-an-email", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var resp errorResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "invalid email address" || resp.Field != "email" {
		t.Fatalf("body = %+v", resp)
	}
}

func TestLogin_UnauthorizedOnBadCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "user@example.com", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestLogin_RejectsMalformedEmail(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(loginRequest{Email: "not-an-email", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestListProducts_EmptyCatalogReturnsEmptyArray(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()

	h.ListProducts(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var products []model.Product
	if err := json.NewDecoder(res.Body).Decode(&products); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if products == nil {
		t.Fatalf("empty catalog must encode as [], not null")
	}
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name string
		svc  *stubService
		body string
	}{
		{"processing error", &stubService{notificationErr: errors.New("gateway down")}, `{"type":"payment","data":{"id":123}}`},
		{"malformed body", &stubService{}, `{not json`},
		{"other event type", &stubService{}, `{"type":"merchant_order","data":{"id":"1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc)

			req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Webhook(rec, req)

			res := rec.Result()
			if res.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
			}

			var resp map[string]any
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["received"] != true {
				t.Fatalf("body = %v, want received:true", resp)
			}
		})
	}
}

func TestWebhook_NotConfiguredAddsNote(t *testing.T) {
	svc := &stubService{notificationErr: mercadopago.ErrNotConfigured}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"type":"payment","data":{"id":1}}`))
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["received"] != true || resp["note"] == nil {
		t.Fatalf("body = %v, want received:true with note", resp)
	}
}

func TestWebhook_PassesNumericPaymentID(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"type":"payment","data":{"id":12345}}`))
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	if len(svc.notifications) != 1 || svc.notifications[0] != "payment:12345" {
		t.Fatalf("notifications = %v", svc.notifications)
	}
}

func TestAdminRoutes_ForbiddenWithoutAdminCapability(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	w := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(w, 5, false)
	cookie := w.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAdminRoutes_UnauthorizedWithoutCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminNotifications_CountsUnread(t *testing.T) {
	svc := &stubService{orders: []model.Order{
		{ID: "a", ReadByAdmin: false},
		{ID: "b", ReadByAdmin: true},
		{ID: "c", ReadByAdmin: false},
	}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/notifications/", nil)
	rec := httptest.NewRecorder()

	h.AdminNotifications(rec, req)

	var resp notificationsResponse
	if err := json.NewDecoder(rec.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2", resp.UnreadCount)
	}
	if len(resp.Orders) != 3 {
		t.Fatalf("orders = %d, want 3", len(resp.Orders))
	}
}

func TestAdminUpdateOrderStatus_BadRequestOnUnknownStatus(t *testing.T) {
	svc := &stubService{statusErr: &validation.Error{Field: "status", Message: `unknown order status "refunded"`}}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(updateStatusRequest{Status: "refunded"})
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/x/status", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.AdminUpdateOrderStatus(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAdminNotificationsStream_DeliversEventsThroughRouter(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	w := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(w, 1, true)
	cookie := w.Result().Cookies()[0]

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/notifications/stream", nil).WithContext(ctx)
	req.AddCookie(cookie)

	// Подписка происходит внутри обработчика, поэтому событие публикуется
	// периодически, пока соединение открыто.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.feed.Publish(notifier.Event{OrderID: "order-1", BuyerName: "Juan Pérez", Total: 31000})
			}
		}
	}()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	close(stop)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: order") || !strings.Contains(body, `"orderId":"order-1"`) {
		t.Fatalf("stream body = %q, want an order event", body)
	}
}
