// Package handler содержит HTTP-обработчики API магазина Zona Botín.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

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

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, req service.RegisterRequest) (*model.User, bool, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, bool, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, u *model.User) error
	ListCatalog(ctx context.Context, search, brand string, sort catalog.SortMode) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	Checkout(ctx context.Context, c *cart.Cart, buyer model.Buyer, note, idempotencyKey string) (*service.CheckoutResult, error)
	ProcessPaymentNotification(ctx context.Context, eventType, paymentID string) error
	ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error)
	RecentOrders(ctx context.Context, n int) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error
	MarkOrderRead(ctx context.Context, id string) error
	MarkOrdersRead(ctx context.Context, ids []string) error
	SaveProduct(ctx context.Context, draft *model.Product, files []service.ImageFile, progress func(int)) (*service.SaveProductResult, error)
	DeleteProduct(ctx context.Context, id string) error
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	carts          *cart.Store
	feed           *notifier.Notifier
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, carts *cart.Store, feed *notifier.Notifier, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		carts:          carts,
		feed:           feed,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeServiceError переводит ошибку бизнес-логики в HTTP-ответ. Сообщения
// ошибок валидации показываются пользователю, остальные ошибки наружу не
// раскрываются.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message, Field: vErr.Field})
	case errors.Is(err, service.ErrInvalidCredentials):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid email or password"})
	case errors.Is(err, repository.ErrUserExists):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: "email already registered"})
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, mercadopago.ErrNotConfigured):
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "payment gateway is not configured"})
	default:
		h.logger.Error("internal error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Phone      string `json:"phone"`
	DNI        string `json:"dni"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
}

type userResponse struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Admin      bool   `json:"admin"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Phone      string `json:"phone"`
	DNI        string `json:"dni"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
}

func toUserResponse(u *model.User, admin bool) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Admin:      admin,
		Name:       u.Name,
		Surname:    u.Surname,
		Phone:      u.Phone,
		DNI:        u.DNI,
		Address:    u.Address,
		City:       u.City,
		Province:   u.Province,
		PostalCode: u.PostalCode,
	}
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, admin, err := h.service.RegisterUser(r.Context(), service.RegisterRequest{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Surname:    req.Surname,
		Phone:      req.Phone,
		DNI:        req.DNI,
		Address:    req.Address,
		City:       req.City,
		Province:   req.Province,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID, admin)
	h.writeJSON(w, http.StatusOK, toUserResponse(u, admin))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidEmail(req.Email) || req.Password == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	u, admin, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID, admin)
	h.writeJSON(w, http.StatusOK, toUserResponse(u, admin))
}

// Logout сбрасывает cookie аутентификации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u, identity.Admin))
}

type profileRequest struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Phone      string `json:"phone"`
	DNI        string `json:"dni"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
}

// UpdateProfile обновляет данные доставки текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	u.Name = req.Name
	u.Surname = req.Surname
	u.Phone = req.Phone
	u.DNI = req.DNI
	u.Address = req.Address
	u.City = req.City
	u.Province = req.Province
	u.PostalCode = req.PostalCode

	if err := h.service.UpdateProfile(r.Context(), u); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u, identity.Admin))
}

// ListProducts возвращает каталог с фильтрами из query-параметров.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	products, err := h.service.ListCatalog(r.Context(), q.Get("q"), q.Get("brand"), catalog.SortMode(q.Get("sort")))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if products == nil {
		products = []model.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

// GetProduct возвращает карточку товара.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), pathID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

type webhookRequest struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// Webhook принимает уведомления платёжного шлюза. Ответ всегда 200:
// шлюз повторяет доставку при любом другом статусе, а статус платежа всё
// равно перечитывается из шлюза, а не берётся из тела.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("webhook body decode error", zap.Error(err))
		h.writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	err := h.service.ProcessPaymentNotification(r.Context(), req.Type, req.Data.ID.String())
	switch {
	case errors.Is(err, mercadopago.ErrNotConfigured):
		h.writeJSON(w, http.StatusOK, map[string]any{
			"received": true,
			"note":     "mercadopago token not configured",
		})
	case err != nil:
		h.logger.Error("webhook processing error", zap.Error(err), zap.String("paymentID", req.Data.ID.String()))
		h.writeJSON(w, http.StatusOK, map[string]any{"received": true})
	default:
		h.writeJSON(w, http.StatusOK, map[string]any{"received": true})
	}
}
