package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zonabotin/storefront-system/internal/cart"
	"github.com/zonabotin/storefront-system/internal/model"
)

const cartSessionCookie = "cart_session"

// cartSession возвращает идентификатор корзины из cookie, создавая новый
// при первом обращении.
func (h *Handler) cartSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(cartSessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cartSessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// sessionCart — корзина вместе с идентификатором её сессии.
type sessionCart struct {
	sessionID string
	cart      *cart.Cart
}

func (h *Handler) loadCart(w http.ResponseWriter, r *http.Request) (*sessionCart, error) {
	sessionID := h.cartSession(w, r)
	c, err := h.carts.Load(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	return &sessionCart{sessionID: sessionID, cart: c}, nil
}

func (h *Handler) saveCart(r *http.Request, sc *sessionCart) error {
	return h.carts.Save(r.Context(), sc.sessionID, sc.cart)
}

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Total int64       `json:"total"`
	Count int         `json:"count"`
}

func (h *Handler) writeCart(w http.ResponseWriter, sc *sessionCart) {
	items := sc.cart.Items
	if items == nil {
		items = []cart.Item{}
	}
	h.writeJSON(w, http.StatusOK, cartResponse{
		Items: items,
		Total: sc.cart.Total(),
		Count: sc.cart.Count(),
	})
}

// GetCart возвращает содержимое корзины текущей сессии.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sc, err := h.loadCart(w, r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeCart(w, sc)
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// AddCartItem добавляет товар в корзину. Повторное добавление того же
// товара и размера увеличивает количество существующей позиции.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.ProductID == "" || req.Size == "" || req.Quantity < 1 {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "productId, size and a positive quantity are required"})
		return
	}

	product, err := h.service.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	sc, err := h.loadCart(w, r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	sc.cart.Add(*product, req.Quantity, req.Size)
	if err := h.saveCart(r, sc); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeCart(w, sc)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetCartItemQuantity меняет количество позиции. Количество меньше единицы
// удаляет позицию.
func (h *Handler) SetCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sc, err := h.loadCart(w, r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	sc.cart.SetQuantity(pathKey(r), req.Quantity)
	if err := h.saveCart(r, sc); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeCart(w, sc)
}

// RemoveCartItem удаляет позицию из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sc, err := h.loadCart(w, r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	sc.cart.Remove(pathKey(r))
	if err := h.saveCart(r, sc); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeCart(w, sc)
}

// ClearCart очищает корзину текущей сессии.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sc, err := h.loadCart(w, r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	sc.cart.Clear()
	if err := h.carts.Delete(r.Context(), sc.sessionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeCart(w, sc)
}

type checkoutRequest struct {
	Buyer model.Buyer `json:"buyer"`
	Note  string      `json:"note"`
}

// Checkout оформляет заказ из корзины текущей сессии и возвращает ссылку
// на платёжную страницу. Идемпотентность обеспечивается заголовком
// Idempotency-Key; при его отсутствии ключ генерируется на каждый запрос.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sc, err := h.loadCart(w, r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = uuid.NewString()
	}

	res, err := h.service.Checkout(r.Context(), sc.cart, req.Buyer, req.Note, key)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.carts.Delete(r.Context(), sc.sessionID); err != nil {
		// Заказ уже оформлен: неудачная очистка корзины не должна ломать ответ.
		h.logger.Warn("clear cart after checkout error", zap.Error(err), zap.String("orderID", res.OrderID))
	}

	h.writeJSON(w, http.StatusOK, res)
}
