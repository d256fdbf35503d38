package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/zonabotin/storefront-system/internal/middleware"
)

func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func pathKey(r *http.Request) string {
	return chi.URLParam(r, "key")
}

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Post("/webhook", h.Webhook)

		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpdateProfile)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items/{key}", h.SetCartItemQuantity)
			r.Delete("/items/{key}", h.RemoveCartItem)
		})

		r.Post("/checkout", h.Checkout)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.AdminOnly)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.AdminListOrders)
				r.Get("/{id}", h.AdminGetOrder)
				r.Patch("/{id}/status", h.AdminUpdateOrderStatus)
				r.Post("/{id}/read", h.AdminMarkOrderRead)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.AdminNotifications)
				r.Post("/read", h.AdminNotificationsRead)
				r.Get("/stream", h.AdminNotificationsStream)
			})

			r.Route("/products", func(r chi.Router) {
				r.Post("/", h.AdminCreateProduct)
				r.Put("/{id}", h.AdminUpdateProduct)
				r.Delete("/{id}", h.AdminDeleteProduct)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
