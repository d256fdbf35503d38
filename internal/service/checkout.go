package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zonabotin/storefront-system/internal/cart"
	"github.com/zonabotin/storefront-system/internal/mercadopago"
	"github.com/zonabotin/storefront-system/internal/model"
	"github.com/zonabotin/storefront-system/internal/repository"
	"github.com/zonabotin/storefront-system/internal/validation"
)

// CheckoutResult — итог оформления заказа: идентификатор заказа и URL
// платёжной страницы для перенаправления покупателя.
type CheckoutResult struct {
	OrderID   string `json:"orderId"`
	InitPoint string `json:"initPoint"`
}

// Checkout оформляет заказ: проверяет корзину и данные покупателя, создаёт
// pending-заказ, запрашивает платёжную ссылку и возвращает адрес платёжной
// страницы. Операция идемпотентна по idempotencyKey: повтор с тем же ключом
// возвращает уже созданный заказ и его платёжную ссылку вместо дубликата.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, buyer model.Buyer, note, idempotencyKey string) (*CheckoutResult, error) {
	if c == nil || len(c.Items) == 0 {
		return nil, &validation.Error{Field: "cart", Message: "cart is empty"}
	}
	if err := validation.ValidateBuyer(buyer); err != nil {
		return nil, err
	}
	if idempotencyKey == "" {
		return nil, &validation.Error{Field: "idempotencyKey", Message: "idempotency key is required"}
	}

	order, err := s.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey)
	switch {
	case err == nil:
		// Повтор оформления: ссылка уже есть — возвращаем её, иначе
		// достраиваем незавершённый заказ.
		if order.InitPoint != "" {
			return &CheckoutResult{OrderID: order.ID, InitPoint: order.InitPoint}, nil
		}
	case errors.Is(err, repository.ErrOrderNotFound):
		order = &model.Order{
			Buyer:          buyer,
			Note:           note,
			Items:          c.OrderItems(),
			Total:          c.Total(),
			Status:         model.OrderStatusPending,
			IdempotencyKey: idempotencyKey,
			ReadByAdmin:    false,
		}

		id, err := s.repo.CreateOrder(ctx, order)
		switch {
		case err == nil:
			order.ID = id
		case errors.Is(err, repository.ErrOrderExists):
			// Гонка двух оформлений с одним ключом: параллельный запрос
			// вставил заказ между проверкой и вставкой. Возвращаем его.
			order, err = s.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey)
			if err != nil {
				return nil, err
			}
			if order.InitPoint != "" {
				return &CheckoutResult{OrderID: order.ID, InitPoint: order.InitPoint}, nil
			}
		default:
			return nil, err
		}
	default:
		return nil, err
	}

	pref, err := s.gateway.CreatePreference(ctx, s.buildPreference(order))
	if err != nil {
		// Заказ остаётся в pending без платёжной ссылки: повтор с тем же
		// ключом достроит его, иначе его отменит фоновая уборка.
		return nil, fmt.Errorf("create payment preference: %w", err)
	}

	if err := s.repo.SetOrderPreference(ctx, order.ID, pref.ID, pref.InitPoint); err != nil {
		return nil, err
	}

	return &CheckoutResult{OrderID: order.ID, InitPoint: pref.InitPoint}, nil
}

func (s *Service) buildPreference(order *model.Order) mercadopago.PreferenceRequest {
	items := make([]mercadopago.PreferenceItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, mercadopago.PreferenceItem{
			Title:      fmt.Sprintf("%s - Talle %s", item.Product.Title, item.Size),
			Quantity:   item.Quantity,
			UnitPrice:  float64(item.Product.Price),
			CurrencyID: "ARS",
		})
	}

	return mercadopago.PreferenceRequest{
		Items: items,
		Payer: mercadopago.Payer{
			Name:    order.Buyer.Name,
			Surname: order.Buyer.Surname,
			Email:   order.Buyer.Email,
			Phone:   mercadopago.Phone{Number: order.Buyer.Phone},
			Identification: mercadopago.Identification{
				Type:   "DNI",
				Number: order.Buyer.DNI,
			},
			Address: mercadopago.PayerAddress{
				StreetName: order.Buyer.Address,
				ZipCode:    order.Buyer.PostalCode,
			},
		},
		BackURLs: mercadopago.BackURLs{
			Success: fmt.Sprintf("%s/checkout/success?order=%s", s.baseURL, order.ID),
			Failure: fmt.Sprintf("%s/checkout/failure?order=%s", s.baseURL, order.ID),
			Pending: fmt.Sprintf("%s/checkout/pending?order=%s", s.baseURL, order.ID),
		},
		AutoReturn:          "approved",
		ExternalReference:   order.ID,
		NotificationURL:     s.baseURL + "/api/webhook",
		StatementDescriptor: "ZONA BOTIN",
	}
}

// ProcessPaymentNotification обрабатывает уведомление платёжного шлюза.
// Статус из тела уведомления не используется: платёж перечитывается из
// шлюза по приватному токену. Обработка идемпотентна — повторная доставка
// переписывает те же значения.
func (s *Service) ProcessPaymentNotification(ctx context.Context, eventType, paymentID string) error {
	if eventType != "payment" || paymentID == "" {
		return nil
	}

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}

	if payment.ExternalReference == "" {
		return nil
	}

	status, ok := orderStatusFromPayment(payment.Status)
	if !ok {
		return nil
	}

	if err := s.repo.UpdateOrderPayment(ctx, payment.ExternalReference, status, paymentID); err != nil {
		return fmt.Errorf("update order %s: %w", payment.ExternalReference, err)
	}

	return nil
}

// orderStatusFromPayment переводит статус платежа шлюза в статус заказа.
// Неизвестные статусы заказ не меняют.
func orderStatusFromPayment(paymentStatus string) (model.OrderStatus, bool) {
	switch paymentStatus {
	case "approved":
		return model.OrderStatusApproved, true
	case "pending", "in_process", "authorized":
		return model.OrderStatusPending, true
	case "rejected", "cancelled":
		return model.OrderStatusCancelled, true
	}
	return "", false
}

// StartOrphanSweep отменяет заказы-сироты: pending-заказы, для которых
// платёжная ссылка так и не была создана. Блокируется до отмены контекста.
func (s *Service) StartOrphanSweep(ctx context.Context) {
	ticker := time.NewTicker(orphanSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.repo.CancelStalePendingOrders(ctx, time.Now().Add(-orphanSweepCutoff))
		}
	}
}
