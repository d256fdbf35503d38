// Package model содержит доменные сущности магазина Zona Botín.
package model

import "time"

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Email        string
	PasswordHash []byte
	Role         string
	Name         string
	Surname      string
	Phone        string
	DNI          string
	Address      string
	City         string
	Province     string
	PostalCode   string
	CreatedAt    time.Time
}

// Роли пользователей. Роль admin назначается при регистрации,
// если email совпадает с настроенным адресом администратора.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

// Статусы заказа. Переходы pending → approved/cancelled задаёт платёжный
// шлюз, shipped и delivered администратор выставляет вручную.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

// Valid сообщает, входит ли статус в перечень допустимых значений.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusCancelled,
		OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// Brands — список брендов каталога. Товар обязан принадлежать одному из них.
var Brands = []string{"Nike", "Adidas", "Puma", "New Balance", "Mizuno", "Umbro", "Otra"}

// ProductImage описывает загруженное изображение товара: публичный URL
// и идентификатор в хранилище изображений.
type ProductImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Product описывает товар каталога.
type Product struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Brand           string         `json:"brand"`
	Category        string         `json:"category"`
	Price           int64          `json:"price"`
	OriginalPrice   int64          `json:"originalPrice,omitempty"`
	DiscountPercent int            `json:"discountPercent,omitempty"`
	Quantity        int            `json:"quantity"`
	Sizes           []string       `json:"sizes"`
	Images          []ProductImage `json:"images"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// OrderItem — позиция заказа. Product хранит снимок товара на момент
// оформления: последующие правки каталога заказ не затрагивают.
type OrderItem struct {
	Product  Product `json:"product"`
	Size     string  `json:"size"`
	Quantity int     `json:"quantity"`
}

// Buyer содержит контактные данные покупателя и адрес доставки.
type Buyer struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	DNI        string `json:"dni"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
}

// FullName возвращает имя покупателя для списков заказов и уведомлений.
func (b Buyer) FullName() string {
	return b.Name + " " + b.Surname
}

// Order описывает заказ покупателя.
type Order struct {
	ID             string      `json:"id"`
	Buyer          Buyer       `json:"buyer"`
	Note           string      `json:"note,omitempty"`
	Items          []OrderItem `json:"items"`
	Total          int64       `json:"total"`
	Status         OrderStatus `json:"status"`
	PaymentID      string      `json:"paymentId,omitempty"`
	PreferenceID   string      `json:"preferenceId,omitempty"`
	InitPoint      string      `json:"-"`
	IdempotencyKey string      `json:"-"`
	ReadByAdmin    bool        `json:"readByAdmin"`
	CreatedAt      time.Time   `json:"createdAt"`
}
