// Package cart реализует корзину покупателя и её хранение между запросами.
package cart

import (
	"github.com/zonabotin/storefront-system/internal/model"
)

// Item — позиция корзины. Product хранит снимок товара на момент добавления:
// последующие изменения цены в каталоге на корзину не влияют.
type Item struct {
	Key      string        `json:"key"`
	Product  model.Product `json:"product"`
	Size     string        `json:"size"`
	Quantity int           `json:"quantity"`
}

// Cart содержит позиции корзины одной сессии покупателя.
type Cart struct {
	Items []Item `json:"items"`
}

// ItemKey возвращает ключ позиции: один товар в двух размерах — две позиции.
func ItemKey(productID, size string) string {
	return productID + "-" + size
}

// Add добавляет товар в корзину. Если позиция с тем же товаром и размером
// уже есть, её количество увеличивается. Верхняя граница количества здесь
// не проверяется.
func (c *Cart) Add(product model.Product, quantity int, size string) {
	key := ItemKey(product.ID, size)

	for i := range c.Items {
		if c.Items[i].Key == key {
			c.Items[i].Quantity += quantity
			return
		}
	}

	c.Items = append(c.Items, Item{
		Key:      key,
		Product:  product,
		Size:     size,
		Quantity: quantity,
	})
}

// Remove удаляет позицию по ключу.
func (c *Cart) Remove(key string) {
	items := c.Items[:0]
	for _, item := range c.Items {
		if item.Key != key {
			items = append(items, item)
		}
	}
	c.Items = items
}

// SetQuantity устанавливает количество для позиции. Значение меньше единицы
// удаляет позицию.
func (c *Cart) SetQuantity(key string, quantity int) {
	if quantity < 1 {
		c.Remove(key)
		return
	}

	for i := range c.Items {
		if c.Items[i].Key == key {
			c.Items[i].Quantity = quantity
			return
		}
	}
}

// Clear опустошает корзину.
func (c *Cart) Clear() {
	c.Items = nil
}

// Total возвращает сумму корзины по зафиксированным ценам позиций.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Product.Price * int64(item.Quantity)
	}
	return total
}

// Count возвращает общее количество товаров в корзине.
func (c *Cart) Count() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// OrderItems переводит позиции корзины в позиции заказа. Снимки товаров
// переносятся как есть.
func (c *Cart) OrderItems() []model.OrderItem {
	items := make([]model.OrderItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, model.OrderItem{
			Product:  item.Product,
			Size:     item.Size,
			Quantity: item.Quantity,
		})
	}
	return items
}
