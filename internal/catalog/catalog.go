// Package catalog реализует фильтрацию и сортировку списка товаров.
// Каталог загружается целиком, без пагинации; фильтры применяются в памяти.
package catalog

import (
	"sort"
	"strings"

	"github.com/zonabotin/storefront-system/internal/model"
)

// SortMode задаёт порядок вывода каталога.
type SortMode string

// Допустимые режимы сортировки. Неизвестное значение трактуется как
// SortNewest.
const (
	SortNewest    SortMode = "newest"
	SortPriceAsc  SortMode = "price-asc"
	SortPriceDesc SortMode = "price-desc"
)

// Filter возвращает товары, у которых название или бренд содержат search
// (без учёта регистра), и, если указан brand, с точным совпадением бренда.
func Filter(products []model.Product, search, brand string) []model.Product {
	search = strings.ToLower(strings.TrimSpace(search))

	filtered := make([]model.Product, 0, len(products))
	for _, p := range products {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Brand), search) {
			continue
		}
		if brand != "" && p.Brand != brand {
			continue
		}
		filtered = append(filtered, p)
	}

	return filtered
}

// Sort упорядочивает товары по выбранному режиму. SortNewest сохраняет
// исходный порядок (репозиторий отдаёт товары по дате создания по убыванию).
func Sort(products []model.Product, mode SortMode) []model.Product {
	switch mode {
	case SortPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case SortPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	}
	return products
}
