package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/zonabotin/storefront-system/internal/model"
	"github.com/zonabotin/storefront-system/internal/validation"
)

// ListOrders возвращает заказы, отсортированные по дате создания (новые
// первыми), с необязательным фильтром по статусу и текстовым поиском по
// имени, email и идентификатору заказа. Фильтрация выполняется в памяти:
// админ-панель работает с полным списком, как и публичный каталог.
func (s *Service) ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error) {
	orders, err := s.repo.ListOrders(ctx, 0)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	if status == "" && search == "" {
		return orders, nil
	}

	filtered := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if status != "" && o.Status != status {
			continue
		}
		if search != "" && !orderMatches(o, search) {
			continue
		}
		filtered = append(filtered, o)
	}
	return filtered, nil
}

func orderMatches(o model.Order, search string) bool {
	return strings.Contains(strings.ToLower(o.Buyer.FullName()), search) ||
		strings.Contains(strings.ToLower(o.Buyer.Email), search) ||
		strings.Contains(strings.ToLower(o.ID), search)
}

// RecentOrders возвращает последние n заказов для ленты уведомлений.
func (s *Service) RecentOrders(ctx context.Context, n int) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, n)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// UpdateOrderStatus переводит заказ в указанный статус. Допустим любой
// переход внутри перечисления статусов.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	if !status.Valid() {
		return &validation.Error{Field: "status", Message: fmt.Sprintf("unknown order status %q", status)}
	}
	return s.repo.UpdateOrderStatus(ctx, id, status)
}

// MarkOrderRead отмечает заказ просмотренным администратором.
func (s *Service) MarkOrderRead(ctx context.Context, id string) error {
	return s.repo.MarkOrderRead(ctx, id)
}

// MarkOrdersRead отмечает просмотренными все перечисленные заказы.
// Используется при открытии панели уведомлений.
func (s *Service) MarkOrdersRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.repo.MarkOrdersRead(ctx, ids)
}

// ImageFile — загружаемый файл изображения товара.
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageError — ошибка загрузки одного изображения. Частичный успех допустим:
// товар сохраняется с теми изображениями, которые загрузились.
type ImageError struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// SaveProductResult — итог сохранения товара вместе с ошибками отдельных
// изображений.
type SaveProductResult struct {
	Product     *model.Product `json:"product"`
	ImageErrors []ImageError   `json:"imageErrors,omitempty"`
}

// SaveProduct создаёт или обновляет товар. Валидация полей выполняется до
// любой загрузки изображений; загрузки идут последовательно, progress
// получает процент готовности после каждого файла. Сохранённые ранее
// изображения из draft объединяются с вновь загруженными.
func (s *Service) SaveProduct(ctx context.Context, draft *model.Product, files []ImageFile, progress func(percent int)) (*SaveProductResult, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, &validation.Error{Field: "title", Message: "title is required"}
	}
	if draft.Price <= 0 {
		return nil, &validation.Error{Field: "price", Message: "price must be greater than zero"}
	}
	if draft.Quantity < 0 {
		return nil, &validation.Error{Field: "quantity", Message: "quantity cannot be negative"}
	}
	if !validation.IsKnownBrand(draft.Brand) {
		return nil, &validation.Error{Field: "brand", Message: fmt.Sprintf("unknown brand %q", draft.Brand)}
	}
	if len(draft.Images)+len(files) == 0 {
		return nil, &validation.Error{Field: "images", Message: "at least one image is required"}
	}

	var imageErrors []ImageError
	for i, f := range files {
		res, err := s.uploader.Upload(ctx, f.Filename, f.ContentType, f.Data)
		if err != nil {
			imageErrors = append(imageErrors, ImageError{Filename: f.Filename, Message: err.Error()})
		} else {
			draft.Images = append(draft.Images, model.ProductImage{URL: res.URL, PublicID: res.PublicID})
		}
		if progress != nil {
			progress((i + 1) * 100 / len(files))
		}
	}

	if len(draft.Images) == 0 {
		return &SaveProductResult{ImageErrors: imageErrors},
			&validation.Error{Field: "images", Message: "all image uploads failed"}
	}

	if draft.ID == "" {
		id, err := s.repo.CreateProduct(ctx, draft)
		if err != nil {
			return nil, err
		}
		draft.ID = id
	} else {
		if err := s.repo.UpdateProduct(ctx, draft); err != nil {
			return nil, err
		}
	}

	return &SaveProductResult{Product: draft, ImageErrors: imageErrors}, nil
}

// DeleteProduct удаляет запись товара. Изображения в CDN не отзываются:
// у витрины нет подписанных учётных данных для их удаления.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.DeleteProduct(ctx, id)
}
