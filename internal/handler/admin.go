package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/zonabotin/storefront-system/internal/model"
	"github.com/zonabotin/storefront-system/internal/service"
)

// Количество заказов в панели уведомлений.
const notificationLimit = 20

// Предел памяти на разбор multipart-формы товара; остальное уходит во
// временные файлы.
const maxProductFormMemory = 32 << 20

// AdminListOrders возвращает заказы с фильтром по статусу и текстовым
// поиском из query-параметров.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	orders, err := h.service.ListOrders(r.Context(), model.OrderStatus(q.Get("status")), q.Get("q"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// AdminGetOrder возвращает заказ по идентификатору.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), pathID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// AdminUpdateOrderStatus переводит заказ в указанный статус.
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateOrderStatus(r.Context(), pathID(r), model.OrderStatus(req.Status)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AdminMarkOrderRead отмечает заказ просмотренным.
func (h *Handler) AdminMarkOrderRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkOrderRead(r.Context(), pathID(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type notificationsResponse struct {
	Orders      []model.Order `json:"orders"`
	UnreadCount int           `json:"unreadCount"`
}

// AdminNotifications возвращает последние заказы и число непрочитанных.
func (h *Handler) AdminNotifications(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.RecentOrders(r.Context(), notificationLimit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	unread := 0
	for _, o := range orders {
		if !o.ReadByAdmin {
			unread++
		}
	}

	if orders == nil {
		orders = []model.Order{}
	}
	h.writeJSON(w, http.StatusOK, notificationsResponse{Orders: orders, UnreadCount: unread})
}

// AdminNotificationsRead отмечает прочитанными все непрочитанные заказы
// панели уведомлений. Вызывается при открытии панели.
func (h *Handler) AdminNotificationsRead(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.RecentOrders(r.Context(), notificationLimit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var ids []string
	for _, o := range orders {
		if !o.ReadByAdmin {
			ids = append(ids, o.ID)
		}
	}

	if err := h.service.MarkOrdersRead(r.Context(), ids); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"marked": len(ids)})
}

// AdminNotificationsStream отдаёт события о новых заказах по
// Server-Sent Events до закрытия соединения клиентом.
func (h *Handler) AdminNotificationsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.feed.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("encode notification error", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: order\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// parseProductForm читает multipart-форму товара: поле product содержит
// JSON-черновик (включая оставляемые изображения), файлы лежат под именем
// images.
func (h *Handler) parseProductForm(r *http.Request) (*model.Product, []service.ImageFile, error) {
	if err := r.ParseMultipartForm(maxProductFormMemory); err != nil {
		return nil, nil, fmt.Errorf("parse form: %w", err)
	}

	var draft model.Product
	if err := json.Unmarshal([]byte(r.FormValue("product")), &draft); err != nil {
		return nil, nil, fmt.Errorf("decode product: %w", err)
	}

	var files []service.ImageFile
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["images"] {
			f, err := fh.Open()
			if err != nil {
				return nil, nil, fmt.Errorf("open image %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("read image %s: %w", fh.Filename, err)
			}
			files = append(files, service.ImageFile{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	return &draft, files, nil
}

// AdminCreateProduct создаёт товар с загрузкой изображений.
func (h *Handler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	draft, files, err := h.parseProductForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	draft.ID = ""

	res, err := h.service.SaveProduct(r.Context(), draft, files, nil)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

// AdminUpdateProduct обновляет товар, объединяя оставленные изображения с
// вновь загруженными.
func (h *Handler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	draft, files, err := h.parseProductForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	draft.ID = pathID(r)

	res, err := h.service.SaveProduct(r.Context(), draft, files, nil)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// AdminDeleteProduct удаляет запись товара.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), pathID(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
