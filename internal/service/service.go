// Package service реализует бизнес-логику магазина Zona Botín.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zonabotin/storefront-system/internal/catalog"
	"github.com/zonabotin/storefront-system/internal/cloudinary"
	"github.com/zonabotin/storefront-system/internal/mercadopago"
	"github.com/zonabotin/storefront-system/internal/model"
	"github.com/zonabotin/storefront-system/internal/repository"
	"github.com/zonabotin/storefront-system/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, u *model.User) error
	CreateProduct(ctx context.Context, p *model.Product) (string, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateOrder(ctx context.Context, o *model.Order) (string, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*model.Order, error)
	ListOrders(ctx context.Context, limit int) ([]model.Order, error)
	SetOrderPreference(ctx context.Context, id, preferenceID, initPoint string) error
	UpdateOrderPayment(ctx context.Context, id string, status model.OrderStatus, paymentID string) error
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error
	MarkOrderRead(ctx context.Context, id string) error
	MarkOrdersRead(ctx context.Context, ids []string) error
	CancelStalePendingOrders(ctx context.Context, cutoff time.Time) (int64, error)
}

// PaymentGateway описывает контракт платёжного шлюза.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, pref mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// ImageUploader описывает контракт хранилища изображений.
type ImageUploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (*cloudinary.UploadResult, error)
}

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Параметры фонового процесса отмены заказов-сирот.
const (
	orphanSweepInterval = 10 * time.Minute
	orphanSweepCutoff   = 24 * time.Hour
)

// Service содержит бизнес-логику магазина.
type Service struct {
	repo       Repository
	gateway    PaymentGateway
	uploader   ImageUploader
	baseURL    string
	adminEmail string
}

// NewService создаёт сервис с указанным репозиторием, платёжным шлюзом и
// хранилищем изображений. baseURL используется для адресов возврата после
// оплаты, adminEmail — для вычисления административных прав при входе.
func NewService(repo Repository, gateway PaymentGateway, uploader ImageUploader, baseURL, adminEmail string) *Service {
	return &Service{
		repo:       repo,
		gateway:    gateway,
		uploader:   uploader,
		baseURL:    baseURL,
		adminEmail: adminEmail,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterRequest — данные регистрации: учётные данные и профиль доставки
// для предзаполнения формы оформления заказа.
type RegisterRequest struct {
	Email      string
	Password   string
	Name       string
	Surname    string
	Phone      string
	DNI        string
	Address    string
	City       string
	Province   string
	PostalCode string
}

// RegisterUser регистрирует нового пользователя. Возвращает пользователя и
// признак административных прав, вычисленный единожды на сессию.
func (s *Service) RegisterUser(ctx context.Context, req RegisterRequest) (*model.User, bool, error) {
	if !validation.IsValidEmail(req.Email) {
		return nil, false, &validation.Error{Field: "email", Message: "invalid email address"}
	}
	if req.Password == "" {
		return nil, false, &validation.Error{Field: "password", Message: "password is required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	role := model.RoleUser
	if s.adminEmail != "" && req.Email == s.adminEmail {
		role = model.RoleAdmin
	}

	u := &model.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Name:         req.Name,
		Surname:      req.Surname,
		Phone:        req.Phone,
		DNI:          req.DNI,
		Address:      req.Address,
		City:         req.City,
		Province:     req.Province,
		PostalCode:   req.PostalCode,
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, false, err
	}
	u.ID = id

	return u, s.isAdmin(u), nil
}

// AuthenticateUser проверяет email и пароль. Возвращает пользователя и
// признак административных прав.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, bool, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, ErrInvalidCredentials
		}
		return nil, false, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, false, ErrInvalidCredentials
	}

	return u, s.isAdmin(u), nil
}

// isAdmin объединяет два источника административных прав: роль в хранилище
// и настроенный email администратора. Вычисляется один раз при входе,
// дальше признак передаётся как capability в подписанном cookie.
func (s *Service) isAdmin(u *model.User) bool {
	return u.Role == model.RoleAdmin || (s.adminEmail != "" && u.Email == s.adminEmail)
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile обновляет профиль и данные доставки пользователя.
func (s *Service) UpdateProfile(ctx context.Context, u *model.User) error {
	return s.repo.UpdateUserProfile(ctx, u)
}

// ListCatalog возвращает каталог с применёнными фильтрами и сортировкой.
func (s *Service) ListCatalog(ctx context.Context, search, brand string, sort catalog.SortMode) ([]model.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Sort(catalog.Filter(products, search, brand), sort), nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}
