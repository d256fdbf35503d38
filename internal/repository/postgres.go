// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/zonabotin/storefront-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке зарегистрировать уже занятый email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при вставке заказа с уже занятым ключом
	// идемпотентности: параллельное оформление успело создать заказ первым.
	ErrOrderExists = errors.New("order already exists")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД
// через миграции. Первичное подключение повторяется с нарастающей паузой:
// при старте в контейнерном окружении БД может подниматься дольше сервиса.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, name, surname, phone, dni, address, city, province, postal_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		u.Email, u.PasswordHash, u.Role, u.Name, u.Surname, u.Phone, u.DNI,
		u.Address, u.City, u.Province, u.PostalCode,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, name, surname, phone, dni, address, city, province, postal_code, created_at
		 FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, name, surname, phone, dni, address, city, province, postal_code, created_at
		 FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Name, &u.Surname,
		&u.Phone, &u.DNI, &u.Address, &u.City, &u.Province, &u.PostalCode, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateUserProfile обновляет профиль и данные доставки пользователя.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, u *model.User) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET name = $2, surname = $3, phone = $4, dni = $5, address = $6, city = $7, province = $8, postal_code = $9
		 WHERE id = $1`,
		u.ID, u.Name, u.Surname, u.Phone, u.DNI, u.Address, u.City, u.Province, u.PostalCode,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

const productColumns = `id, title, description, brand, category, price, original_price, discount_percent, quantity, sizes, images, created_at, updated_at`

// CreateProduct сохраняет новый товар и возвращает его идентификатор.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (string, error) {
	id := uuid.NewString()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, title, description, brand, category, price, original_price, discount_percent, quantity, sizes, images)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, p.Title, p.Description, p.Brand, p.Category, p.Price, p.OriginalPrice,
		p.DiscountPercent, p.Quantity, p.Sizes, p.Images,
	)
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}

	return id, nil
}

// UpdateProduct обновляет существующий товар.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET title = $2, description = $3, brand = $4, category = $5, price = $6,
		     original_price = $7, discount_percent = $8, quantity = $9, sizes = $10,
		     images = $11, updated_at = NOW()
		 WHERE id = $1`,
		p.ID, p.Title, p.Description, p.Brand, p.Category, p.Price, p.OriginalPrice,
		p.DiscountPercent, p.Quantity, p.Sizes, p.Images,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct удаляет запись товара. Загруженные изображения из хранилища
// изображений не удаляются.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	var p model.Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Brand, &p.Category, &p.Price,
		&p.OriginalPrice, &p.DiscountPercent, &p.Quantity, &p.Sizes, &p.Images,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// ListProducts возвращает все товары по дате создания по убыванию.
// Каталог небольшой, пагинация не используется; фильтры применяются в памяти.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Brand, &p.Category, &p.Price,
			&p.OriginalPrice, &p.DiscountPercent, &p.Quantity, &p.Sizes, &p.Images,
			&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

const orderColumns = `id, buyer_name, buyer_surname, email, phone, dni, address, city, province, postal_code, note, items, total, status, payment_id, preference_id, init_point, idempotency_key, read_by_admin, created_at`

// CreateOrder сохраняет новый заказ и возвращает его идентификатор.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	id := uuid.NewString()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, buyer_name, buyer_surname, email, phone, dni, address, city, province, postal_code, note, items, total, status, idempotency_key, read_by_admin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, o.Buyer.Name, o.Buyer.Surname, o.Buyer.Email, o.Buyer.Phone, o.Buyer.DNI,
		o.Buyer.Address, o.Buyer.City, o.Buyer.Province, o.Buyer.PostalCode,
		o.Note, o.Items, o.Total, string(o.Status), o.IdempotencyKey, o.ReadByAdmin,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", fmt.Errorf("%w: idempotency key %s", ErrOrderExists, o.IdempotencyKey)
		}
		return "", fmt.Errorf("create order: %w", err)
	}

	return id, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrderByIdempotencyKey возвращает заказ по ключу идемпотентности.
// Используется для безопасного повтора оформления заказа.
func (r *PostgresRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status string
	err := row.Scan(&o.ID, &o.Buyer.Name, &o.Buyer.Surname, &o.Buyer.Email, &o.Buyer.Phone,
		&o.Buyer.DNI, &o.Buyer.Address, &o.Buyer.City, &o.Buyer.Province, &o.Buyer.PostalCode,
		&o.Note, &o.Items, &o.Total, &status, &o.PaymentID, &o.PreferenceID,
		&o.InitPoint, &o.IdempotencyKey, &o.ReadByAdmin, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// ListOrders возвращает заказы по дате создания по убыванию. Значение
// limit <= 0 снимает ограничение.
func (r *PostgresRepository) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// SetOrderPreference сохраняет данные платёжной ссылки заказа.
func (r *PostgresRepository) SetOrderPreference(ctx context.Context, id, preferenceID, initPoint string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET preference_id = $2, init_point = $3 WHERE id = $1`,
		id, preferenceID, initPoint,
	)
	if err != nil {
		return fmt.Errorf("set order preference: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderPayment обновляет статус заказа и идентификатор платежа по
// уведомлению шлюза. Повторная доставка того же уведомления переписывает
// те же значения.
func (r *PostgresRepository) UpdateOrderPayment(ctx context.Context, id string, status model.OrderStatus, paymentID string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, payment_id = $3 WHERE id = $1`,
		id, string(status), paymentID,
	)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderStatus устанавливает статус заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkOrderRead помечает заказ просмотренным администратором.
func (r *PostgresRepository) MarkOrderRead(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET read_by_admin = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark order read: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkOrdersRead помечает просмотренными все перечисленные заказы.
func (r *PostgresRepository) MarkOrdersRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET read_by_admin = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark orders read: %w", err)
	}
	return nil
}

// CancelStalePendingOrders отменяет заказы-сироты: pending-заказы старше
// cutoff, для которых так и не была создана платёжная ссылка.
func (r *PostgresRepository) CancelStalePendingOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $1
		 WHERE status = $2 AND preference_id = '' AND created_at < $3`,
		string(model.OrderStatusCancelled), string(model.OrderStatusPending), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel stale pending orders: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}
