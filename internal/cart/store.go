package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cart:"

// Store сохраняет корзины сессий в Redis. Корзина целиком сериализуется
// при каждой мутации и восстанавливается при загрузке; срок жизни не
// ограничен.
type Store struct {
	rdb *redis.Client
}

// NewStore создаёт хранилище корзин поверх Redis по указанному адресу.
func NewStore(addr string) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Store{rdb: rdb}
}

// Load возвращает корзину сессии. Для неизвестной сессии возвращается
// пустая корзина.
func (s *Store) Load(ctx context.Context, sessionID string) (*Cart, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Cart{}, nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	return &c, nil
}

// Save сохраняет корзину сессии целиком.
func (s *Store) Save(ctx context.Context, sessionID string, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := s.rdb.Set(ctx, keyPrefix+sessionID, data, 0).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}

	return nil
}

// Delete удаляет корзину сессии. Вызывается после успешного оформления
// заказа или по явной очистке.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (s *Store) Close() error {
	return s.rdb.Close()
}
