// Package validation содержит функции валидации входных данных.
package validation

import (
	"regexp"
	"strings"

	"github.com/zonabotin/storefront-system/internal/model"
)

// Error описывает ошибку валидации пользовательского ввода. Сообщение
// показывается пользователю, операция прерывается без побочных эффектов.
type Error struct {
	Field   string
	Message string
}

// Error возвращает текст ошибки валидации.
func (e *Error) Error() string {
	return e.Message
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail проверяет адрес электронной почты по регулярному выражению.
// Используется только в формах регистрации и входа.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// ValidateBuyer проверяет, что все обязательные поля покупателя заполнены.
// Формат телефона и DNI не проверяется, только наличие.
func ValidateBuyer(b model.Buyer) error {
	checks := []struct {
		field   string
		value   string
		message string
	}{
		{"name", b.Name, "buyer name is required"},
		{"surname", b.Surname, "buyer surname is required"},
		{"email", b.Email, "buyer email is required"},
		{"phone", b.Phone, "buyer phone is required"},
		{"dni", b.DNI, "buyer DNI is required"},
		{"address", b.Address, "shipping address is required"},
		{"city", b.City, "shipping city is required"},
		{"province", b.Province, "shipping province is required"},
		{"postalCode", b.PostalCode, "shipping postal code is required"},
	}

	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			return &Error{Field: c.field, Message: c.message}
		}
	}

	return nil
}

// IsKnownBrand проверяет, что бренд входит в список брендов каталога.
func IsKnownBrand(brand string) bool {
	for _, b := range model.Brands {
		if b == brand {
			return true
		}
	}
	return false
}
