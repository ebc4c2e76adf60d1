// Package validation — декларативные наборы правил для входных данных.
// Правила прогоняются до обращения к движкам и хранилищу; все нарушения
// агрегируются в одно сообщение.
package validation

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ожидаемые шаблоны полей заказа: имя — только буквы и пробелы,
// телефон — цифры и общепринятая пунктуация.
var (
	NamePattern  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	PhonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)
)

// Rule проверяет одно условие и возвращает ошибку при нарушении.
type Rule func() error

// Error агрегирует все нарушения одного запроса.
type Error struct {
	Violations []error
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, ", ")
}

// Check прогоняет правила по порядку и собирает все нарушения.
// Возвращает nil, если нарушений нет.
func Check(rules ...Rule) error {
	var violations []error
	for _, rule := range rules {
		if err := rule(); err != nil {
			violations = append(violations, err)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &Error{Violations: violations}
}

// IsValidationError сообщает, является ли ошибка агрегатом нарушений.
func IsValidationError(err error) bool {
	_, ok := err.(*Error)
	return ok
}

// NonEmpty требует непустую строку (пробелы не считаются).
func NonEmpty(violation error, value string) Rule {
	return func() error {
		if strings.TrimSpace(value) == "" {
			return violation
		}
		return nil
	}
}

// Matches требует соответствия непустой строки шаблону.
func Matches(violation error, value string, pattern *regexp.Regexp) Rule {
	return func() error {
		if !pattern.MatchString(value) {
			return violation
		}
		return nil
	}
}

// Positive требует строго положительное число.
func Positive(violation error, value int64) Rule {
	return func() error {
		if value <= 0 {
			return violation
		}
		return nil
	}
}

// NonNegativeInt требует неотрицательное целое.
func NonNegativeInt(violation error, value int64) Rule {
	return func() error {
		if value < 0 {
			return violation
		}
		return nil
	}
}

// NonNegativeFloat требует неотрицательное число.
func NonNegativeFloat(violation error, value float64) Rule {
	return func() error {
		if value < 0 {
			return violation
		}
		return nil
	}
}

// ObjectIDHex требует синтаксически корректный идентификатор хранилища.
func ObjectIDHex(violation error, value string) Rule {
	return func() error {
		if !primitive.IsValidObjectID(value) {
			return violation
		}
		return nil
	}
}

// OneOf требует, чтобы значение входило в список допустимых (пустая строка
// допускается — отсутствие параметра не является нарушением).
func OneOf(violation error, value string, allowed ...string) Rule {
	return func() error {
		if value == "" {
			return nil
		}
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return violation
	}
}
