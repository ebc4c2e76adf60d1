package booking

import "errors"

// Нарушения разбора query-параметров выборки заказов.
var (
	errStatusInvalid        = errors.New("status must be confirmed or cancelled")
	errPaymentStatusInvalid = errors.New("paymentStatus must be pending or paid")
	errSortByInvalid        = errors.New("sortBy must be one of: createdAt, totalAmount, name")
	errOrderInvalid         = errors.New("order must be asc or desc")
	errPageInvalid          = errors.New("page must be a positive integer")
	errLimitInvalid         = errors.New("limit must be an integer between 1 and 100")

	errOrderIDInvalid = errors.New("invalid order ID")
)
