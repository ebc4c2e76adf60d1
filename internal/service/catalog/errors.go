package catalog

import "errors"

// Нарушения разбора query-параметров каталога.
var (
	errMinPriceInvalid  = errors.New("minPrice must be a non-negative number")
	errMaxPriceInvalid  = errors.New("maxPrice must be a non-negative number")
	errMinSpacesInvalid = errors.New("minSpaces must be a non-negative integer")
	errSortByInvalid    = errors.New("sortBy must be one of: topic, location, price, spaces")
	errOrderInvalid     = errors.New("order must be asc or desc")
	errPageInvalid      = errors.New("page must be a positive integer")
	errLimitInvalid     = errors.New("limit must be an integer between 1 and 100")
)
