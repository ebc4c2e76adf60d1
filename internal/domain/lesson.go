package domain

// Lesson описывает покупаемый слот занятия в каталоге.
type Lesson struct {
	// ID — идентификатор записи в хранилище (24-символьный hex ObjectID).
	ID string
	// Topic — предмет занятия.
	Topic string
	// Location — место проведения.
	Location string
	// Price — цена за одно место, неотрицательная.
	Price float64
	// Spaces — живой счётчик оставшихся мест. Инвариант spaces >= 0
	// обеспечивается только условным декрементом в репозитории.
	Spaces int64
	// Description — необязательное описание занятия.
	Description string
	// Image — ссылка на изображение (имя файла или путь).
	Image string
}

// Available сообщает, остались ли свободные места.
func (l *Lesson) Available() bool {
	return l.Spaces > 0
}

// ValidateInvariants проверяет базовые инварианты занятия и возвращает список замечаний.
func (l *Lesson) ValidateInvariants() []error {
	var errs []error

	if l.Topic == "" {
		errs = append(errs, ErrTopicRequired)
	}
	if l.Location == "" {
		errs = append(errs, ErrLocationRequired)
	}
	if l.Price < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if l.Spaces < 0 {
		errs = append(errs, ErrSpacesNegative)
	}

	return errs
}

// LessonUpdate перечисляет административно изменяемые поля. nil означает
// «поле не трогать»: репозиторий переводит заполненные поля в один write.
type LessonUpdate struct {
	Topic       *string
	Location    *string
	Price       *float64
	Spaces      *int64
	Description *string
	Image       *string
}

// Empty возвращает true, если обновление не содержит ни одного поля.
func (u LessonUpdate) Empty() bool {
	return u.Topic == nil && u.Location == nil && u.Price == nil &&
		u.Spaces == nil && u.Description == nil && u.Image == nil
}

// Поля сортировки каталога.
const (
	LessonSortTopic    = "topic"
	LessonSortLocation = "location"
	LessonSortPrice    = "price"
	LessonSortSpaces   = "spaces"
)

// LessonFilter описывает условия выборки занятий. Нулевые значения означают
// отсутствие условия; числовые границы заданы указателями, чтобы отличать
// «не задано» от нуля.
type LessonFilter struct {
	Topic    string
	Location string
	MinPrice *float64
	MaxPrice *float64
	// MinSpaces сопоставляется и с текущим, и с legacy-именем поля ёмкости.
	MinSpaces *int64
	// Search — регистронезависимый поиск подстроки по topic, location и description.
	Search string
}

// LessonQuery объединяет фильтр, сортировку и пагинацию для выборки каталога.
type LessonQuery struct {
	Filter LessonFilter
	SortBy string
	// Desc задаёт направление сортировки; по умолчанию возрастание.
	Desc bool
	Skip int64
	// Limit <= 0 означает выборку без ограничения.
	Limit int64
}
