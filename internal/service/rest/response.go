package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/validation"
)

// Статусы конверта ответа.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// Response — единый конверт всех ответов API.
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}) Response {
	return Response{Status: statusSuccess, Data: data}
}

func failResponse(message string, data interface{}) Response {
	return Response{Status: statusFail, Message: message, Data: data}
}

func errorResponse() Response {
	return Response{Status: statusError, Message: "internal server error"}
}

// mapError переводит доменную ошибку в HTTP-статус и конверт. Детали
// внутренних сбоев не утекают наружу: клиент получает общий текст,
// полная ошибка остаётся в логе.
func mapError(logger *log.Entry, err error) (int, Response) {
	switch {
	case validation.IsValidationError(err):
		return http.StatusBadRequest, failResponse(err.Error(), nil)
	case domain.IsNotFound(err):
		return http.StatusNotFound, failResponse(err.Error(), nil)
	case domain.IsConflict(err):
		var data interface{}
		var conflict *domain.InsufficientSpacesError
		if errors.As(err, &conflict) {
			data = gin.H{
				"lesson":    conflict.LessonID,
				"topic":     conflict.Topic,
				"available": conflict.Available,
				"requested": conflict.Requested,
			}
		}
		return http.StatusConflict, failResponse(err.Error(), data)
	case errors.Is(err, domain.ErrUpdateEmpty):
		return http.StatusBadRequest, failResponse(err.Error(), nil)
	default:
		logger.WithError(err).Error("request failed")
		return http.StatusInternalServerError, errorResponse()
	}
}

func writeError(c *gin.Context, logger *log.Entry, err error) {
	status, body := mapError(logger, err)
	c.JSON(status, body)
}
