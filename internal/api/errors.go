package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nemi/internal/errs"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Коды ошибок, которыми будем пользоваться (поверх видов из errs)
const (
	ErrRequired     = "required"
	ErrTypeMismatch = "type_mismatch"
	ErrExists       = "already_exists"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// statusForKind — единственное место, где таксономия ошибок конвейера
// превращается в HTTP-статусы.
func statusForKind(k errs.Kind) int {
	switch k {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindAccessDenied:
		return http.StatusForbidden
	case errs.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	k := errs.KindOf(err)
	c.JSON(statusForKind(k), gin.H{
		"errors": []FieldError{{Code: string(k), Message: err.Error()}},
	})
}
