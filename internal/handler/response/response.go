package response

import (
	"errors"
	"net/http"

	"order-workflow/internal/apperror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorBody はエラーレスポンスの共通形式
type ErrorBody struct {
	Error   string            `json:"error"`
	Code    apperror.Kind     `json:"code"`
	Details []apperror.Detail `json:"details,omitempty"`
}

const internalMessage = "Error interno del servidor"

// Error はエラーを種別に応じたステータスで返す
func Error(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		// 内部エラーの詳細はログにのみ残す
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorBody{Error: internalMessage, Code: apperror.KindServer})
		return
	}
	if appErr.Kind == apperror.KindServer {
		_ = c.Error(err)
	}
	c.JSON(appErr.HTTPStatus(), ErrorBody{Error: appErr.Message, Code: appErr.Kind, Details: appErr.Details})
}

// BindError は入力の解析・検証エラーを400で返す
func BindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]apperror.Detail, 0, len(validationErrs))
		for _, fieldErr := range validationErrs {
			details = append(details, apperror.Detail{
				Path: fieldErr.Field(),
				Info: validationMessage(fieldErr),
			})
		}
		Error(c, apperror.Validation("Datos no válidos").WithDetails(details...))
		return
	}
	Error(c, apperror.Validation("Solicitud mal formada").WithDetails(apperror.Detail{Path: "body", Info: err.Error()}))
}

// Success は200でデータを返す
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created は201でデータを返す
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Message returns a {"message": ...} body.
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fieldErr.Field() + " is required"
	case "email":
		return fieldErr.Field() + " must be a valid email address"
	case "min":
		return fieldErr.Field() + " must be at least " + fieldErr.Param()
	case "max":
		return fieldErr.Field() + " must be at most " + fieldErr.Param()
	case "oneof":
		return fieldErr.Field() + " must be one of " + fieldErr.Param()
	default:
		return fieldErr.Field() + " is invalid"
	}
}
