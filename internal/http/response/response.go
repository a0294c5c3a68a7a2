package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies a failure for HTTP translation.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindExternalService Kind = "external_service_error"
	KindInternal        Kind = "internal_error"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// APIError is a failure that already carries its client-facing message.
type APIError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *APIError) Error() string { return e.Detail }

func (e *APIError) Unwrap() error { return e.Err }

func Validation(detail string, err error) *APIError {
	return &APIError{Kind: KindValidation, Detail: detail, Err: err}
}

func NotFound(detail string) *APIError {
	return &APIError{Kind: KindNotFound, Detail: detail}
}

func External(detail string, err error) *APIError {
	return &APIError{Kind: KindExternalService, Detail: detail, Err: err}
}

// ErrorBody is the error envelope every failing endpoint returns.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// RespondError writes {"detail": ...} with the given status. A nil err
// reports "unknown error".
func RespondError(c *gin.Context, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Detail: msg})
}

// RespondAPIError writes err using its kind when it is an *APIError and as
// a 500 otherwise.
func RespondAPIError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		RespondError(c, apiErr.Kind.Status(), apiErr)
		return
	}
	RespondError(c, http.StatusInternalServerError, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
