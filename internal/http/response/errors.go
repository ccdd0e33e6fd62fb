package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/gmr-archive-backend/internal/domain/aggregates"
	"github.com/yungbote/gmr-archive-backend/internal/services"
)

// StatusFor maps an error to its HTTP status and wire code.
func StatusFor(err error) (int, string) {
	if errors.Is(err, services.ErrUnauthorized) {
		return http.StatusUnauthorized, "unauthorized"
	}
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest, string(code)
	case domainagg.CodeInvalidActor, domainagg.CodePermissionDenied:
		return http.StatusForbidden, string(code)
	case domainagg.CodeNotFound:
		return http.StatusNotFound, string(code)
	case domainagg.CodeIncompleteRecord:
		return http.StatusUnprocessableEntity, string(code)
	case domainagg.CodeInvalidTransition, domainagg.CodeAppendConflict, domainagg.CodeConflict:
		return http.StatusConflict, string(code)
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable, string(code)
	case domainagg.CodeEmptyLedger, domainagg.CodeInvariantViolation:
		return http.StatusInternalServerError, string(domainagg.CodeInvariantViolation)
	default:
		return http.StatusInternalServerError, string(domainagg.CodeInternal)
	}
}

// RespondAggregateError writes the error envelope for err. Server-side
// failures never echo their cause to the client.
func RespondAggregateError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	msg := "internal error"
	if status < http.StatusInternalServerError {
		msg = publicMessage(err)
	}
	_ = c.Error(err)
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message:   msg,
			Code:      code,
			Retryable: domainagg.IsRetryable(err),
		},
	})
}

func publicMessage(err error) string {
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) && aggErr.Message != "" {
		return aggErr.Message
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
