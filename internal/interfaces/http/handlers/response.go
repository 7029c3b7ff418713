// Package handlers implements the HTTP API surface of the map view service.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// respondError writes an error envelope with the status derived from the
// error's code.  Non-AppError values map to 500.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var ae *apperrors.AppError
	if !errors.As(err, &ae) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{
			Code:    apperrors.ErrCodeInternal.String(),
			Message: "internal server error",
		}})
		return
	}
	c.JSON(ae.Code.HTTPStatus(), gin.H{"error": errorBody{
		Code:    ae.Code.String(),
		Message: ae.Message,
		Detail:  ae.Detail,
	}})
}

// respond writes a success payload.
func respond(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}
