package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	validationMessage = "Validation error."
	unexpectedMessage = "Unexpected server error."
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details []validationIssue `json:"details,omitempty"`
}

type validationIssue struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// abortWithError maps err to a response and stops the handler chain.
// Domain errors carry their own status and message; anything else is logged
// and hidden behind a 500.
func abortWithError(c *gin.Context, logger logging.Logger, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.Status, errorResponse{Error: appErr.Message})
		return
	}

	logger.Error(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"error", err,
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: unexpectedMessage})
}

// abortWithBindError answers a request whose body failed to bind.
func abortWithBindError(c *gin.Context, err error) {
	resp := errorResponse{Error: validationMessage}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.Details = append(resp.Details, validationIssue{Field: fe.Field(), Rule: fe.Tag()})
		}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
