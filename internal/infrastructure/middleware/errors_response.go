package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "collabstream/pkg/errors"
)

// errorBody is the JSON shape of every error response.
func errorBody(appErr *apperrors.AppError) gin.H {
	body := gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if appErr.Reason != "" {
		body["reason"] = string(appErr.Reason)
	}
	if len(appErr.Context) > 0 {
		body["details"] = appErr.Context
	}
	return body
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, errorBody(appErr))
}
