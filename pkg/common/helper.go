package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/xerr"
	"go.uber.org/zap"
)

// Response is the uniform HTTP envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// JSON writes a successful envelope with an explicit status (e.g. 201).
func JSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func Fail(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Response{Success: false, Error: message})
}

// FailWithData is Fail with a diagnostic payload, e.g. cooldown details.
func FailWithData(c *gin.Context, httpStatus int, message string, data interface{}) {
	c.JSON(httpStatus, Response{Success: false, Error: message, Data: data})
}

// FailFromErr maps err through the xerr taxonomy. Server-side failures are
// logged with request context and answered with a generic message.
func FailFromErr(c *gin.Context, err error) {
	status := xerr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error(c, "http error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		var ge *xerr.GatewayError
		if !errors.As(err, &ge) {
			msg = "internal error"
		}
	} else {
		logger.Warn(c, "http request rejected",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	Fail(c, status, msg)
}
