package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samiecode/babylon/pkg/common"
	"github.com/samiecode/babylon/pkg/logger"
)

// Recover turns a handler panic into a 500 envelope. http.ErrAbortHandler is
// re-raised so net/http drops the connection.
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(p)
			}
			logger.Error(c, "http panic",
				zap.String("request_id", common.RequestIDOf(c)),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			common.Fail(c, http.StatusInternalServerError, "internal error")
			c.Abort()
		}()
		c.Next()
	}
}
