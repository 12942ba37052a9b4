package common

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/samiecode/babylon/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxKeyRequestID = logger.RequestIdKey
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// RequestID keeps a caller-supplied id when it is short and log-safe and
// mints a uuid otherwise.
func RequestID(given string) string {
	if requestIDPattern.MatchString(given) {
		return given
	}
	return uuid.NewString()
}

// RequestIDOf returns the id the request-id middleware stored on c.
func RequestIDOf(c *gin.Context) string {
	if s := c.GetString(CtxKeyRequestID); s != "" {
		return s
	}
	s, _ := c.Request.Context().Value(CtxKeyRequestID).(string)
	return s
}
