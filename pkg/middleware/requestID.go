package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/samiecode/babylon/pkg/common"
)

// ReqId tags the request with an id, echoes it in the response and puts it
// in the request context so service log lines carry it.
func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := common.RequestID(c.GetHeader(common.HeaderRequestID))
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), common.CtxKeyRequestID, rid))
		c.Next()
	}
}
