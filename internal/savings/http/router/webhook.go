package router

import (
	"github.com/gin-gonic/gin"

	"github.com/samiecode/babylon/internal/savings/handler"
)

func Webhook(api *gin.RouterGroup, h *handler.Webhook) {
	api.POST("/quicknode-webhook", h.QuickNode)
}
