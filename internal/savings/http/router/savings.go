package router

import (
	"github.com/gin-gonic/gin"

	"github.com/samiecode/babylon/internal/savings/handler"
)

func Savings(api *gin.RouterGroup, h *handler.Savings) {
	savings := api.Group("/savings")
	{
		savings.POST("/config", h.Configure)
		savings.POST("/config/resync", h.Resync)
		savings.POST("/authorize", h.Authorize)
		savings.POST("/authorize/reconcile", h.Reconcile)
		savings.POST("/withdraw", h.Withdraw)
		savings.GET("/withdraw", h.ListWithdrawals)
		savings.GET("/overview", h.GetOverview)
	}
}
