package router

import (
	"github.com/gin-gonic/gin"

	"github.com/samiecode/babylon/internal/savings/handler"
)

func Wallet(api *gin.RouterGroup, h *handler.Wallet) {
	wallet := api.Group("/wallets")
	{
		wallet.GET("", h.List)
		wallet.POST("", h.Create)
		wallet.POST("/auto-register", h.AutoRegister)
	}
}
