package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/service"
	"github.com/samiecode/babylon/pkg/logger"
)

type Webhook struct {
	Ingest *service.IngestService
}

// QuickNode always answers 200 so the provider does not retry; failures are
// logged.
func (h *Webhook) QuickNode(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		logger.Warn(c, "read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": true, "detected": 0})
		return
	}
	res, err := h.Ingest.HandleWebhook(c.Request.Context(), body)
	if err != nil {
		logger.Error(c, "webhook processing failed",
			zap.Int("detected", res.Detected),
			zap.Int("persisted", res.Persisted),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "detected": res.Detected})
}
