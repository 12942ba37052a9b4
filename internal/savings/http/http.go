package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/samiecode/babylon/internal/savings/handler"
	"github.com/samiecode/babylon/internal/savings/http/router"
	"github.com/samiecode/babylon/pkg/common"
	"github.com/samiecode/babylon/pkg/middleware"
	"github.com/samiecode/babylon/pkg/ratelimit"
)

type Handlers struct {
	Webhook *handler.Webhook
	Wallet  *handler.Wallet
	Savings *handler.Savings
}

type Options struct {
	Service   string
	RateLimit float64 // requests per second per client and API group
	Burst     int
}

// Rate-limited route groups. Webhook deliveries have no quota: the provider
// must always get a 200.
const (
	groupWallets = "wallets"
	groupSavings = "savings"
)

// NewEngine builds the gin engine. The limiter sweeper runs until ctx is
// done.
func NewEngine(ctx context.Context, h Handlers, o Options) *gin.Engine {
	if o.Service == "" {
		o.Service = "savings-service"
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 50
	}
	if o.Burst <= 0 {
		o.Burst = 100
	}
	quota := ratelimit.Quota{PerSecond: o.RateLimit, Burst: o.Burst}
	limits := ratelimit.NewClientLimits(map[string]ratelimit.Quota{
		groupWallets: quota,
		groupSavings: quota,
	}, 10*time.Minute)
	limits.RunSweeper(ctx, time.Minute)

	r := gin.New()
	p := ginprom.NewPrometheus("gin")
	p.Use(r)
	r.Use(
		otelgin.Middleware(o.Service),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
	)
	r.GET("/healthz", func(c *gin.Context) {
		common.Success(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	router.Webhook(api, h.Webhook)
	router.Wallet(api.Group("", middleware.RateLimit(limits, groupWallets)), h.Wallet)
	router.Savings(api.Group("", middleware.RateLimit(limits, groupSavings)), h.Savings)
	return r
}

func NewServer(ctx context.Context, addr string, h Handlers, o Options) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewEngine(ctx, h, o),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// chain calls wait for confirmation
		WriteTimeout:   2 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}
}
