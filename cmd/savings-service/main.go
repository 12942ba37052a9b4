package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/samiecode/babylon/internal/savings/app"
	savingsConfig "github.com/samiecode/babylon/internal/savings/config"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/safe"
)

func main() {
	// Ctrl+C / kubernetes stop signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(savingsConfig.ServiceName)
	if err != nil {
		log.Fatalf("init savings-service error: %v", err)
	}
	cleanUp, err := svc.StartService(ctx)
	if err != nil {
		log.Fatalf("start savings-service error: %v", err)
	}
	defer cleanUp()

	srv := svc.StartHttp()
	safe.Go(func() {
		logger.Info(ctx, "http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
			stop()
		}
	})

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown error", zap.Error(err))
	}
	logger.Info(shutdownCtx, "savings-service exit")
}
