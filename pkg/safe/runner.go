package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/samiecode/babylon/pkg/logger"
	"go.uber.org/zap"
)

// Go runs fn in a goroutine and logs any panic with its stack.
func Go(fn func()) {
	go func() {
		defer recoverAndLog(context.Background())
		fn()
	}()
}

// GoCtx is Go with a context, so the panic log keeps the request trace.
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer recoverAndLog(ctx)
		fn(ctx)
	}()
}

// Run calls fn synchronously and converts a panic into an error.
func Run(ctx context.Context, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func recoverAndLog(ctx context.Context) {
	if r := recover(); r != nil {
		logPanic(ctx, r)
	}
}

func logPanic(ctx context.Context, r any) {
	stack := string(debug.Stack())
	if logger.Log != nil {
		logger.Error(ctx, "🚨 GOROUTINE PANIC RECOVERED",
			zap.Any("panic", r),
			zap.String("stack", stack),
		)
		return
	}
	fmt.Printf("🚨 GOROUTINE PANIC: %v\nStack: %s\n", r, stack)
}
