package client

import (
	"context"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/pkg/logger"

	"go.uber.org/zap"
)

// doWithRetry 对瞬时失败重试，间隔从 base 起指数增长。attempts 为总次数。
func doWithRetry(ctx context.Context, name string, attempts int, base time.Duration, fn func() error) error {
	var lastErr error
	delay := base

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		logger.Log.Warn("collaborator call failed, retrying",
			zap.String("call", name),
			zap.Int("attempt", i+1),
			zap.Duration("backoff", delay),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}
