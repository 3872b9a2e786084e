package middleware

import (
	"log/slog"
	"time"

	"github.com/vango-dev/fluxreg/pkg/flux"
)

// Logging creates middleware that logs each delivery at debug level and
// each failed delivery at warn level.
func Logging(logger *slog.Logger) flux.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return flux.MiddlewareFunc(func(inv *flux.Invocation, next func() error) error {
		start := time.Now()
		err := next()
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("flux: delivery failed",
				"action", inv.Action,
				"store", inv.Store,
				"duration", elapsed,
				"error", err,
			)
			return err
		}
		logger.Debug("flux: delivered",
			"action", inv.Action,
			"store", inv.Store,
			"args", len(inv.Args),
			"duration", elapsed,
		)
		return nil
	})
}
