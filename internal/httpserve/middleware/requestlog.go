package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/roofdocs/nexus/pkg/logger"
)

// RequestLogger writes one structured line per request.
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			keyvals := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.Round(time.Millisecond).String(),
				"ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				keyvals = append(keyvals, "error", v.Error)
				logger.Warn("Request failed", keyvals...)
				return nil
			}
			logger.Info("Request", keyvals...)
			return nil
		},
	})
}
