package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/telemetry"
)

// Metrics records per-request counters and latency. Route patterns
// (c.Path()) keep label cardinality bounded regardless of path parameters.
func Metrics(m *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			m.RequestsTotal.WithLabelValues(method, route, status).Inc()
			m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return nil
		}
	}
}
