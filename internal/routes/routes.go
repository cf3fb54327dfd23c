// Package routes wires handlers and middleware onto the echo router.
package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/handler"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/middleware"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/telemetry"
)

// Deps carries everything route registration needs.
type Deps struct {
	Billing  *handler.BillingHandler
	Metrics  *telemetry.Metrics
	Registry *prometheus.Registry
	Logger   zerolog.Logger
}

// Register sets up middleware, the billing API and the operational
// endpoints.
func Register(e *echo.Echo, deps Deps) {
	e.Validator = handler.NewRequestValidator()

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Logger))
	e.Use(middleware.Metrics(deps.Metrics))
	e.Use(middleware.Operator())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api/billing")
	api.POST("/invoices", deps.Billing.CreateInvoice)
	api.GET("/invoices", deps.Billing.ListInvoices)
	api.GET("/invoices/:id", deps.Billing.GetInvoice)
	api.POST("/invoices/:id/generate", deps.Billing.Generate)
	api.POST("/invoices/:id/cancel", deps.Billing.Cancel)
	api.POST("/validate", deps.Billing.Validate)
	api.GET("/orders/eligible", deps.Billing.ListEligibleOrders)
}
