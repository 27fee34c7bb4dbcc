// README: Route registration; module services come in, a gin engine goes out.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cookroute/internal/http/handlers"
	"cookroute/internal/http/middleware"
	"cookroute/internal/infra"
	"cookroute/internal/modules/driver"
	"cookroute/internal/modules/order"
	"cookroute/internal/modules/payment"
	"cookroute/internal/notify"
	"cookroute/internal/ws"
)

type RouterDeps struct {
	Orders   *order.Service
	Drivers  *driver.Service
	Payments *payment.Service
	Hub      *ws.Hub
	Codec    *infra.TokenCodec
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// The hub verifies its own token so browser clients can pass it as a
	// query parameter during the upgrade.
	r.GET("/ws", deps.Hub.Handle)

	webhookHandler := handlers.NewWebhookHandler(deps.Payments, deps.Log)
	r.POST("/api/webhooks/stripe", webhookHandler.Stripe)

	api := r.Group("/api", middleware.Auth(deps.Codec))

	orderHandler := handlers.NewOrderHandler(deps.Orders)
	api.GET("/orders/:id", orderHandler.Get)

	customer := api.Group("", middleware.RequireRole(string(notify.RoleCustomer)))
	customer.POST("/orders", orderHandler.Checkout)
	customer.GET("/orders/:id/payment", orderHandler.Payment)
	customer.GET("/orders/:id/status", orderHandler.Status)
	customer.POST("/orders/:id/cancel", orderHandler.Cancel)

	driverHandler := handlers.NewDriverHandler(deps.Drivers)
	drivers := api.Group("/drivers", middleware.RequireRole(string(notify.RoleDriver)))
	drivers.POST("/online", driverHandler.SetOnline)
	drivers.PUT("/location", driverHandler.UpdateLocation)

	return r
}
