// README: Customer-facing order endpoints: checkout, payment re-issue,
// status poll, cancel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cookroute/internal/http/middleware"
	"cookroute/internal/modules/order"
	"cookroute/internal/types"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{orders: svc}
}

type checkoutLine struct {
	FoodID   string `json:"foodId"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

type checkoutReq struct {
	Items       []checkoutLine `json:"items"`
	DeliveryLat float64        `json:"deliveryLat"`
	DeliveryLng float64        `json:"deliveryLng"`
	Tip         int64          `json:"tip"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	claims, _ := middleware.Actor(c)
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lines := make([]order.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, order.Line{
			FoodID:   types.ID(it.FoodID),
			Quantity: it.Quantity,
			Note:     it.Note,
		})
	}
	res, err := h.orders.Checkout(c.Request.Context(), order.CheckoutCommand{
		UserID:    claims.UserID,
		UserName:  req.Name,
		UserEmail: req.Email,
		Items:     lines,
		Delivery:  types.Point{Lat: req.DeliveryLat, Lng: req.DeliveryLng},
		Tip:       req.Tip,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"orderId":      res.OrderID,
		"clientSecret": res.ClientSecret,
	})
}

// Payment re-issues the client secret for a still-pending order so an
// abandoned checkout can resume without creating a duplicate intent.
func (h *OrderHandler) Payment(c *gin.Context) {
	claims, _ := middleware.Actor(c)
	res, err := h.orders.EnsurePayment(c.Request.Context(), order.PaymentCommand{
		OrderID: types.ID(c.Param("id")),
		UserID:  claims.UserID,
		Email:   c.Query("email"),
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":      res.OrderID,
		"clientSecret": res.ClientSecret,
	})
}

func (h *OrderHandler) Status(c *gin.Context) {
	claims, _ := middleware.Actor(c)
	res, err := h.orders.CheckStatus(c.Request.Context(), order.StatusCommand{
		OrderID: types.ID(c.Param("id")),
		UserID:  claims.UserID,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	body := gin.H{
		"orderId":       res.OrderID,
		"status":        res.Status,
		"paymentStatus": res.PaymentStatus,
	}
	if res.DriverLocation != nil {
		body["driverLocation"] = res.DriverLocation
	}
	c.JSON(http.StatusOK, body)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	claims, _ := middleware.Actor(c)
	err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(c.Param("id")),
		UserID:  claims.UserID,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": order.StatusCancelled})
}

func (h *OrderHandler) Get(c *gin.Context) {
	claims, _ := middleware.Actor(c)
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		abortError(c, err)
		return
	}
	if o.UserID != claims.UserID && o.CookID != claims.UserID &&
		(o.DriverID == nil || *o.DriverID != claims.UserID) {
		abortError(c, order.ErrForbidden)
		return
	}
	items, err := h.orders.ItemsOf(c.Request.Context(), o.ID)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o, "items": items})
}
