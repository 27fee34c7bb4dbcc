// README: Websocket hub: upgrades authenticated actors and routes their
// live events to the order and driver services.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cookroute/internal/infra"
	"cookroute/internal/modules/driver"
	"cookroute/internal/modules/order"
	"cookroute/internal/notify"
	"cookroute/internal/types"
)

type Hub struct {
	registry *notify.Registry
	orders   *order.Service
	drivers  *driver.Service
	codec    *infra.TokenCodec
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHub(registry *notify.Registry, orders *order.Service, drivers *driver.Service, codec *infra.TokenCodec, log *zap.Logger) *Hub {
	return &Hub{
		registry: registry,
		orders:   orders,
		drivers:  drivers,
		codec:    codec,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and runs the connection until the peer leaves.
// The actor's role comes from the verified token, never from the client.
func (h *Hub) Handle(c *gin.Context) {
	claims, err := h.codec.Verify(bearerToken(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	role, ok := roleOf(claims.Role)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown role"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := newConn(ws)
	h.registry.Register(role, claims.UserID, conn)
	h.log.Info("actor connected",
		zap.String("role", string(role)),
		zap.String("id", string(claims.UserID)))

	go conn.writePump()
	h.readLoop(c.Request.Context(), conn, role, claims.UserID)

	h.registry.Unregister(role, claims.UserID, conn)
	conn.close()
	h.log.Info("actor disconnected",
		zap.String("role", string(role)),
		zap.String("id", string(claims.UserID)))
}

func (h *Hub) readLoop(ctx context.Context, conn *Conn, role notify.Role, actor types.ID) {
	conn.ws.SetReadLimit(4096)
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var frame envelope
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		h.dispatch(ctx, conn, role, actor, frame)
	}
}

func (h *Hub) dispatch(ctx context.Context, conn *Conn, role notify.Role, actor types.ID, frame envelope) {
	switch role {
	case notify.RoleCustomer:
		h.customerEvent(ctx, conn, actor, frame)
	case notify.RoleCook:
		h.cookEvent(ctx, conn, actor, frame)
	case notify.RoleDriver:
		h.driverEvent(ctx, conn, actor, frame)
	}
}

type orderRef struct {
	OrderID types.ID `json:"orderId"`
}

type locationReport struct {
	OrderID types.ID `json:"orderId"`
	Lat     float64  `json:"locationLat"`
	Lng     float64  `json:"locationLng"`
}

func (h *Hub) customerEvent(ctx context.Context, conn *Conn, actor types.ID, frame envelope) {
	var ref orderRef
	if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.OrderID == "" {
		return
	}
	switch frame.Event {
	case notify.EventOrderPaid:
		res, err := h.orders.CheckStatus(ctx, order.StatusCommand{OrderID: ref.OrderID, UserID: actor})
		if err != nil {
			h.emitError(conn, notify.EventOrderPaidError, err)
			return
		}
		_ = conn.Emit(notify.EventOrderPaid, map[string]any{
			"orderId": res.OrderID,
			"status":  res.Status,
		})
	case notify.EventOrderDelivered:
		err := h.orders.Delivered(ctx, order.DeliveredCommand{OrderID: ref.OrderID, UserID: actor})
		if err != nil {
			h.emitError(conn, notify.EventOrderDeliveredError, err)
		}
	}
}

func (h *Hub) cookEvent(ctx context.Context, conn *Conn, actor types.ID, frame envelope) {
	var ref orderRef
	if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.OrderID == "" {
		return
	}
	switch frame.Event {
	case notify.EventOrderAccepted:
		err := h.orders.Accept(ctx, order.AcceptCommand{OrderID: ref.OrderID, CookID: actor})
		if err != nil {
			h.emitError(conn, notify.EventOrderAcceptedError, err)
		}
	case notify.EventOrderReady:
		_, err := h.orders.Ready(ctx, order.ReadyCommand{OrderID: ref.OrderID, CookID: actor})
		if err != nil {
			h.emitError(conn, notify.EventOrderReadyError, err)
		}
	}
}

func (h *Hub) driverEvent(ctx context.Context, conn *Conn, actor types.ID, frame envelope) {
	switch frame.Event {
	case notify.EventDriverLocation:
		var rep locationReport
		if err := json.Unmarshal(frame.Data, &rep); err != nil || rep.OrderID == "" {
			return
		}
		o, err := h.orders.Get(ctx, rep.OrderID)
		if err != nil {
			h.emitError(conn, notify.EventDriverLocationError, err)
			return
		}
		if o.DriverID == nil || *o.DriverID != actor {
			h.emitError(conn, notify.EventDriverLocationError, order.ErrForbidden)
			return
		}
		err = h.drivers.UpdateLocation(ctx, actor, types.Point{Lat: rep.Lat, Lng: rep.Lng})
		if errors.Is(err, driver.ErrThrottled) {
			// Over-frequent reports are dropped quietly; the client keeps its cadence.
			return
		}
		if err != nil {
			h.emitError(conn, notify.EventDriverLocationError, err)
			return
		}
		if cust, ok := h.registry.Lookup(notify.RoleCustomer, o.UserID); ok {
			_ = cust.Emit(notify.EventDriverLocation, map[string]any{
				"orderId":     rep.OrderID,
				"locationLat": rep.Lat,
				"locationLng": rep.Lng,
			})
		}
	case notify.EventDropoffReady:
		var ref orderRef
		if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.OrderID == "" {
			return
		}
		o, err := h.orders.Get(ctx, ref.OrderID)
		if err != nil {
			h.emitError(conn, notify.EventDropoffReadyError, err)
			return
		}
		if o.DriverID == nil || *o.DriverID != actor {
			h.emitError(conn, notify.EventDropoffReadyError, order.ErrForbidden)
			return
		}
		if cust, ok := h.registry.Lookup(notify.RoleCustomer, o.UserID); ok {
			_ = cust.Emit(notify.EventDropoffReady, map[string]any{"orderId": ref.OrderID})
		}
	case notify.EventFoodPickup:
		var ref orderRef
		if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.OrderID == "" {
			return
		}
		err := h.orders.Pickup(ctx, order.PickupCommand{OrderID: ref.OrderID, DriverID: actor})
		if err != nil {
			h.emitError(conn, notify.EventFoodPickupError, err)
		}
	}
}

func (h *Hub) emitError(conn *Conn, event string, err error) {
	_ = conn.Emit(event, map[string]any{"error": err.Error()})
}

func roleOf(s string) (notify.Role, bool) {
	switch notify.Role(s) {
	case notify.RoleCustomer, notify.RoleCook, notify.RoleDriver:
		return notify.Role(s), true
	}
	return "", false
}

// bearerToken reads the JWT from the Authorization header, falling back to
// the token query parameter for browser websocket clients that cannot set
// headers.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}
