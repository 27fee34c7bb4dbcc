// README: Driver REST endpoints: presence toggle and the location fallback
// for clients without a live connection.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cookroute/internal/http/middleware"
	"cookroute/internal/modules/driver"
	"cookroute/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
}

func NewDriverHandler(svc *driver.Service) *DriverHandler {
	return &DriverHandler{drivers: svc}
}

type onlineReq struct {
	Online bool `json:"online"`
}

func (h *DriverHandler) SetOnline(c *gin.Context) {
	claims, _ := middleware.Actor(c)
	var req onlineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.drivers.SetOnline(c.Request.Context(), claims.UserID, req.Online); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": req.Online})
}

type locationReq struct {
	Lat float64 `json:"locationLat"`
	Lng float64 `json:"locationLng"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	claims, _ := middleware.Actor(c)
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.drivers.UpdateLocation(c.Request.Context(), claims.UserID, types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
