package http

import (
	"net/http"
	"time"

	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

type PresenceResponse struct {
	UserID domain.UserID `json:"userId"`
	Online bool          `json:"online"`
}

type handlers struct {
	orch *orch.Orchestrator
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   "rendezvous",
		Timestamp: time.Now().UTC(),
	})
}

func (h *handlers) streams(c *gin.Context) {
	list, err := h.orch.ListStreams(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": list})
}

func (h *handlers) presence(c *gin.Context) {
	users, err := h.orch.OnlineUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userIds": users})
}

func (h *handlers) userPresence(c *gin.Context) {
	uid := domain.UserID(c.Param("userId"))
	online, err := h.orch.IsOnline(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, PresenceResponse{UserID: uid, Online: online})
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.orch.IceServers()})
}
