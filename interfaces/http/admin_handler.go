package http

import (
	"context"
	"database/sql"
	"net/http"

	"skypress/infrastructure/logger"
	"skypress/usecase"

	"github.com/gin-gonic/gin"
)

// IAdminHandler exposes health probes and the manual scheduler trigger used
// by the front end's immediate-publish path.
type IAdminHandler interface {
	Health(c *gin.Context)
	Ready(c *gin.Context)
	RunScheduler(c *gin.Context)
}

type adminHandler struct {
	db        *sql.DB
	scheduler *usecase.Scheduler
}

func NewAdminHandler(db *sql.DB, scheduler *usecase.Scheduler) IAdminHandler {
	return &adminHandler{db: db, scheduler: scheduler}
}

func (h *adminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *adminHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *adminHandler) RunScheduler(c *gin.Context) {
	logger.GetLogger().Info("Manual scheduler tick requested")
	// Detach from the request context; the tick outlives the response.
	go h.scheduler.RunTick(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}
