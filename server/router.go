package server

import (
	"time"

	httpHandler "skypress/interfaces/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitiateRouter(adminHandler httpHandler.IAdminHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "https://localhost:4200"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", adminHandler.Health)
	router.GET("/readyz", adminHandler.Ready)

	api := router.Group("api")
	api.POST("/scheduler/run", adminHandler.RunScheduler)

	return router
}
