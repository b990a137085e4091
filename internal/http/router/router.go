package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"seatool_alerts/internal/http/middleware"
	"seatool_alerts/internal/recon/handler"
	"seatool_alerts/platform/config"
	"seatool_alerts/platform/logger"
)

func New(cfg config.HTTPConfig, apiHandler *handler.Handler, log *logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsCfg))

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	apiHandler.RegisterRoutes(v1)

	return engine
}
