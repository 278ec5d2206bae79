package handlers

import (
	"net/http"
	"time"

	"anesthesia_controller/internal/logger"
	"anesthesia_controller/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler exposes the controller's reporting and operator surface over HTTP.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds the router.
//
//	/health, /swagger/*any, /ws     open
//	/auth/sign-in                   open
//	/api/v1/...                     bearer token
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	router.GET("/ws", h.wsConnect)
	router.POST("/auth/sign-in", h.signIn)

	api := router.Group("/api/v1", h.operatorMiddleware)
	{
		api.GET("/status", h.getStatus)
		api.GET("/events", h.getEvents)
		api.POST("/vitals", h.postVitals)

		signals := api.Group("/signals")
		signals.POST("/emergency-stop", h.setEmergencyStop) // {"asserted": true}
		signals.POST("/manual-override", h.setManualOverride)

		cfg := api.Group("/config")
		cfg.PUT("/thresholds", h.putThresholds)
		cfg.PUT("/gains", h.putGains)
	}
	return router
}

// requestLogger logs every request except the monitor's vitals feed and
// health checks, which arrive several times per second.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}
	path := c.FullPath()
	status := c.Writer.Status()
	if status < http.StatusBadRequest && (path == "/api/v1/vitals" || path == "/health") {
		return
	}
	kv := []interface{}{
		"method", c.Request.Method,
		"path", path,
		"status", status,
		"latency", time.Since(start),
	}
	if op, ok := c.Get(operatorCtx); ok {
		kv = append(kv, "operator", op)
	}
	h.log.Debugw("http_request", kv...)
}
