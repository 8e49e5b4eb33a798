package handlers

import (
	"chamberheat/internal/logger"
	"chamberheat/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Minimal WebSocket connection (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerChamberRoutes(api)
		h.registerLogRoutes(api)
		h.registerSettingsRoutes(api)
	}
}

func (h *Handler) registerChamberRoutes(api *gin.RouterGroup) {
	chamber := api.Group("/chamber")
	{
		// Body example: {"setpoint_c":60,"duration_sec":21600,"material":"ABS"}
		chamber.POST("/start", h.startRun)
		chamber.POST("/pause", h.pauseRun)
		chamber.POST("/resume", h.resumeRun)
		chamber.POST("/confirm-preheat", h.confirmPreheat)
		chamber.POST("/stop", h.stopRun)
		chamber.POST("/emergency-stop", h.emergencyStop)
		chamber.PUT("/setpoint", h.setSetpoint)
		chamber.PUT("/duration", h.adjustDuration)
		chamber.PUT("/override", h.setOverride)
		chamber.DELETE("/override/:actuator", h.clearOverride)
		chamber.GET("/state", h.getState)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings")
	{
		settings.GET("/", h.getSettings)
		settings.PUT("/", h.updateSettings)
	}
}
