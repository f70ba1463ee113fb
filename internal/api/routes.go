// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/plan-placer/backend/internal/config"
	"github.com/plan-placer/backend/internal/storage"
	"github.com/plan-placer/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	UploadMgr  UploadJobs
	Inspector  upload.ImageInspector
	Config     *config.AppConfig
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Plan      PlanHandler
	Workspace WorkspaceHandler
	Socket    *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.SessionMgr),
		Plan:      NewPlanHandler(deps.Store, deps.SessionMgr, deps.UploadMgr, deps.Inspector, cfg),
		Workspace: NewWorkspaceHandler(deps.Store, deps.SessionMgr),
		Socket:    NewWebSocketHandler(deps.SessionMgr, cfg.Advanced.WebSocketMaxMessageSize),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Plan image routes
	planGroup := e.Group("/api/plans")
	planGroup.POST("/upload", handlers.Plan.HandleUploadPlan)
	planGroup.POST("/upload/chunk", handlers.Plan.HandleUploadChunk)
	planGroup.POST("/upload/complete", handlers.Plan.HandleCompleteUpload)
	planGroup.GET("/upload/:jobId/status", handlers.Plan.HandleUploadJobStream)
	planGroup.GET("/recent", handlers.Plan.HandleGetRecentPlans)
	planGroup.GET("/:id", handlers.Plan.HandleGetPlan)
	planGroup.GET("/:id/image", handlers.Plan.HandleGetPlanImage)
	planGroup.DELETE("/:id", handlers.Plan.HandleDeletePlan)

	// Workspace routes
	wsGroup := e.Group("/api/workspaces")
	wsGroup.POST("", handlers.Workspace.HandleCreateWorkspace)
	wsGroup.GET("", handlers.Workspace.HandleListWorkspaces)
	wsGroup.GET("/:id", handlers.Workspace.HandleGetWorkspace)
	wsGroup.DELETE("/:id", handlers.Workspace.HandleDeleteWorkspace)
	wsGroup.POST("/:id/keepalive", handlers.Workspace.HandleKeepAlive)
	wsGroup.PUT("/:id/plan", handlers.Workspace.HandleSetPlan)
	wsGroup.POST("/:id/plan/reload", handlers.Workspace.HandleReloadPlan)
	wsGroup.DELETE("/:id/plan", handlers.Workspace.HandleClearPlan)
	wsGroup.GET("/:id/machines", handlers.Workspace.HandleListMachines)
	wsGroup.POST("/:id/machines", handlers.Workspace.HandleAddMachine)
	wsGroup.DELETE("/:id/machines", handlers.Workspace.HandleRemoveAllMachines)
	wsGroup.PUT("/:id/machines/:index", handlers.Workspace.HandleUpdateMachine)
	wsGroup.DELETE("/:id/machines/:index", handlers.Workspace.HandleRemoveMachine)
	wsGroup.PUT("/:id/selection", handlers.Workspace.HandleSetSelection)
	wsGroup.POST("/:id/zoom/in", handlers.Workspace.HandleZoomIn)
	wsGroup.POST("/:id/zoom/out", handlers.Workspace.HandleZoomOut)
	wsGroup.PUT("/:id/viewport", handlers.Workspace.HandleResizeViewport)
	wsGroup.GET("/:id/frame", handlers.Workspace.HandleGetFrame)
	wsGroup.GET("/:id/frame/msgpack", handlers.Workspace.HandleGetFrameMsgpack)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/workspaces/:id/ws", handlers.Socket.HandleWebSocket)
}

// SetupMiddleware installs the structured error handler.
func SetupMiddleware(e *echo.Echo, showErrorDetails bool) {
	e.HTTPErrorHandler = NewErrorHandler(showErrorDetails)
}
