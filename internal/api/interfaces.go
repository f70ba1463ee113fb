// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/plan-placer/backend/internal/models"
	"github.com/plan-placer/backend/internal/upload"
	"github.com/plan-placer/backend/internal/workspace"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// PlanHandler handles plan image upload and retrieval
type PlanHandler interface {
	HandleUploadPlan(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadJobStream(c echo.Context) error
	HandleGetRecentPlans(c echo.Context) error
	HandleGetPlan(c echo.Context) error
	HandleGetPlanImage(c echo.Context) error
	HandleDeletePlan(c echo.Context) error
}

// WorkspaceHandler handles placement workspace operations
type WorkspaceHandler interface {
	HandleCreateWorkspace(c echo.Context) error
	HandleListWorkspaces(c echo.Context) error
	HandleGetWorkspace(c echo.Context) error
	HandleDeleteWorkspace(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
	HandleSetPlan(c echo.Context) error
	HandleReloadPlan(c echo.Context) error
	HandleClearPlan(c echo.Context) error
	HandleListMachines(c echo.Context) error
	HandleAddMachine(c echo.Context) error
	HandleRemoveAllMachines(c echo.Context) error
	HandleUpdateMachine(c echo.Context) error
	HandleRemoveMachine(c echo.Context) error
	HandleSetSelection(c echo.Context) error
	HandleZoomIn(c echo.Context) error
	HandleZoomOut(c echo.Context) error
	HandleResizeViewport(c echo.Context) error
	HandleGetFrame(c echo.Context) error
	HandleGetFrameMsgpack(c echo.Context) error
}

// SessionManager is the part of session.Manager the handlers use.
// This allows mocking in tests
type SessionManager interface {
	Create() (*workspace.Workspace, error)
	Get(id string) (*workspace.Workspace, error)
	TouchSession(id string) bool
	Info(id string) (models.WorkspaceInfo, error)
	List() []models.WorkspaceInfo
	Delete(id string) error
	DetachPlan(planID string) int
}

// UploadJobs is the part of upload.Manager the handlers use.
type UploadJobs interface {
	StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *upload.Job
	GetJob(id string) (*upload.Job, bool)
}
