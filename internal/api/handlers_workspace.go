// handlers_workspace.go - Placement workspace handlers
package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/plan-placer/backend/internal/models"
	"github.com/plan-placer/backend/internal/roster"
	"github.com/plan-placer/backend/internal/storage"
	"github.com/plan-placer/backend/internal/workspace"
	"github.com/vmihailenco/msgpack/v5"
)

// WorkspaceHandlerImpl implements the WorkspaceHandler interface
type WorkspaceHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
}

// NewWorkspaceHandler creates a new workspace handler instance
func NewWorkspaceHandler(store storage.Store, sessionMgr SessionManager) WorkspaceHandler {
	return &WorkspaceHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
	}
}

// lookup resolves the :id parameter and marks the workspace as used.
func (h *WorkspaceHandlerImpl) lookup(c echo.Context) (*workspace.Workspace, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	ws, err := h.sessionMgr.Get(id)
	if err != nil {
		return nil, NewNotFoundError("workspace", id)
	}
	return ws, nil
}

// HandleCreateWorkspace starts a new workspace, optionally showing a plan.
func (h *WorkspaceHandlerImpl) HandleCreateWorkspace(c echo.Context) error {
	var req createWorkspaceRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid JSON body", err)
		}
	}
	if req.PlanID != "" {
		if _, err := h.store.Get(req.PlanID); err != nil {
			return NewNotFoundError("plan", req.PlanID)
		}
	}

	ws, err := h.sessionMgr.Create()
	if err != nil {
		return mapError(err, "failed to create workspace")
	}
	if req.Width > 0 && req.Height > 0 {
		if err := ws.Resize(req.Width, req.Height); err != nil {
			return mapError(err, "failed to size viewport")
		}
	}
	if req.PlanID != "" {
		if err := ws.SetPlan(req.PlanID); err != nil {
			return mapError(err, "failed to set plan")
		}
	}

	return c.JSON(http.StatusCreated, ws.Info())
}

// HandleListWorkspaces lists every active workspace.
func (h *WorkspaceHandlerImpl) HandleListWorkspaces(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionMgr.List())
}

// HandleGetWorkspace returns the workspace summary.
func (h *WorkspaceHandlerImpl) HandleGetWorkspace(c echo.Context) error {
	id := c.Param("id")
	info, err := h.sessionMgr.Info(id)
	if err != nil {
		return NewNotFoundError("workspace", id)
	}
	h.sessionMgr.TouchSession(id)
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteWorkspace closes a workspace.
func (h *WorkspaceHandlerImpl) HandleDeleteWorkspace(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessionMgr.Delete(id); err != nil {
		return NewNotFoundError("workspace", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleKeepAlive keeps a workspace from being cleaned up.
func (h *WorkspaceHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessionMgr.TouchSession(id) {
		return NewNotFoundError("workspace", id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"id":     id,
	})
}

// HandleSetPlan shows a stored plan in the workspace.
func (h *WorkspaceHandlerImpl) HandleSetPlan(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}

	var req setPlanRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.PlanID == "" {
		return NewValidationError("planId")
	}
	if _, err := h.store.Get(req.PlanID); err != nil {
		return NewNotFoundError("plan", req.PlanID)
	}

	if err := ws.SetPlan(req.PlanID); err != nil {
		return mapError(err, "failed to set plan")
	}
	return c.JSON(http.StatusAccepted, ws.Info())
}

// HandleReloadPlan retries loading the workspace plan, e.g. after a failure.
func (h *WorkspaceHandlerImpl) HandleReloadPlan(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	if ws.PlanID() == "" {
		return NewConflictError("workspace has no plan")
	}
	if err := ws.ReloadPlan(); err != nil {
		return mapError(err, "failed to reload plan")
	}
	return c.JSON(http.StatusAccepted, ws.Info())
}

// HandleClearPlan removes the plan from the workspace.
func (h *WorkspaceHandlerImpl) HandleClearPlan(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	if err := ws.ClearPlan(); err != nil {
		return mapError(err, "failed to clear plan")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleListMachines returns the roster and the current selection.
func (h *WorkspaceHandlerImpl) HandleListMachines(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, machinesResponse(ws))
}

// HandleAddMachine appends a named machine at the origin.
func (h *WorkspaceHandlerImpl) HandleAddMachine(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}

	var req addMachineRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	index, m, err := ws.AddMachine(req.Name)
	if err != nil {
		return mapError(err, "failed to add machine")
	}
	return c.JSON(http.StatusCreated, machineResponse{Index: index, Machine: m})
}

// HandleRemoveAllMachines empties the roster.
func (h *WorkspaceHandlerImpl) HandleRemoveAllMachines(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	if err := ws.RemoveAll(); err != nil {
		return mapError(err, "failed to remove machines")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleUpdateMachine renames and/or moves one machine.
func (h *WorkspaceHandlerImpl) HandleUpdateMachine(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	index, err := indexParam(c)
	if err != nil {
		return err
	}

	var req updateMachineRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	m, err := ws.UpdateMachine(index, roster.Edit{Name: req.Name, X: req.X, Y: req.Y})
	if err != nil {
		return mapError(err, "failed to update machine")
	}
	return c.JSON(http.StatusOK, machineResponse{Index: index, Machine: m})
}

// HandleRemoveMachine deletes one machine.
func (h *WorkspaceHandlerImpl) HandleRemoveMachine(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	if err := ws.RemoveMachine(index); err != nil {
		return mapError(err, "failed to remove machine")
	}
	return c.JSON(http.StatusOK, machinesResponse(ws))
}

// HandleSetSelection selects a machine, recentering the camera on it.
// A null index clears the selection.
func (h *WorkspaceHandlerImpl) HandleSetSelection(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}

	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if req.Index == nil {
		err = ws.ClearSelection()
	} else {
		err = ws.Select(*req.Index)
	}
	if err != nil {
		return mapError(err, "failed to change selection")
	}
	return c.JSON(http.StatusOK, ws.Snapshot())
}

// HandleZoomIn steps the camera zoom in.
func (h *WorkspaceHandlerImpl) HandleZoomIn(c echo.Context) error {
	return h.zoom(c, (*workspace.Workspace).ZoomIn)
}

// HandleZoomOut steps the camera zoom out.
func (h *WorkspaceHandlerImpl) HandleZoomOut(c echo.Context) error {
	return h.zoom(c, (*workspace.Workspace).ZoomOut)
}

func (h *WorkspaceHandlerImpl) zoom(c echo.Context, step func(*workspace.Workspace) error) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	if err := step(ws); err != nil {
		return mapError(err, "failed to zoom")
	}
	return c.JSON(http.StatusOK, ws.Frame())
}

// HandleResizeViewport sets the viewport size in client pixels.
func (h *WorkspaceHandlerImpl) HandleResizeViewport(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}

	var req resizeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	if err := ws.Resize(req.Width, req.Height); err != nil {
		return mapError(err, "failed to resize viewport")
	}
	return c.JSON(http.StatusOK, ws.Frame())
}

// HandleGetFrame renders the workspace as JSON.
func (h *WorkspaceHandlerImpl) HandleGetFrame(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws.Snapshot())
}

// HandleGetFrameMsgpack renders the workspace as MessagePack.
func (h *WorkspaceHandlerImpl) HandleGetFrameMsgpack(c echo.Context) error {
	ws, err := h.lookup(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(ws.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// Request/Response types

type createWorkspaceRequest struct {
	PlanID string  `json:"planId"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type setPlanRequest struct {
	PlanID string `json:"planId"`
}

type addMachineRequest struct {
	Name string `json:"name"`
}

type updateMachineRequest struct {
	Name *string  `json:"name"`
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
}

func (r *updateMachineRequest) validate() error {
	if r.Name == nil && r.X == nil && r.Y == nil {
		return NewBadRequestError("nothing to update", nil)
	}
	if (r.X == nil) != (r.Y == nil) {
		return NewBadRequestError("x and y must be set together", nil)
	}
	return nil
}

type selectionRequest struct {
	Index *int `json:"index"`
}

type resizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r *resizeRequest) validate() error {
	if !(r.Width > 0) || math.IsInf(r.Width, 0) {
		return NewValidationError("width")
	}
	if !(r.Height > 0) || math.IsInf(r.Height, 0) {
		return NewValidationError("height")
	}
	return nil
}

type machineResponse struct {
	Index   int            `json:"index"`
	Machine models.Machine `json:"machine"`
}

type machineListResponse struct {
	Machines []models.Machine `json:"machines"`
	Selected *int             `json:"selected"`
}

func machinesResponse(ws *workspace.Workspace) machineListResponse {
	resp := machineListResponse{Machines: ws.Machines()}
	if sel, ok := ws.Selected(); ok {
		resp.Selected = &sel
	}
	return resp
}

func indexParam(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, NewValidationError("index")
	}
	return index, nil
}
