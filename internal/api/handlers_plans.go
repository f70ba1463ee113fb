// handlers_plans.go - Plan image upload and retrieval handlers
package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/plan-placer/backend/internal/config"
	"github.com/plan-placer/backend/internal/models"
	"github.com/plan-placer/backend/internal/plan"
	"github.com/plan-placer/backend/internal/storage"
	"github.com/plan-placer/backend/internal/upload"
)

// recentPlansLimit caps the recent plans listing.
const recentPlansLimit = 20

// jobPollInterval is how often the job status stream checks for progress.
const jobPollInterval = 100 * time.Millisecond

// PlanHandlerImpl implements the PlanHandler interface
type PlanHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	uploads    UploadJobs
	inspector  upload.ImageInspector
	cfg        *config.AppConfig
}

// NewPlanHandler creates a new plan handler instance
func NewPlanHandler(store storage.Store, sessionMgr SessionManager, uploads UploadJobs, inspector upload.ImageInspector, cfg *config.AppConfig) PlanHandler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &PlanHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
		uploads:    uploads,
		inspector:  inspector,
		cfg:        cfg,
	}
}

// HandleUploadPlan accepts a plan image either as multipart/form-data
// ("file" field) or as base64 JSON, stores it and validates its header.
func (h *PlanHandlerImpl) HandleUploadPlan(c echo.Context) error {
	var (
		info *models.FileInfo
		err  error
	)

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		info, err = h.saveMultipart(c)
	} else {
		info, err = h.saveBase64(c)
	}
	if err != nil {
		return err
	}

	info, err = h.validatePlan(info)
	if err != nil {
		return err
	}

	slog.Info("plan uploaded", "plan", shortID(info.ID), "name", info.Name,
		"format", info.Format, "width", info.Width, "height", info.Height)
	return c.JSON(http.StatusCreated, info)
}

func (h *PlanHandlerImpl) saveMultipart(c echo.Context) (*models.FileInfo, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, NewBadRequestError("no file provided", err)
	}
	if !h.cfg.AllowedExtension(file.Filename) {
		return nil, NewBadRequestError(fmt.Sprintf("file type not allowed: %s", file.Filename), nil)
	}

	src, err := file.Open()
	if err != nil {
		return nil, NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return nil, NewInternalError("failed to save file", err)
	}
	return info, nil
}

func (h *PlanHandlerImpl) saveBase64(c echo.Context) (*models.FileInfo, error) {
	var req uploadPlanRequest
	if err := c.Bind(&req); err != nil {
		return nil, NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !h.cfg.AllowedExtension(req.Name) {
		return nil, NewBadRequestError(fmt.Sprintf("file type not allowed: %s", req.Name), nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return nil, NewInternalError("failed to save file", err)
	}
	return info, nil
}

// validatePlan reads the stored image header and records its format and
// size. Files that are not decodable plans are removed again.
func (h *PlanHandlerImpl) validatePlan(info *models.FileInfo) (*models.FileInfo, error) {
	reject := func(apiErr *APIError) (*models.FileInfo, error) {
		if err := h.store.Delete(info.ID); err != nil {
			slog.Warn("failed to remove rejected plan", "plan", shortID(info.ID), "err", err)
		}
		return nil, apiErr
	}

	if h.inspector == nil {
		return info, nil
	}

	path, err := h.store.GetFilePath(info.ID)
	if err != nil {
		return reject(NewInternalError("failed to locate stored file", err))
	}
	imgCfg, format, err := h.inspector.DecodeConfigFile(path)
	if err != nil {
		return reject(NewBadRequestError("invalid plan image", err))
	}
	if maxPixels := h.cfg.Processing.MaxImagePixels; maxPixels > 0 && imgCfg.Width*imgCfg.Height > maxPixels {
		return reject(NewBadRequestError("invalid plan image",
			fmt.Errorf("%w: %dx%d", plan.ErrImageTooLarge, imgCfg.Width, imgCfg.Height)))
	}

	info.Status = storage.StatusDecoded
	info.Format = format
	info.Width = imgCfg.Width
	info.Height = imgCfg.Height
	h.store.RegisterFile(info)
	return info, nil
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *PlanHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunkBytes(req.UploadID, req.ChunkIndex, decoded); err != nil {
		return NewBadRequestError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async processing
func (h *PlanHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}
	if !h.cfg.AllowedExtension(req.Name) {
		return NewBadRequestError(fmt.Sprintf("file type not allowed: %s", req.Name), nil)
	}
	if h.uploads == nil {
		return NewServiceUnavailableError("upload processing is not available")
	}

	job := h.uploads.StartJob(
		req.UploadID,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.CompressedSize,
		req.Encoding,
	)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadJobStream streams upload job status via SSE until the job
// completes or fails.
func (h *PlanHandlerImpl) HandleUploadJobStream(c echo.Context) error {
	jobID := c.Param("jobId")
	if h.uploads == nil {
		return NewServiceUnavailableError("upload processing is not available")
	}
	if _, ok := h.uploads.GetJob(jobID); !ok {
		return NewNotFoundError("upload job", jobID)
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		job, ok := h.uploads.GetJob(jobID)
		if !ok {
			return nil
		}

		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
			return nil
		}
		c.Response().Flush()

		if job.Finished() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// HandleGetRecentPlans returns the most recently uploaded plans
func (h *PlanHandlerImpl) HandleGetRecentPlans(c echo.Context) error {
	files, err := h.store.List(recentPlansLimit)
	if err != nil {
		return NewInternalError("failed to list plans", err)
	}
	if files == nil {
		files = []*models.FileInfo{}
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetPlan returns metadata for a specific plan
func (h *PlanHandlerImpl) HandleGetPlan(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("plan", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleGetPlanImage serves the stored plan image bytes
func (h *PlanHandlerImpl) HandleGetPlanImage(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if _, err := h.store.Get(id); err != nil {
		return NewNotFoundError("plan", id)
	}
	path, err := h.store.GetFilePath(id)
	if err != nil {
		return NewNotFoundError("plan", id)
	}
	return c.File(path)
}

// HandleDeletePlan deletes a plan and detaches it from every workspace
func (h *PlanHandlerImpl) HandleDeletePlan(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if !h.cfg.Security.AllowFileDeletion {
		return NewForbiddenError("plan deletion is disabled")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("plan", id)
	}

	if h.sessionMgr != nil {
		if n := h.sessionMgr.DetachPlan(id); n > 0 {
			slog.Info("detached deleted plan", "plan", shortID(id), "workspaces", n)
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// Request/Response types

type uploadPlanRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadPlanRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID       string `json:"uploadId"`
	Name           string `json:"name"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Encoding       string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
