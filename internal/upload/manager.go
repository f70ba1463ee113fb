// Package upload turns chunked plan uploads into validated stored plans.
package upload

import (
	"compress/gzip"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plan-placer/backend/internal/models"
)

// Status represents the upload processing status.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusValidating    Status = "validating"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// File status values written back to the store.
const (
	fileStatusDecoded = "decoded"
	fileStatusInvalid = "invalid"
)

// Job represents an async upload processing job.
type Job struct {
	ID             string           `json:"id"`
	UploadID       string           `json:"uploadId"`
	FileName       string           `json:"fileName"`
	TotalChunks    int              `json:"totalChunks"`
	OriginalSize   int64            `json:"originalSize"`
	CompressedSize int64            `json:"compressedSize"`
	Encoding       string           `json:"encoding"`
	Status         Status           `json:"status"`
	Progress       float64          `json:"progress"`
	Stage          string           `json:"stage"`
	StageProgress  float64          `json:"stageProgress"`
	FileInfo       *models.FileInfo `json:"fileInfo,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`

	done chan struct{}
}

// Done is closed once the job completes or fails.
func (j *Job) Done() <-chan struct{} { return j.done }

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// Store defines the interface needed from storage layer.
type Store interface {
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	RegisterFile(info *models.FileInfo)
}

// ImageInspector reads image dimensions and format without decoding pixels.
type ImageInspector interface {
	DecodeConfigFile(path string) (image.Config, string, error)
}

// Manager handles async upload processing.
type Manager struct {
	jobs      map[string]*Job
	mu        sync.RWMutex
	store     Store
	inspector ImageInspector
	maxPixels int
}

// NewManager creates an upload manager. maxPixels <= 0 disables the size cap.
func NewManager(store Store, inspector ImageInspector, maxPixels int) *Manager {
	return &Manager{
		jobs:      make(map[string]*Job),
		store:     store,
		inspector: inspector,
		maxPixels: maxPixels,
	}
}

// StartJob begins async processing of an upload.
func (m *Manager) StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *Job {
	job := &Job{
		ID:             uuid.New().String(),
		UploadID:       uploadID,
		FileName:       fileName,
		TotalChunks:    totalChunks,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Encoding:       encoding,
		Status:         StatusProcessing,
		Stage:          "preparing",
		CreatedAt:      time.Now(),
		done:           make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.processJob(job)

	return job
}

// GetJob returns a snapshot of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snap := *job
	return &snap, true
}

func (m *Manager) logger(job *Job) *slog.Logger {
	return slog.With("job", job.ID[:8])
}

func (m *Manager) processJob(job *Job) {
	log := m.logger(job)
	log.Info("processing upload", "file", job.FileName, "chunks", job.TotalChunks)

	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 0)

	info, err := m.store.CompleteChunkedUpload(job.UploadID, job.FileName, job.TotalChunks)
	if err != nil {
		m.markJobError(job, fmt.Sprintf("failed to assemble chunks: %v", err))
		return
	}

	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 100)
	log.Debug("chunks assembled", "file", info.ID[:8], "bytes", info.Size)

	if job.Encoding == "gzip" || job.Encoding == "binary-gzip" {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 0)

		if err := m.gunzipInPlace(job, info.ID); err != nil {
			// The file may not have been compressed after all; validation decides.
			log.Warn("decompression failed, keeping file as uploaded", "file", info.ID[:8], "err", err)
		} else {
			info.Size = job.OriginalSize
			m.store.RegisterFile(info)
		}

		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 100)
	}

	m.updateJobStatus(job, StatusValidating, "validating image", 0)
	if err := m.validate(info); err != nil {
		info.Status = fileStatusInvalid
		m.store.RegisterFile(info)
		m.markJobError(job, err.Error())
		return
	}
	m.updateJobStatus(job, StatusValidating, "validating image", 100)

	m.mu.Lock()
	job.FileInfo = info
	m.mu.Unlock()
	m.markJobComplete(job)
	log.Info("upload complete", "file", info.ID[:8], "format", info.Format,
		"width", info.Width, "height", info.Height)
}

// validate records the image format and dimensions on info.
func (m *Manager) validate(info *models.FileInfo) error {
	if m.inspector == nil {
		return nil
	}
	path, err := m.store.GetFilePath(info.ID)
	if err != nil {
		return err
	}

	cfg, format, err := m.inspector.DecodeConfigFile(path)
	if err != nil {
		return fmt.Errorf("invalid plan image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid plan image: empty %dx%d", cfg.Width, cfg.Height)
	}
	if m.maxPixels > 0 && cfg.Width*cfg.Height > m.maxPixels {
		return fmt.Errorf("plan image too large: %dx%d", cfg.Width, cfg.Height)
	}

	info.Format = format
	info.Width = cfg.Width
	info.Height = cfg.Height
	info.Status = fileStatusDecoded
	m.store.RegisterFile(info)
	return nil
}

// progressWriter reports decompression progress at most every 100ms.
type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	last    time.Time
	report  func(pct float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.total > 0 && time.Since(p.last) > 100*time.Millisecond {
		p.report(min(float64(p.written)/float64(p.total)*100, 99))
		p.last = time.Now()
	}
	return n, err
}

// gunzipInPlace replaces the stored file with its decompressed content.
// Files without the gzip magic are left untouched.
func (m *Manager) gunzipInPlace(job *Job, fileID string) error {
	path, err := m.store.GetFilePath(fileID)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	zr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("not a gzip file: %w", err)
	}
	defer zr.Close()

	tmp := path + ".gunzip"
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}
	pw := &progressWriter{w: dst, total: job.OriginalSize, last: time.Now(), report: func(pct float64) {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", pct)
	}}
	_, err = io.Copy(pw, zr)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && job.OriginalSize > 0 && pw.written != job.OriginalSize {
		err = fmt.Errorf("decompressed size mismatch: got %d bytes, want %d", pw.written, job.OriginalSize)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if job.OriginalSize <= 0 {
		m.mu.Lock()
		job.OriginalSize = pw.written
		m.mu.Unlock()
	}
	return os.Rename(tmp, path)
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, status Status, stage string, stageProgress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage
	job.StageProgress = stageProgress

	// Assembling: 0-40%, Decompressing: 40-80%, Validating: 80-100%
	switch status {
	case StatusAssembling:
		job.Progress = stageProgress * 0.4
	case StatusDecompressing:
		job.Progress = 40 + stageProgress*0.4
	case StatusValidating:
		job.Progress = 80 + stageProgress*0.2
	case StatusComplete:
		job.Progress = 100
	}
}

func (m *Manager) markJobComplete(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "complete"
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
	close(job.done)
}

func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	close(job.done)
	m.logger(job).Error("upload failed", "err", errMsg)
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.Finished() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}
