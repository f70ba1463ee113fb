// Package storage keeps uploaded plan files on the local filesystem.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plan-placer/backend/internal/models"
)

// ErrNotFound is returned for unknown file ids.
var ErrNotFound = errors.New("file not found")

// Status values recorded on FileInfo.
const (
	StatusUploaded = "uploaded"
	StatusDecoded  = "decoded"
	StatusInvalid  = "invalid"
)

// Store defines the interface for plan file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	SaveBytes(name string, data []byte) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	GetFilePath(id string) (string, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	SaveChunkBytes(uploadID string, chunkIndex int, data []byte) error
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
	RegisterFile(info *models.FileInfo)
}

// LocalStore implements Store using the local filesystem. File contents live
// under uploadDir named by id; metadata is kept in memory.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}, nil
}

// Save writes r to a new file.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	size, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     StatusUploaded,
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()

	slog.Debug("plan file saved", "file", shortID(id), "name", name, "bytes", size)
	return copyInfo(info), nil
}

// SaveBytes writes data to a new file.
func (s *LocalStore) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	return s.Save(name, bytes.NewReader(data))
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return copyInfo(info), nil
}

// List returns the most recent files, newest first. limit <= 0 lists all.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, copyInfo(info))
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// Rename updates the display name of a file.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	info.Name = newName
	return copyInfo(info), nil
}

// GetFilePath returns the path to a file's contents.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return filepath.Join(s.uploadDir, id), nil
}

// SaveChunk saves a single chunk to a temporary location.
func (s *LocalStore) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	if chunkIndex < 0 {
		return fmt.Errorf("invalid chunk index %d", chunkIndex)
	}
	chunkDir, err := s.chunkDir(uploadID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	path := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", chunkIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}

	return nil
}

// SaveChunkBytes saves a chunk held in memory.
func (s *LocalStore) SaveChunkBytes(uploadID string, chunkIndex int, data []byte) error {
	return s.SaveChunk(uploadID, chunkIndex, bytes.NewReader(data))
}

// CompleteChunkedUpload assembles all chunks into a final file. The chunk
// directory is removed on success.
func (s *LocalStore) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	if totalChunks <= 0 {
		return nil, fmt.Errorf("invalid chunk count %d", totalChunks)
	}
	chunkDir, err := s.chunkDir(uploadID)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	finalPath := filepath.Join(s.uploadDir, id)

	out, err := os.Create(finalPath)
	if err != nil {
		return nil, fmt.Errorf("creating final file: %w", err)
	}

	totalSize, err := appendChunks(out, chunkDir, totalChunks)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(finalPath)
		return nil, err
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       totalSize,
		UploadedAt: time.Now(),
		Status:     StatusUploaded,
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()

	os.RemoveAll(chunkDir)

	return copyInfo(info), nil
}

func appendChunks(out io.Writer, chunkDir string, totalChunks int) (int64, error) {
	var total int64
	for i := 0; i < totalChunks; i++ {
		in, err := os.Open(filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			return 0, fmt.Errorf("opening chunk %d: %w", i, err)
		}

		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			return 0, fmt.Errorf("copying chunk %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

// RegisterFile records (or replaces) metadata for a file already on disk.
func (s *LocalStore) RegisterFile(info *models.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = copyInfo(info)
}

// CleanupStaleChunks removes chunk directories untouched for maxAge.
func (s *LocalStore) CleanupStaleChunks(maxAge time.Duration) int {
	root := filepath.Join(s.uploadDir, "chunks")
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil || !e.IsDir() || fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		slog.Info("removed stale upload chunks", "uploads", removed)
	}
	return removed
}

func (s *LocalStore) chunkDir(uploadID string) (string, error) {
	if uploadID == "" || uploadID != filepath.Base(uploadID) || uploadID == "." || uploadID == ".." {
		return "", fmt.Errorf("invalid upload id %q", uploadID)
	}
	return filepath.Join(s.uploadDir, "chunks", uploadID), nil
}

func copyInfo(info *models.FileInfo) *models.FileInfo {
	c := *info
	return &c
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
