// mock_storage.go - In-memory plan storage for handler tests
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/plan-placer/backend/internal/models"
	"github.com/plan-placer/backend/internal/storage"
)

// MockStorage implements storage.Store in memory.
type MockStorage struct {
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	chunks   map[string]map[int][]byte // uploadID -> chunkIndex -> data
	mu       sync.RWMutex
}

// NewMockStorage creates an empty mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
		chunks:   make(map[string]map[int][]byte),
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, data)
}

func (m *MockStorage) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeLocked(generateTestID(), name, data), nil
}

func (m *MockStorage) storeLocked(id, name string, data []byte) *models.FileInfo {
	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     storage.StatusUploaded,
	}
	m.files[id] = file
	m.fileData[id] = data
	cp := *file
	return &cp
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	cp := *file
	return &cp, nil
}

// List returns files newest first.
func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.FileInfo, 0, len(m.files))
	for _, file := range m.files {
		cp := *file
		files = append(files, &cp)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}

	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}

	file.Name = newName
	cp := *file
	return &cp, nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return "/mock/path/" + id, nil
}

func (m *MockStorage) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return m.SaveChunkBytes(uploadID, chunkIndex, data)
}

func (m *MockStorage) SaveChunkBytes(uploadID string, chunkIndex int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.chunks[uploadID] == nil {
		m.chunks[uploadID] = make(map[int][]byte)
	}
	m.chunks[uploadID][chunkIndex] = data
	return nil
}

func (m *MockStorage) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uploadChunks, ok := m.chunks[uploadID]
	if !ok {
		return nil, fmt.Errorf("%w: upload %s", storage.ErrNotFound, uploadID)
	}

	var data bytes.Buffer
	for i := 0; i < totalChunks; i++ {
		chunk, ok := uploadChunks[i]
		if !ok {
			return nil, fmt.Errorf("missing chunk %d", i)
		}
		data.Write(chunk)
	}

	delete(m.chunks, uploadID)
	return m.storeLocked(generateTestID(), name, data.Bytes()), nil
}

// RegisterFile replaces the stored metadata for info.ID.
func (m *MockStorage) RegisterFile(info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *info
	m.files[info.ID] = &cp
}

var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddFile adds a file directly to the mock
func (m *MockStorage) AddFile(id string, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeLocked(id, name, data)
}

// GetFileData returns the file content
func (m *MockStorage) GetFileData(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return data, nil
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}

// MockStorageWithTempDir is a mock storage that also writes file contents
// under tempDir, for code that decodes plans from disk.
type MockStorageWithTempDir struct {
	MockStorage
	tempDir string
}

// NewMockStorageWithTempDir creates a mock storage writing into tempDir.
func NewMockStorageWithTempDir(tempDir string) *MockStorageWithTempDir {
	return &MockStorageWithTempDir{
		MockStorage: *NewMockStorage(),
		tempDir:     tempDir,
	}
}

func (m *MockStorageWithTempDir) Save(name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, data)
}

func (m *MockStorageWithTempDir) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	return m.write(generateTestID(), name, data)
}

// AddFile writes the file to disk and adds it to the mock
func (m *MockStorageWithTempDir) AddFile(id string, name string, data []byte) *models.FileInfo {
	info, err := m.write(id, name, data)
	if err != nil {
		panic(fmt.Sprintf("failed to write test file: %v", err))
	}
	return info
}

func (m *MockStorageWithTempDir) write(id, name string, data []byte) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.WriteFile(filepath.Join(m.tempDir, id), data, 0644); err != nil {
		return nil, err
	}
	return m.storeLocked(id, name, data), nil
}

// GetFilePath returns the actual file path on disk
func (m *MockStorageWithTempDir) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return filepath.Join(m.tempDir, id), nil
}

var _ storage.Store = (*MockStorageWithTempDir)(nil)
