// Package config provides XML-based configuration for the plan placer
// server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/plan-placer/backend/internal/viewport"
)

// DefaultFileName is the config file looked up next to the executable.
const DefaultFileName = "PlanPlacer.config"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"PlanPlacer"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Processing ProcessingConfig `xml:"Processing"`
	Security   SecurityConfig   `xml:"Security"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
	Viewport   ViewportConfig   `xml:"Viewport"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	PaletteFile      string `xml:"PaletteFile"`
	MaxUploadSize    string `xml:"MaxUploadSize"`
}

// ProcessingConfig contains plan decoding and session settings
type ProcessingConfig struct {
	MaxWorkspaces          int `xml:"MaxWorkspaces"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
	MaxImagePixels         int `xml:"MaxImagePixels"`
	UploadJobRetention     int `xml:"UploadJobRetentionMinutes"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool   `xml:"AllowFileDeletion"`
	AllowedFileTypes  string `xml:"AllowedFileTypes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	EnableCompression       bool   `xml:"EnableCompression"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// ViewportConfig tunes the plan viewport.
type ViewportConfig struct {
	DefaultZoom    float64 `xml:"DefaultZoom"`
	ZoomFactor     float64 `xml:"ZoomFactor"`
	MinZoom        float64 `xml:"MinZoom"`
	MaxZoom        float64 `xml:"MaxZoom"`
	CameraDistance float64 `xml:"CameraDistance"`
	MarkerWidth    float64 `xml:"MarkerWidth"`
	MarkerHeight   float64 `xml:"MarkerHeight"`
	HighlightColor string  `xml:"HighlightColor"`
	BackdropDepth  float64 `xml:"BackdropDepth"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	vp := viewport.DefaultOptions()
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "200M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			PaletteFile:      "./data/defaults/palette.yaml",
			MaxUploadSize:    "200M",
		},
		Processing: ProcessingConfig{
			MaxWorkspaces:          10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			MaxImagePixels:         100_000_000,
			UploadJobRetention:     60,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			AllowedFileTypes:  ".png,.jpg,.jpeg,.gif,.bmp,.tif,.tiff,.webp,.gz",
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			EnableCompression:       true,
			WebSocketMaxMessageSize: 64,
		},
		Viewport: ViewportConfig{
			DefaultZoom:    vp.Rig.DefaultZoom,
			ZoomFactor:     vp.Rig.ZoomFactor,
			MinZoom:        vp.Rig.MinZoom,
			MaxZoom:        vp.Rig.MaxZoom,
			CameraDistance: vp.Rig.Distance,
			MarkerWidth:    vp.MarkerWidth,
			MarkerHeight:   vp.MarkerHeight,
			HighlightColor: vp.HighlightColor,
			BackdropDepth:  vp.BackdropDepth,
		},
	}
}

// LoadConfig loads configuration from an XML file, writing the defaults
// there first if it does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	var config *AppConfig

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Start from defaults so sections missing from older files keep
		// working values.
		config = DefaultConfig()
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Plan Placer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the viewport cannot work with.
func (c *AppConfig) Validate() error {
	v := c.Viewport
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid config: Server.Port %d out of range", c.Server.Port)
	case v.MinZoom <= 0 || v.MaxZoom < v.MinZoom:
		return fmt.Errorf("invalid config: Viewport zoom range [%g, %g]", v.MinZoom, v.MaxZoom)
	case v.ZoomFactor <= 1:
		return fmt.Errorf("invalid config: Viewport.ZoomFactor %g must be greater than 1", v.ZoomFactor)
	case v.CameraDistance <= 0:
		return fmt.Errorf("invalid config: Viewport.CameraDistance %g must be positive", v.CameraDistance)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves the uploads directory along with it.
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = strings.ToLower(level)
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.PaletteFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ViewportOptions converts the Viewport section for the scene.
func (c *AppConfig) ViewportOptions() viewport.Options {
	v := c.Viewport
	return viewport.Options{
		Rig: viewport.RigOptions{
			DefaultZoom: v.DefaultZoom,
			ZoomFactor:  v.ZoomFactor,
			MinZoom:     v.MinZoom,
			MaxZoom:     v.MaxZoom,
			Distance:    v.CameraDistance,
		},
		MarkerWidth:    v.MarkerWidth,
		MarkerHeight:   v.MarkerHeight,
		HighlightColor: v.HighlightColor,
		BackdropDepth:  v.BackdropDepth,
	}
}

// AllowedExtension reports whether name has one of AllowedFileTypes.
// An empty list allows everything.
func (c *AppConfig) AllowedExtension(name string) bool {
	if strings.TrimSpace(c.Security.AllowedFileTypes) == "" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range strings.Split(c.Security.AllowedFileTypes, ",") {
		if strings.TrimSpace(strings.ToLower(allowed)) == ext {
			return true
		}
	}
	return false
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
