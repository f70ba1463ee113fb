package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/plan-placer/backend/internal/api"
	"github.com/plan-placer/backend/internal/config"
	"github.com/plan-placer/backend/internal/logging"
	"github.com/plan-placer/backend/internal/plan"
	"github.com/plan-placer/backend/internal/roster"
	"github.com/plan-placer/backend/internal/session"
	"github.com/plan-placer/backend/internal/storage"
	"github.com/plan-placer/backend/internal/upload"
	"github.com/plan-placer/backend/internal/web"
	"github.com/plan-placer/backend/internal/workspace"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				p, err := defaultConfigPath()
				if err != nil {
					return err
				}
				configPath = p
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			level := cfg.Advanced.LogLevel
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, configPath, debug)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Configuration file (default: "+config.DefaultFileName+" next to the executable)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and error details")
	return cmd
}

func run(ctx context.Context, cfg *config.AppConfig, configPath string, debug bool) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	palette := loadPalette(cfg.Storage.PaletteFile)
	registry := plan.NewRegistry()
	loader := plan.NewLoader(fileStore, registry, cfg.Processing.MaxImagePixels)
	uploadMgr := upload.NewManager(fileStore, registry, cfg.Processing.MaxImagePixels)

	wsOpts := workspace.Options{
		Viewport: cfg.ViewportOptions(),
		Palette:  palette,
	}
	if palette != nil && palette.Highlight != "" {
		wsOpts.Viewport.HighlightColor = palette.Highlight
	}
	sessionMgr := session.NewManager(func(id string) *workspace.Workspace {
		return workspace.New(id, loader, wsOpts)
	}, cfg.Processing.MaxWorkspaces)
	defer sessionMgr.Close()

	go runCleanup(ctx, cfg, sessionMgr, uploadMgr, fileStore)

	embeddedMode := web.HasEmbeddedFiles()
	e := newEcho(cfg)
	api.SetupMiddleware(e, debug)

	handlers := api.NewHandlers(&api.Dependencies{
		Store:      fileStore,
		SessionMgr: sessionMgr,
		UploadMgr:  uploadMgr,
		Inspector:  registry,
		Config:     cfg,
		Version:    Version,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			slog.Warn("failed to register static routes", "err", err)
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Fprintln(os.Stdout, banner(bannerInfo{
		Version:    Version,
		BuildTime:  BuildTime,
		Embedded:   embeddedMode,
		ConfigPath: configPath,
		Listen:     cfg.GetServerAddr(),
		DataDir:    cfg.GetDataDir(),
		Formats:    registry.Formats(),
	}))

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// newEcho builds the Echo instance with the middleware stack from cfg.
func newEcho(cfg *config.AppConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/keepalive") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	streaming := func(c echo.Context) bool {
		path := c.Request().URL.Path
		return strings.HasSuffix(path, "/ws") ||
			strings.HasSuffix(path, "/status") ||
			c.Request().Header.Get("Accept") == "text/event-stream"
	}

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return streaming(c) || strings.Contains(c.Request().URL.Path, "/upload")
		},
		ErrorMessage: "Request timeout",
	}))

	if cfg.Advanced.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				return streaming(c) || strings.HasSuffix(c.Request().URL.Path, "/image")
			},
		}))
	}

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: splitOrigins(cfg.Server.AllowOrigins),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	return e
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// loadPalette reads the marker palette. A missing file means random colors.
func loadPalette(path string) *roster.Palette {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("no palette file, using random colors", "path", path)
		return nil
	}
	p, err := roster.LoadPalette(path)
	if err != nil {
		slog.Warn("ignoring invalid palette", "path", path, "err", err)
		return nil
	}
	slog.Info("palette loaded", "path", path, "colors", len(p.Colors))
	return p
}

// runCleanup periodically drops idle workspaces, finished upload jobs and
// abandoned chunks.
func runCleanup(ctx context.Context, cfg *config.AppConfig, sessions *session.Manager, uploads *upload.Manager, store *storage.LocalStore) {
	interval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	sessionAge := time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute
	if sessionAge <= 0 {
		sessionAge = session.SessionMaxAge
	}
	jobAge := time.Duration(cfg.Processing.UploadJobRetention) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := sessions.CleanupOldSessions(sessionAge)
			j := uploads.CleanupOldJobs(jobAge)
			c := store.CleanupStaleChunks(jobAge)
			if n+j+c > 0 {
				slog.Info("cleanup", "workspaces", n, "jobs", j, "chunks", c)
			}
		}
	}
}
