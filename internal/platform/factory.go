package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/docsync/pkg/adapters/fs"
	"github.com/aretw0/docsync/pkg/core"
	"github.com/aretw0/docsync/pkg/engine"
)

// New creates a docsync engine for the workspace at root.
//
//	eng, err := docsync.New("./notes", docsync.WithDebounce(500*time.Millisecond))
//
// Unless storage is injected with WithStorage, documents live on the local
// filesystem under root and changes are observed with fsnotify.
func New(root string, opts ...Option) (*engine.Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	storage := o.storage
	notifier := o.notifier
	workspace := ""

	if storage == nil {
		fsStorage, err := initFS(root, o, logger)
		if err != nil {
			return nil, err
		}
		storage = fsStorage
		workspace = fsStorage.Root()

		if notifier == nil && !o.noWatch {
			fsNotifier, err := initNotifier(o, logger)
			if err != nil {
				return nil, err
			}
			notifier = fsNotifier
		}
	}

	debounce, _ := o.config["debounce"].(time.Duration)
	window, _ := o.config["protection_window"].(time.Duration)

	return engine.New(storage, notifier, engine.Config{
		Debounce:         debounce,
		ProtectionWindow: window,
		Logger:           logger,
		Root:             workspace,
	}), nil
}

// initFS handles the initialization logic for the filesystem storage.
func initFS(path string, o *options, logger *slog.Logger) (*fs.Storage, error) {
	autoInit, _ := o.config["auto_init"].(bool)
	tempDir, _ := o.config["temp_dir"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	isReadOnly, _ := o.config["read_only"].(bool)

	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}

	// Read-only workspaces are inherently safe.
	bypassSafety := isReadOnly || !devSafety

	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolvedPath := ResolveWorkspacePath(path, useTemp)

	if IsDevRun() {
		if bypassSafety {
			if isReadOnly {
				logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolvedPath)
			} else {
				logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolvedPath)
			}
		} else {
			logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolvedPath)
		}
	}
	if useTemp {
		logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolvedPath)
	}

	// Versioning follows the workspace unless configured.
	versioning, ok := o.config["versioning"].(bool)
	if !ok {
		if _, err := os.Stat(filepath.Join(resolvedPath, ".git")); err == nil {
			versioning = true
		}
		logger.Debug("auto-detected versioning", "enabled", versioning)
	}

	mustExist := !autoInit && !useTemp
	if mustExist || isReadOnly {
		info, err := os.Stat(resolvedPath)
		if err != nil {
			return nil, fmt.Errorf("workspace path does not exist: %s", resolvedPath)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("workspace path is not a directory: %s", resolvedPath)
		}
	}

	storage := fs.NewStorage(fs.StorageConfig{
		Root:       resolvedPath,
		ReadOnly:   isReadOnly,
		Versioning: versioning && !isReadOnly,
		AutoInit:   autoInit || useTemp,
		SystemDir:  systemDir,
		Logger:     logger,
	})
	if err := storage.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return storage, nil
}

func initNotifier(o *options, logger *slog.Logger) (core.Notifier, error) {
	batchWindow, _ := o.config["batch_window"].(time.Duration)
	eventBuffer, _ := o.config["event_buffer"].(int)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	var ignore []string
	if patterns, ok := o.config["ignore"].([]string); ok {
		ignore = patterns
	}

	return fs.NewNotifier(fs.NotifierConfig{
		BatchWindow:  batchWindow,
		EventBuffer:  eventBuffer,
		Ignore:       ignore,
		Logger:       logger,
		ErrorHandler: errorHandler,
	})
}
