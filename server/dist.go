package server

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// DistManager tracks the directory of built assets being served and can swap
// it at runtime. An invalid directory marks the manager unhealthy but keeps
// the previous file system in place.
type DistManager struct {
	mu        sync.RWMutex
	fsys      fs.FS
	location  string
	indexFile string
	isHealthy bool
	lastError error
}

// NewDistManager creates a manager serving dir from disk. It never fails on an
// invalid directory; the manager starts unhealthy instead.
func NewDistManager(dir, indexFile string) *DistManager {
	dm := &DistManager{location: dir, indexFile: indexFile}
	if err := dm.Reload(dir); err != nil {
		log.Printf("[DistManager] Warning: %v", err)
		log.Printf("[DistManager] Serving %s while unhealthy", dir)
		dm.mu.Lock()
		dm.fsys = os.DirFS(dir)
		dm.mu.Unlock()
	}
	return dm
}

// NewEmbeddedDistManager creates a manager serving an embedded file system
func NewEmbeddedDistManager(fsys fs.FS, indexFile string) *DistManager {
	dm := &DistManager{fsys: fsys, location: "embedded", indexFile: indexFile}
	if err := checkIndex(fsys, indexFile); err != nil {
		dm.lastError = err
		log.Printf("[DistManager] Warning: embedded assets: %v", err)
	} else {
		dm.isHealthy = true
	}
	return dm
}

// Reload validates dir and, when valid, starts serving it
func (dm *DistManager) Reload(dir string) error {
	absDir, err := validateDistDirectory(dir, dm.indexFile)
	if err != nil {
		dm.mu.Lock()
		dm.isHealthy = false
		dm.lastError = err
		dm.mu.Unlock()
		return fmt.Errorf("validation failed: %w", err)
	}

	dm.mu.Lock()
	dm.fsys = os.DirFS(absDir)
	dm.location = absDir
	dm.isHealthy = true
	dm.lastError = nil
	dm.mu.Unlock()

	log.Printf("[DistManager] Serving %s", absDir)
	return nil
}

// FS returns the file system currently served
func (dm *DistManager) FS() fs.FS {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.fsys
}

// Location returns the served directory, or "embedded"
func (dm *DistManager) Location() string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.location
}

// IsHealthy returns whether the served directory passed validation
func (dm *DistManager) IsHealthy() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.isHealthy
}

// GetInfo returns the state reported by the health endpoint
func (dm *DistManager) GetInfo() map[string]interface{} {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	info := map[string]interface{}{
		"root":    dm.location,
		"healthy": dm.isHealthy,
		"error":   nil,
	}
	if dm.lastError != nil {
		info["error"] = dm.lastError.Error()
	}
	return info
}

func validateDistDirectory(dir, indexFile string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory does not exist: %s", dir)
		}
		return "", fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	if err := checkIndex(os.DirFS(absDir), indexFile); err != nil {
		return "", err
	}
	return absDir, nil
}

func checkIndex(fsys fs.FS, indexFile string) error {
	if indexFile == "" {
		return nil
	}
	if _, err := fs.Stat(fsys, indexFile); err != nil {
		return fmt.Errorf("missing %s", indexFile)
	}
	return nil
}
