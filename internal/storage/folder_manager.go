package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// FolderManager manages one output folder per batch run
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// CreateRunFolder creates {baseDir}/{runID}/ and returns its path
func (m *FolderManager) CreateRunFolder(runID string) (string, error) {
	safeName := m.SanitizeFolderName(runID)
	if safeName == "" {
		return "", fmt.Errorf("cannot create folder: empty run ID")
	}
	folderPath := filepath.Join(m.baseDir, safeName)

	// Create the directory (including any parent directories)
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create run folder",
			zap.String("run_id", runID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	m.logger.Debug("Created run folder",
		zap.String("run_id", runID),
		zap.String("folder_path", folderPath))

	return folderPath, nil
}

// GetRunFolderPath returns the path for a run folder
// Does not create the folder if it doesn't exist
func (m *FolderManager) GetRunFolderPath(runID string) string {
	return filepath.Join(m.baseDir, m.SanitizeFolderName(runID))
}

// FolderExists checks if a run folder already exists
func (m *FolderManager) FolderExists(runID string) bool {
	info, err := os.Stat(m.GetRunFolderPath(runID))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// DeleteRunFolder removes a run folder and all contents
func (m *FolderManager) DeleteRunFolder(runID string) error {
	if m.SanitizeFolderName(runID) == "" {
		return fmt.Errorf("cannot delete folder: empty run ID")
	}
	folderPath := m.GetRunFolderPath(runID)

	if err := os.RemoveAll(folderPath); err != nil {
		m.logger.Error("Failed to delete run folder",
			zap.String("run_id", runID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	m.logger.Debug("Deleted run folder",
		zap.String("run_id", runID),
		zap.String("folder_path", folderPath))

	return nil
}

// SanitizeFolderName returns a filesystem-safe version of the name
// Removes path separators and special characters to prevent directory traversal
func (m *FolderManager) SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	return unsafeFolderChars.ReplaceAllString(name, "")
}
