package storage

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileType represents the type of file being stored
type FileType int

const (
	FileTypeGeneric FileType = iota
	FileTypePDF
	FileTypeZIP
	FileTypePNG
)

func (t FileType) String() string {
	switch t {
	case FileTypePDF:
		return "pdf"
	case FileTypeZIP:
		return "zip"
	case FileTypePNG:
		return "png"
	default:
		return "generic"
	}
}

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// SaveFile writes content to the specified full path
	// Creates parent directories if needed
	SaveFile(fullPath string, content []byte) error

	// SaveFileWithType allows type-specific handling
	SaveFileWithType(fullPath string, content []byte, fileType FileType) error

	// SaveArchiveEntries unpacks a ZIP archive into separate files
	SaveArchiveEntries(dir string, archive []byte) ([]string, error)

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(fullPath string) error
}

var _ FileStorage = (*LocalFileStorage)(nil)

// LocalFileStorage implements FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// BaseDir returns the directory every stored file lives under
func (s *LocalFileStorage) BaseDir() string {
	return s.baseDir
}

// SaveFile writes content to the specified full path
func (s *LocalFileStorage) SaveFile(fullPath string, content []byte) error {
	return s.SaveFileWithType(fullPath, content, FileTypeGeneric)
}

// SaveFileWithType writes content with type-specific handling.
// The file is written next to its destination first and then renamed, so a
// reader never sees a partial voucher.
func (s *LocalFileStorage) SaveFileWithType(fullPath string, content []byte, fileType FileType) error {
	// Validate path security
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}
	if err := checkSignature(content, fileType); err != nil {
		return err
	}

	// Create parent directories
	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(parentDir, ".tmp-"+filepath.Base(fullPath)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(content)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmpName, fullPath)
	}
	if werr != nil {
		os.Remove(tmpName)
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(werr))
		return fmt.Errorf("failed to write file: %w", werr)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)),
		zap.Stringer("file_type", fileType))

	return nil
}

// SaveArchiveEntries unpacks every file of a ZIP archive into dir and
// returns the written paths in archive order
func (s *LocalFileStorage) SaveArchiveEntries(dir string, archive []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	paths := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(dir, filepath.Base(filepath.FromSlash(f.Name)))
		content, err := readEntry(f)
		if err != nil {
			return paths, err
		}
		fileType := FileTypeGeneric
		if strings.EqualFold(filepath.Ext(target), ".pdf") {
			fileType = FileTypePDF
		}
		if err := s.SaveFileWithType(target, content, fileType); err != nil {
			return paths, err
		}
		paths = append(paths, target)
	}
	return paths, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
	}
	return content, nil
}

// checkSignature rejects content that does not match its declared type
func checkSignature(content []byte, fileType FileType) error {
	var magic []byte
	switch fileType {
	case FileTypePDF:
		magic = []byte("%PDF")
	case FileTypeZIP:
		magic = []byte("PK")
	case FileTypePNG:
		magic = []byte("\x89PNG")
	default:
		return nil
	}
	if !bytes.HasPrefix(content, magic) {
		return fmt.Errorf("content is not a %s file", fileType)
	}
	return nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	// Resolve to absolute path
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	// Check path is within base directory
	// Proper check: ensure path starts with base + separator or equals base
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
