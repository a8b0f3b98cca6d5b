// Package staging keeps captured photos in a private on-disk area until the
// batch for their load has been uploaded.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"fieldops/internal/fsstore"
	"fieldops/internal/model"
)

type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("staging %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store stages the photos of one load. Only one Store per load may be open
// at a time, across processes.
type Store struct {
	root       string
	loadNumber string
	lock       fsstore.Lock
	logger     *zap.Logger
}

func ValidateLoadNumber(loadNumber string) error {
	v := strings.TrimSpace(loadNumber)
	if v == "" {
		return fmt.Errorf("load number is required")
	}
	if v != loadNumber || strings.ContainsAny(v, `/\`) || v == "." || v == ".." || strings.HasPrefix(v, ".") {
		return fmt.Errorf("load number %q cannot be used as a file name prefix", loadNumber)
	}
	return nil
}

func Open(root, loadNumber string, logger *zap.Logger) (*Store, error) {
	if err := ValidateLoadNumber(loadNumber); err != nil {
		return nil, err
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("staging root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := fsstore.Mkdir(root, fsstore.PrivateDirPerm); err != nil {
		return nil, &StorageError{Op: "open", Path: root, Err: err}
	}
	lock, err := fsstore.AcquireLock(root, "."+loadNumber+".capture.lock")
	if err != nil {
		return nil, fmt.Errorf("open staging for load %s: %w", loadNumber, err)
	}
	return &Store{
		root:       root,
		loadNumber: loadNumber,
		lock:       lock,
		logger:     logger.With(zap.String("load", loadNumber)),
	}, nil
}

func (s *Store) Close() error {
	return s.lock.Release()
}

func (s *Store) Root() string {
	return s.root
}

// PathFor is the staged location of fileName: {root}/{fileName}.
func (s *Store) PathFor(fileName string) string {
	return filepath.Join(s.root, fileName)
}

// Stage moves the image at src into the staging area under fileName,
// replacing any earlier shot with the same name.
func (s *Store) Stage(src, label, fileName string) (model.StagedPhoto, error) {
	if fileName == "" || filepath.Base(fileName) != fileName || strings.HasPrefix(fileName, ".") {
		return model.StagedPhoto{}, &StorageError{Op: "stage", Path: fileName, Err: errors.New("invalid file name")}
	}
	if !strings.HasPrefix(fileName, s.loadNumber) {
		return model.StagedPhoto{}, &StorageError{Op: "stage", Path: fileName, Err: fmt.Errorf("file does not belong to load %s", s.loadNumber)}
	}
	dst := s.PathFor(fileName)
	if err := fsstore.MoveFile(src, dst, fsstore.PrivateFilePerm); err != nil {
		return model.StagedPhoto{}, &StorageError{Op: "stage", Path: dst, Err: err}
	}
	s.logger.Debug("photo staged", zap.String("label", label), zap.String("path", dst))
	return model.StagedPhoto{Label: label, FileName: fileName, LocalPath: dst}, nil
}

// Purge deletes the staged files. Missing files are not an error.
func (s *Store) Purge(photos []model.StagedPhoto) error {
	var errs []error
	for _, p := range photos {
		if err := os.Remove(p.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, &StorageError{Op: "purge", Path: p.LocalPath, Err: err})
		}
	}
	if len(errs) == 0 {
		s.logger.Info("staged photos purged", zap.Int("count", len(photos)))
	}
	return errors.Join(errs...)
}
