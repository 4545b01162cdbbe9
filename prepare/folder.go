package prepare

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/andys/moviesync/errs"
)

// CreateFolder creates path and its parents if missing.
func CreateFolder(path string, log *slog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		log.Info("folder already exists", "path", path)
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	log.Info("folder created", "path", path)
	return nil
}

// RemoveFolder deletes path and its contents. A missing folder returns an
// errs.NotFound error and a denied delete an errs.Permission error; both
// are meant to be logged as warnings.
func RemoveFolder(path string) error {
	clean := filepath.Clean(path)
	if clean == "." || clean == string(filepath.Separator) {
		return errs.Errorf(errs.Configuration, "remove folder", "refusing to delete %q", path)
	}
	if _, err := os.Stat(clean); errors.Is(err, fs.ErrNotExist) {
		return errs.Errorf(errs.NotFound, "remove folder", "folder %s not found", clean)
	}
	if err := os.RemoveAll(clean); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return errs.Errorf(errs.Permission, "remove folder", "permission denied, unable to delete %s", clean)
		}
		return fmt.Errorf("failed to delete %s: %w", clean, err)
	}
	return nil
}
