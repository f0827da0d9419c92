// Package storage provides ReportStore implementations persisting the only
// artifacts this module owns: an encoded JPEG plus its validation summary.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
)

const summarySuffix = ".result.json"

// Local stores photos and validation summaries on the local filesystem.
// The summary lives in a JSON side-car next to the JPEG.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local store rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local store: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

func (l *Local) photoPath(key core.PhotoKey) string {
	// Album maps to a subdirectory; Name is the filename.
	return filepath.Join(l.rootDir, filepath.Clean(key.Album), filepath.Clean(key.Name))
}

func (l *Local) Save(ctx context.Context, key core.PhotoKey, jpegData []byte, result *core.ValidationResult) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.save", err)
	}

	path := l.photoPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.save.mkdir", err)
	}
	if err := os.WriteFile(path, jpegData, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.save.photo", err)
	}

	if result != nil {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "local.save.summary", err)
		}
		if err := os.WriteFile(path+summarySuffix, data, l.permissions); err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "local.save.summary", err)
		}
	}
	return nil
}

func (l *Local) Load(ctx context.Context, key core.PhotoKey) ([]byte, *core.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CategoryStorage, "local.load", err)
	}

	path := l.photoPath(key)
	jpegData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperrors.New(apperrors.CategoryStorage, "local.load",
				fmt.Errorf("key not found: %v", key))
		}
		return nil, nil, apperrors.Wrap(apperrors.CategoryStorage, "local.load.photo", err)
	}

	var result *core.ValidationResult
	if data, err := os.ReadFile(path + summarySuffix); err == nil {
		result = &core.ValidationResult{}
		if err := json.Unmarshal(data, result); err != nil {
			return nil, nil, apperrors.Wrap(apperrors.CategoryStorage, "local.load.summary", err)
		}
	}
	return jpegData, result, nil
}

func (l *Local) Delete(ctx context.Context, key core.PhotoKey) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	path := l.photoPath(key)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	_ = os.Remove(path + summarySuffix)
	return nil
}

func (l *Local) Exists(ctx context.Context, key core.PhotoKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists", err)
	}
	_, err := os.Stat(l.photoPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists.stat", err)
}

var _ core.ReportStore = (*Local)(nil)
