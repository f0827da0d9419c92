package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"

	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
)

// ObjectClient defines the minimal object-store interface used by the
// remote adapter.  This allows injection of real cloud SDK clients or test
// doubles without coupling the module to one provider.
type ObjectClient interface {
	Put(ctx context.Context, key string, body io.Reader, meta map[string]string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Head(ctx context.Context, key string) (bool, error)
}

// Remote is the ReportStore backed by an object store (S3-compatible,
// cloud buckets, etc.).  Inject a real client in production.
type Remote struct {
	client ObjectClient
}

// NewRemote creates a Remote store.  client must not be nil.
func NewRemote(client ObjectClient) (*Remote, error) {
	if client == nil {
		return nil, apperrors.New(apperrors.CategoryStorage, "remote.new",
			apperrors.ErrStorageUnavailable)
	}
	return &Remote{client: client}, nil
}

func objectKey(key core.PhotoKey) string {
	return path.Join(key.Album, key.Name)
}

func (r *Remote) Save(ctx context.Context, key core.PhotoKey, jpegData []byte, result *core.ValidationResult) error {
	k := objectKey(key)
	meta := map[string]string{"content-type": "image/jpeg"}
	if err := r.client.Put(ctx, k, bytes.NewReader(jpegData), meta); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "remote.save.photo", err)
	}

	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "remote.save.summary", err)
		}
		summaryMeta := map[string]string{"content-type": "application/json"}
		if err := r.client.Put(ctx, k+summarySuffix, bytes.NewReader(data), summaryMeta); err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "remote.save.summary", err)
		}
	}
	return nil
}

func (r *Remote) Load(ctx context.Context, key core.PhotoKey) ([]byte, *core.ValidationResult, error) {
	k := objectKey(key)

	rc, err := r.client.Get(ctx, k)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CategoryStorage, "remote.load.photo", err)
	}
	jpegData, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CategoryStorage, "remote.load.photo", err)
	}

	var result *core.ValidationResult
	if src, err := r.client.Get(ctx, k+summarySuffix); err == nil {
		data, readErr := io.ReadAll(src)
		src.Close()
		if readErr != nil {
			return nil, nil, apperrors.Wrap(apperrors.CategoryStorage, "remote.load.summary", readErr)
		}
		result = &core.ValidationResult{}
		if err := json.Unmarshal(data, result); err != nil {
			return nil, nil, apperrors.Wrap(apperrors.CategoryStorage, "remote.load.summary", err)
		}
	}
	return jpegData, result, nil
}

func (r *Remote) Delete(ctx context.Context, key core.PhotoKey) error {
	k := objectKey(key)
	if err := r.client.Delete(ctx, k); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "remote.delete", err)
	}
	_ = r.client.Delete(ctx, k+summarySuffix)
	return nil
}

func (r *Remote) Exists(ctx context.Context, key core.PhotoKey) (bool, error) {
	ok, err := r.client.Head(ctx, objectKey(key))
	if err != nil {
		return false, apperrors.Wrap(apperrors.CategoryStorage, "remote.exists", err)
	}
	return ok, nil
}

var _ core.ReportStore = (*Remote)(nil)
