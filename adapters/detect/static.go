package detect

import (
	"context"
	"image"

	"github.com/hemannep/dvphoto/core"
)

// Static returns a fixed candidate list on every call.  Used in tests and
// by host applications that run their own detection (e.g. a platform ML
// framework) and only need the pipeline's scoring.
type Static struct {
	Regions []core.FaceRegion
	Err     error
}

func (s *Static) Detect(_ context.Context, _ image.Image) ([]core.FaceRegion, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]core.FaceRegion, len(s.Regions))
	copy(out, s.Regions)
	return out, nil
}

// Func adapts a plain function to core.FaceDetector.
type Func func(ctx context.Context, img image.Image) ([]core.FaceRegion, error)

func (f Func) Detect(ctx context.Context, img image.Image) ([]core.FaceRegion, error) {
	return f(ctx, img)
}

var (
	_ core.FaceDetector = (*Static)(nil)
	_ core.FaceDetector = (Func)(nil)
)
