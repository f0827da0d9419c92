// Package detect provides FaceDetector implementations.
package detect

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	xdraw "golang.org/x/image/draw"

	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
)

// PigoOptions tunes the cascade classifier.  Zero values select defaults.
type PigoOptions struct {
	MinSize     int     // minimum face size in pixels; default 60
	MaxSize     int     // maximum face size; default: working image max dimension
	ShiftFactor float64 // detection window shift; default 0.1
	ScaleFactor float64 // detection window growth; default 1.1
	ClusterIoU  float64 // overlap threshold for merging detections; default 0.18

	// QualityScale maps the cascade's raw quality score onto [0, 1]:
	// confidence = min(1, Q/QualityScale).  Default 40.
	QualityScale float64

	// RegionPadding expands the cascade's inner-face box to approximate the
	// full head, which is what the framing ratio is judged on.  Default 1.35.
	RegionPadding float64

	// MaxWorkingSize bounds the resolution the cascade runs at; larger
	// inputs are downscaled first and regions mapped back.  Default 1000.
	MaxWorkingSize int
}

func (o *PigoOptions) defaults() {
	if o.MinSize <= 0 {
		o.MinSize = 60
	}
	if o.ShiftFactor <= 0 {
		o.ShiftFactor = 0.1
	}
	if o.ScaleFactor <= 0 {
		o.ScaleFactor = 1.1
	}
	if o.ClusterIoU <= 0 {
		o.ClusterIoU = 0.18
	}
	if o.QualityScale <= 0 {
		o.QualityScale = 40
	}
	if o.RegionPadding <= 0 {
		o.RegionPadding = 1.35
	}
	if o.MaxWorkingSize <= 0 {
		o.MaxWorkingSize = 1000
	}
}

// Pigo is the default pure-Go FaceDetector, backed by the pigo cascade
// classifier.  Safe for concurrent use once constructed.
type Pigo struct {
	classifier *pigo.Pigo
	opts       PigoOptions
}

// NewPigo unpacks a binary cascade (the upstream "facefinder" file) into a
// ready detector.
func NewPigo(cascade []byte, opts PigoOptions) (*Pigo, error) {
	opts.defaults()
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDetect, "pigo.unpack", err)
	}
	return &Pigo{classifier: classifier, opts: opts}, nil
}

// NewPigoFromFile loads the cascade from disk.
func NewPigoFromFile(path string, opts PigoOptions) (*Pigo, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDetect, "pigo.load",
			fmt.Errorf("read cascade %s: %w", path, err))
	}
	return NewPigo(cascade, opts)
}

// Detect implements core.FaceDetector.
func (p *Pigo) Detect(ctx context.Context, img image.Image) ([]core.FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDetect, "pigo.detect", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryDetect, "pigo.detect", apperrors.ErrEmptyInput)
	}

	working, scale := downscale(img, p.opts.MaxWorkingSize)
	src := pigo.ImgToNRGBA(working)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	maxSize := p.opts.MaxSize
	if maxSize <= 0 {
		maxSize = cols
		if rows > cols {
			maxSize = rows
		}
	}

	params := pigo.CascadeParams{
		MinSize:     p.opts.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: p.opts.ShiftFactor,
		ScaleFactor: p.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.opts.ClusterIoU)

	bounds := img.Bounds()
	regions := make([]core.FaceRegion, 0, len(dets))
	for _, det := range dets {
		if det.Q <= 0 {
			continue
		}
		regions = append(regions, core.FaceRegion{
			Box:        p.regionBox(det, scale, bounds),
			Confidence: confidence(det.Q, p.opts.QualityScale),
		})
	}
	return regions, nil
}

// regionBox converts one cascade detection (center row/col + scale) into a
// padded bounding box in source coordinates.
func (p *Pigo) regionBox(det pigo.Detection, scale float64, bounds image.Rectangle) image.Rectangle {
	half := float64(det.Scale) * p.opts.RegionPadding / 2
	cx := float64(det.Col) / scale
	cy := float64(det.Row) / scale
	half /= scale

	box := image.Rect(
		int(cx-half), int(cy-half),
		int(cx+half), int(cy+half),
	)
	return box.Intersect(bounds)
}

func confidence(q float32, qualityScale float64) float64 {
	c := float64(q) / qualityScale
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

// downscale bounds the working resolution; returns the image the cascade
// runs on and the applied scale factor (working = source * scale).
func downscale(img image.Image, maxSize int) (image.Image, float64) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > w {
		longest = h
	}
	if maxSize <= 0 || longest <= maxSize {
		return img, 1
	}

	scale := float64(maxSize) / float64(longest)
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst, scale
}

var _ core.FaceDetector = (*Pigo)(nil)
