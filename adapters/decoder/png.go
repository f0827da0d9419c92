package decoder

import (
	"context"
	"image/png"
	"io"

	"github.com/hemannep/dvphoto/core"
	apperrors "github.com/hemannep/dvphoto/errors"
)

// PNG decodes PNG images using the standard library.  PNG input is never
// compliant; decoding it anyway lets the pipeline run to completion and
// report the wrong-format finding alongside everything else it measures.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

func (p *PNG) CanDecode(format core.Format) bool {
	return format == core.FormatPNG
}

func (p *PNG) Decode(ctx context.Context, r io.Reader) (*core.ImageBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "png.decode", err)
	}

	img, err := png.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "png.decode", err)
	}

	bounds := img.Bounds()
	return &core.ImageBuffer{
		Image:  img,
		Format: core.FormatPNG,
		Meta: core.Metadata{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			Format: core.FormatPNG,
		},
	}, nil
}
