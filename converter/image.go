package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// ImageConverter resizes, crops and re-encodes raster images.
type ImageConverter struct {
	logger *zap.Logger
}

func NewImageConverter(logger *zap.Logger) *ImageConverter {
	return &ImageConverter{logger: logger}
}

func (c *ImageConverter) Convert(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Operation: "image_convert", Err: fmt.Errorf("decode image: %w", err)}
	}

	var processed *image.NRGBA

	if opts.Width != nil || opts.Height != nil {
		width := opts.Width
		height := opts.Height

		if width == nil {
			w := src.Bounds().Dx()
			width = &w
		}
		if height == nil {
			h := src.Bounds().Dy()
			height = &h
		}

		c.logger.Debug("Resizing image",
			zap.Int("width", *width),
			zap.Int("height", *height),
			zap.Bool("crop", opts.Crop),
		)

		if opts.Crop {
			processed = imaging.Fill(src, *width, *height, imaging.Center, imaging.Lanczos)
		} else {
			processed = imaging.Resize(src, *width, *height, imaging.Lanczos)
		}
	} else {
		processed = imaging.Clone(src)
	}

	format := opts.OutputFormat
	if format == "" {
		format = "png"
	}

	var buf bytes.Buffer
	var contentType string

	switch format {
	case "jpg", "jpeg":
		if err := imaging.Encode(&buf, processed, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
			return nil, &Error{Operation: "image_convert", Err: fmt.Errorf("encode jpeg: %w", err)}
		}
		contentType = "image/jpeg"
	case "png":
		if err := imaging.Encode(&buf, processed, imaging.PNG); err != nil {
			return nil, &Error{Operation: "image_convert", Err: fmt.Errorf("encode png: %w", err)}
		}
		contentType = "image/png"
	case "gif":
		if err := imaging.Encode(&buf, processed, imaging.GIF); err != nil {
			return nil, &Error{Operation: "image_convert", Err: fmt.Errorf("encode gif: %w", err)}
		}
		contentType = "image/gif"
	default:
		return nil, &Error{Operation: "image_convert", Err: fmt.Errorf("unsupported format: %s", format)}
	}

	bounds := processed.Bounds()
	return &Result{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Metadata: map[string]string{
			"output_format": format,
			"width":         strconv.Itoa(bounds.Dx()),
			"height":        strconv.Itoa(bounds.Dy()),
			"output_size":   strconv.Itoa(buf.Len()),
		},
	}, nil
}
