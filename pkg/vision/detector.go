package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-shopassist/pkg/camera"
	"github.com/teslashibe/go-shopassist/pkg/debug"
	"github.com/teslashibe/go-shopassist/pkg/scene"
)

// FaceSource labels faces in a frame.
type FaceSource interface {
	Recognize(img gocv.Mat) ([]scene.Face, error)
}

// BarcodeSource decodes barcodes in an image.
type BarcodeSource interface {
	Scan(img image.Image) ([]scene.Barcode, error)
}

// Detector runs face recognition and barcode scanning on camera frames.
// Either half may be nil.
type Detector struct {
	faces    FaceSource
	barcodes BarcodeSource
	logger   *slog.Logger
}

// NewDetector combines a face source and a barcode source.
func NewDetector(faces FaceSource, barcodes BarcodeSource, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{faces: faces, barcodes: barcodes, logger: logger.With("component", "vision.detector")}
}

// Detect returns whatever succeeded. It fails only when every configured
// half failed.
func (d *Detector) Detect(ctx context.Context, f *camera.Frame) ([]scene.Face, []scene.Barcode, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		faces    []scene.Face
		barcodes []scene.Barcode
		errs     []error
	)

	if d.faces != nil {
		var err error
		if faces, err = d.faces.Recognize(f.Mat); err != nil {
			errs = append(errs, fmt.Errorf("faces: %w", err))
		}
	}

	if d.barcodes != nil {
		img, err := f.Image()
		if err == nil {
			barcodes, err = d.barcodes.Scan(img)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("barcodes: %w", err))
		}
	}

	configured := 0
	if d.faces != nil {
		configured++
	}
	if d.barcodes != nil {
		configured++
	}
	if len(errs) > 0 && len(errs) == configured {
		return nil, nil, errors.Join(errs...)
	}
	for _, err := range errs {
		d.logger.Warn("partial detection", "error", err)
	}

	if debug.Vision {
		for _, b := range barcodes {
			d.logger.Debug("barcode", "payload", b.Payload, "format", b.Format)
		}
	}
	return faces, barcodes, nil
}
