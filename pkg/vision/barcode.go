package vision

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/teslashibe/go-shopassist/pkg/scene"
)

// barcodeHeight is the box height drawn around 1D barcodes, whose result
// points all sit on one scan line.
const barcodeHeight = 40

// Barcodes decodes 1D barcodes (EAN, UPC, Code 39/93/128, ITF, Codabar).
type Barcodes struct {
	reader *multi.GenericMultipleBarcodeReader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewBarcodes creates a scanner.
func NewBarcodes() *Barcodes {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &Barcodes{
		reader: multi.NewGenericMultipleBarcodeReader(oned.NewMultiFormatOneDReader(hints)),
		hints:  hints,
	}
}

// Scan returns every barcode in img except QR codes.
func (b *Barcodes) Scan(img image.Image) ([]scene.Barcode, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}

	results, err := b.reader.DecodeMultiple(bmp, b.hints)
	if err != nil {
		var notFound gozxing.NotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode: %w", err)
	}

	out := make([]scene.Barcode, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if r.GetBarcodeFormat() == gozxing.BarcodeFormat_QR_CODE {
			continue
		}
		if seen[r.GetText()] {
			continue
		}
		seen[r.GetText()] = true

		polygon := make([]image.Point, 0, len(r.GetResultPoints()))
		for _, p := range r.GetResultPoints() {
			polygon = append(polygon, image.Pt(int(p.GetX()), int(p.GetY())))
		}
		out = append(out, scene.Barcode{
			Payload: r.GetText(),
			Format:  r.GetBarcodeFormat().String(),
			Box:     boundingBox(polygon, img.Bounds()),
			Polygon: polygon,
		})
	}
	return out, nil
}

// boundingBox encloses pts, padded to barcodeHeight and clipped to frame.
func boundingBox(pts []image.Point, frame image.Rectangle) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	if pad := barcodeHeight - r.Dy(); pad > 0 {
		r.Min.Y -= pad / 2
		r.Max.Y += pad - pad/2
	}
	return r.Intersect(frame)
}
