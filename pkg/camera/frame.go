package camera

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Frame is one captured BGR image. It owns native memory and must be
// closed.
type Frame struct {
	Mat gocv.Mat
}

// Bounds returns the frame rectangle.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Mat.Cols(), f.Mat.Rows())
}

// Image converts the frame to an image.Image.
func (f *Frame) Image() (image.Image, error) {
	return f.Mat.ToImage()
}

// JPEG encodes the frame.
func (f *Frame) JPEG(quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, f.Mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Close releases the frame.
func (f *Frame) Close() error {
	return f.Mat.Close()
}
