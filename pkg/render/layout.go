// Package render draws detections, the cart total and the shopping list
// over camera frames.
package render

import (
	"image"
	"image/color"
	"strings"

	"github.com/teslashibe/go-shopassist/pkg/scene"
)

// Overlay geometry.
const (
	TotalBoxWidth  = 200
	TotalBoxHeight = 50
	TextInset      = 10 // text x offset inside boxes
	TotalBaseline  = 30 // total text y offset inside the total box
	ListLineHeight = 30
	LabelLift      = 6 // labels sit this far above their box
	PanelAlpha     = 0.5
)

// Fixed colors.
var (
	GUIColor         = color.RGBA{255, 255, 255, 255}
	TextColor        = color.RGBA{0, 0, 0, 255}
	LabelFill        = color.RGBA{200, 200, 200, 255}
	CustomerColor    = color.RGBA{0, 255, 0, 255}
	BarcodeBoxColor  = color.RGBA{0, 0, 255, 255}
	BarcodeEdgeColor = color.RGBA{0, 255, 0, 255}
)

// NameToColor derives a face box color from the first three letters of
// label. Letter values map to 0..200 in steps of 8; the letters fill blue,
// green and red in that order. Customers are always green.
func NameToColor(label string) color.RGBA {
	if label == scene.UnknownFaceLabel {
		return CustomerColor
	}
	var ch [3]uint8
	for i, r := range []rune(strings.ToLower(label)) {
		if i == 3 {
			break
		}
		v := (int(r) - 'a') * 8
		ch[i] = uint8(min(max(v, 0), 255))
	}
	return color.RGBA{R: ch[2], G: ch[1], B: ch[0], A: 255}
}

// TotalBox is the bottom-right box holding the cart total.
func TotalBox(frame image.Rectangle) image.Rectangle {
	corner := image.Pt(frame.Max.X-TotalBoxWidth, frame.Max.Y-TotalBoxHeight)
	return image.Rectangle{Min: corner, Max: frame.Max}
}

// TotalOrigin is the baseline origin of the total text.
func TotalOrigin(frame image.Rectangle) image.Point {
	return TotalBox(frame).Min.Add(image.Pt(TextInset, TotalBaseline))
}

// TotalLabel is the text shown in the total box.
func TotalLabel(total string) string {
	return "Total: " + total
}

// ListPanel is the left half of the frame.
func ListPanel(frame image.Rectangle) image.Rectangle {
	return image.Rect(frame.Min.X, frame.Min.Y, frame.Min.X+frame.Dx()/2, frame.Max.Y)
}

// ListOrigins returns the baseline origin of each of n list lines.
func ListOrigins(frame image.Rectangle, n int) []image.Point {
	panel := ListPanel(frame)
	pts := make([]image.Point, n)
	for i := range pts {
		pts[i] = panel.Min.Add(image.Pt(TextInset, TotalBaseline+i*ListLineHeight))
	}
	return pts
}

// LabelOrigin places a label just above box.
func LabelOrigin(box image.Rectangle) image.Point {
	return image.Pt(box.Min.X, box.Min.Y-LabelLift)
}
