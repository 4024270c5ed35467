// Package camera reads frames from a webcam and polls the preview window
// for key presses.
package camera

import "fmt"

// Config holds capture settings.
type Config struct {
	Device      int    `json:"device"`       // VideoCapture index
	Width       int    `json:"width"`        // requested frame width
	Height      int    `json:"height"`       // requested frame height
	WindowTitle string `json:"window_title"` // preview window, "" for headless
	JPEGQuality int    `json:"jpeg_quality"` // dashboard stream quality 1-100
}

// DefaultConfig returns a 640x480 capture with a preview window.
func DefaultConfig() Config {
	return Config{
		Device:      0,
		Width:       640,
		Height:      480,
		WindowTitle: "Robot's Sight",
		JPEGQuality: 75,
	}
}

// Headless reports whether no preview window is opened.
func (c Config) Headless() bool {
	return c.WindowTitle == ""
}

// Validate returns a list of problems, or nil.
func (c Config) Validate() []string {
	var errs []string
	if c.Device < 0 {
		errs = append(errs, "device must be >= 0")
	}
	if c.Width < 160 || c.Width > 4096 {
		errs = append(errs, fmt.Sprintf("width %d must be between 160 and 4096", c.Width))
	}
	if c.Height < 120 || c.Height > 2160 {
		errs = append(errs, fmt.Sprintf("height %d must be between 120 and 2160", c.Height))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, "jpeg_quality must be between 1 and 100")
	}
	return errs
}
