// Package vision finds faces and barcodes in camera frames.
//
// Faces are located with YuNet and described with SFace embeddings, then
// labelled against a gallery of known people. Barcodes are decoded with
// gozxing's 1D readers; QR codes are ignored.
package vision

import (
	"errors"
	"fmt"
	"os"
)

// DefaultTolerance is the largest embedding distance accepted as a match.
const DefaultTolerance = 0.575

// CacheFileName is the gallery cache written inside the known faces directory.
const CacheFileName = "face_encodings_cache.json"

// ErrModelNotFound is returned when an ONNX model file is missing.
var ErrModelNotFound = errors.New("vision: model file not found")

// FaceConfig holds face detection and recognition settings.
type FaceConfig struct {
	DetectorModel    string  // YuNet ONNX
	RecognizerModel  string  // SFace ONNX
	KnownFacesDir    string  // known_faces/<name>/*.jpg
	Tolerance        float64 // max distance for a match
	ConfidenceThresh float64 // min YuNet score
	InputWidth       int
	InputHeight      int
}

// DefaultFaceConfig returns production defaults.
func DefaultFaceConfig() FaceConfig {
	return FaceConfig{
		DetectorModel:    "models/face_detection_yunet.onnx",
		RecognizerModel:  "models/face_recognition_sface.onnx",
		KnownFacesDir:    "known_faces",
		Tolerance:        DefaultTolerance,
		ConfidenceThresh: 0.6,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Validate checks that the models exist and thresholds are in range.
func (c FaceConfig) Validate() error {
	for _, p := range []string{c.DetectorModel, c.RecognizerModel} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %s", ErrModelNotFound, p)
		}
	}
	if c.Tolerance <= 0 || c.Tolerance > 2 {
		return fmt.Errorf("vision: tolerance %.3f out of range (0, 2]", c.Tolerance)
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		return fmt.Errorf("vision: confidence %.2f out of range [0, 1]", c.ConfidenceThresh)
	}
	return nil
}
