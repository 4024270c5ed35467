package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Embedding is one located face and its feature vector.
type Embedding struct {
	Box    image.Rectangle
	Score  float64
	Vector []float32
}

// SFace locates faces with YuNet and embeds them with SFace.
type SFace struct {
	detector   gocv.FaceDetectorYN
	recognizer gocv.FaceRecognizerSF
	mu         sync.Mutex // protects inference
}

// NewSFace loads both models.
func NewSFace(cfg FaceConfig) (*SFace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.DetectorModel,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	recognizer := gocv.NewFaceRecognizerSF(cfg.RecognizerModel, "")

	return &SFace{detector: detector, recognizer: recognizer}, nil
}

// Embed finds every face in img and returns its box and embedding.
func (s *SFace) Embed(img gocv.Mat) ([]Embedding, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	s.detector.Detect(img, &faces)

	out := make([]Embedding, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		// YuNet rows: x, y, w, h, 5 landmarks (x, y), score.
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))

		vec, err := s.feature(img, faces, r)
		if err != nil {
			return nil, err
		}
		out = append(out, Embedding{
			Box:    image.Rect(x, y, x+w, y+h),
			Score:  float64(faces.GetFloatAt(r, 14)),
			Vector: vec,
		})
	}
	return out, nil
}

func (s *SFace) feature(img, faces gocv.Mat, row int) ([]float32, error) {
	box := faces.RowRange(row, row+1)
	defer box.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	s.recognizer.AlignCrop(img, box, &aligned)

	feature := gocv.NewMat()
	defer feature.Close()
	s.recognizer.Feature(aligned, &feature)

	data, err := feature.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read embedding: %w", err)
	}
	// The Mat owns data; copy before Close.
	return append([]float32(nil), data...), nil
}

// EmbedFile reads an image and embeds its first face. It returns nil when
// the image holds no face.
func (s *SFace) EmbedFile(path string) ([]float32, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("read %s: not an image", path)
	}
	embs, err := s.Embed(img)
	if err != nil || len(embs) == 0 {
		return nil, err
	}
	return embs[0].Vector, nil
}

// Close releases both models.
func (s *SFace) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.Close()
	s.recognizer.Close()
	return nil
}
