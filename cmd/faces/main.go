// Command faces builds the known faces cache and checks what the assistant
// sees in a still image.
//
// Usage:
//
//	go run ./cmd/faces --rebuild
//	go run ./cmd/faces --image snapshot.jpg
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-shopassist/internal/config"
	ilog "github.com/teslashibe/go-shopassist/internal/log"
	"github.com/teslashibe/go-shopassist/pkg/camera"
	"github.com/teslashibe/go-shopassist/pkg/vision"
)

func main() {
	configPath := flag.String("config", "", "Path to config.ini")
	rebuild := flag.Bool("rebuild", false, "Rebuild the known faces cache from the image folders")
	imagePath := flag.String("image", "", "Label faces and barcodes in this image")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		os.Exit(1)
	}
	ilog.Init(settings.LogLevel)
	logger := ilog.Component("faces")

	fmt.Println("🙂 Known Faces")
	fmt.Println("==============")

	cfg := vision.DefaultFaceConfig()
	cfg.DetectorModel = settings.FaceModel
	cfg.RecognizerModel = settings.FaceRecognitionModel
	cfg.KnownFacesDir = settings.KnownFacesDir
	cfg.Tolerance = settings.FaceTolerance

	faces, err := vision.NewFaces(cfg, logger)
	if err != nil {
		fmt.Printf("❌ Models: %v\n", err)
		os.Exit(1)
	}
	defer faces.Close()

	if err := faces.Load(*rebuild); err != nil {
		fmt.Printf("❌ Gallery: %v\n", err)
		os.Exit(1)
	}
	known := faces.Known()
	fmt.Printf("✅ %d known: %s\n", len(known), strings.Join(known, ", "))

	if *imagePath == "" {
		return
	}

	mat := gocv.IMRead(*imagePath, gocv.IMReadColor)
	if mat.Empty() {
		fmt.Printf("❌ Cannot read %s\n", *imagePath)
		os.Exit(1)
	}
	frame := &camera.Frame{Mat: mat}
	defer frame.Close()

	detector := vision.NewDetector(faces, vision.NewBarcodes(), logger)
	found, barcodes, err := detector.Detect(context.Background(), frame)
	if err != nil {
		fmt.Printf("❌ Detection: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n📷 %s (%dx%d)\n", *imagePath, frame.Bounds().Dx(), frame.Bounds().Dy())
	for _, f := range found {
		fmt.Printf("   👤 %-12s distance %.3f at %v\n", f.Label, f.Distance, f.Box)
	}
	for _, b := range barcodes {
		fmt.Printf("   🏷️  %-12s %s at %v\n", b.Format, b.Payload, b.Box)
	}
	if len(found) == 0 && len(barcodes) == 0 {
		fmt.Println("   nothing found")
	}
}
