package faces

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, pngBytes(t, 16, 12), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func vec(hot int) []float32 {
	v := make([]float32, 8)
	v[hot] = 1
	return v
}

type fakeEmbedder struct {
	mu    sync.Mutex
	resp  *DetectionResponse
	err   error
	calls int
}

func (f *fakeEmbedder) DetectFaces(ctx context.Context, imageData []byte) (*DetectionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func detections(ds ...Detection) *DetectionResponse {
	return &DetectionResponse{FacesCount: len(ds), Faces: ds, Model: "buffalo_l"}
}
