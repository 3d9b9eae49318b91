package faces

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/database"
	"github.com/JoahanSP/SECURENET/internal/database/mock"
)

func TestRegistry_Register(t *testing.T) {
	store := mock.NewMockFaceStore()
	emb := &fakeEmbedder{resp: detections(
		Detection{Embedding: vec(2), DetScore: 0.7},
		Detection{Embedding: vec(3), DetScore: 0.95},
	)}
	reg := NewRegistry(emb, store, MatcherOptions{}, zerolog.Nop())
	path := writeImage(t, "visitor.png")

	face, err := reg.Register(context.Background(), "  María   López ", path)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if face.Name != "María López" {
		t.Errorf("expected cleaned display name, got %q", face.Name)
	}
	if face.NameKey != "maria lopez" {
		t.Errorf("expected normalized key, got %q", face.NameKey)
	}
	if face.DetScore != 0.95 || face.Embedding[3] != 1 {
		t.Error("expected the most confident detection to be stored")
	}
	if face.ImagePath != path {
		t.Errorf("expected image path %s, got %s", path, face.ImagePath)
	}
	if n, _ := reg.Count(context.Background()); n != 1 {
		t.Errorf("expected 1 stored face, got %d", n)
	}
}

func TestRegistry_Register_NoFace(t *testing.T) {
	store := mock.NewMockFaceStore()
	reg := NewRegistry(&fakeEmbedder{resp: detections()}, store, MatcherOptions{}, zerolog.Nop())

	_, err := reg.Register(context.Background(), "Ana", writeImage(t, "empty.png"))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("nothing should be stored, got %d", n)
	}
}

func TestRegistry_Register_InvalidName(t *testing.T) {
	emb := &fakeEmbedder{resp: detections(Detection{Embedding: vec(0), DetScore: 0.9})}
	reg := NewRegistry(emb, mock.NewMockFaceStore(), MatcherOptions{}, zerolog.Nop())

	for _, name := range []string{"", "   ", "--", strings.Repeat("x", 101)} {
		_, err := reg.Register(context.Background(), name, writeImage(t, "a.png"))
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Register(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
	if emb.calls != 0 {
		t.Error("embedder should not be called for invalid names")
	}
}

func TestRegistry_Register_StoreFailure(t *testing.T) {
	store := mock.NewMockFaceStore()
	store.SaveError = errors.New("disk full")
	reg := NewRegistry(&fakeEmbedder{resp: detections(Detection{Embedding: vec(0), DetScore: 0.9})}, store, MatcherOptions{}, zerolog.Nop())

	if _, err := reg.Register(context.Background(), "Ana", writeImage(t, "a.png")); err == nil {
		t.Error("expected error when the store fails")
	}
}

func TestRegistry_Delete(t *testing.T) {
	store := mock.NewMockFaceStore()
	store.AddFace(database.AuthorizedFace{Name: "José", NameKey: "jose", Embedding: vec(0)})
	store.AddFace(database.AuthorizedFace{Name: "jose", NameKey: "jose", Embedding: vec(1)})
	store.AddFace(database.AuthorizedFace{Name: "Ana", NameKey: "ana", Embedding: vec(2)})
	reg := NewRegistry(&fakeEmbedder{}, store, MatcherOptions{}, zerolog.Nop())

	n, err := reg.Delete(context.Background(), "JOSÉ")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted entries, got %d", n)
	}

	if _, err := reg.Delete(context.Background(), "José"); !errors.Is(err, ErrFaceNotFound) {
		t.Errorf("expected ErrFaceNotFound on second delete, got %v", err)
	}
	if _, err := reg.Delete(context.Background(), " "); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}

	faces, _ := reg.List(context.Background())
	if len(faces) != 1 || faces[0].Name != "Ana" {
		t.Errorf("unexpected remaining faces: %+v", faces)
	}
}
