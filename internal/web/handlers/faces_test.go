package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/database"
	"github.com/JoahanSP/SECURENET/internal/faces"
	"github.com/JoahanSP/SECURENET/internal/storage"
)

type fakeRegistry struct {
	faces       []database.AuthorizedFace
	registerErr error
	deleteN     int
	deleteErr   error
	listErr     error
	lastPath    string
}

func (f *fakeRegistry) Register(ctx context.Context, name, imagePath string) (*database.AuthorizedFace, error) {
	f.lastPath = imagePath
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	face := database.AuthorizedFace{ID: int64(len(f.faces) + 1), Name: name, ImagePath: imagePath, DetScore: 0.9, CreatedAt: time.Now()}
	f.faces = append(f.faces, face)
	return &face, nil
}

func (f *fakeRegistry) Delete(ctx context.Context, name string) (int, error) {
	return f.deleteN, f.deleteErr
}

func (f *fakeRegistry) List(ctx context.Context) ([]database.AuthorizedFace, error) {
	return f.faces, f.listErr
}

func TestFacesHandler_Add(t *testing.T) {
	router := testRouter(t)
	reg := &fakeRegistry{}
	handler := NewFacesHandler(router, reg, 0, zerolog.Nop())

	recorder := httptest.NewRecorder()
	handler.Add(recorder, multipartRequest(t, "/api/v1/authorized-faces", "alice.jpg", []byte("jpeg"), map[string]string{"name": "Alice"}))

	assertStatusCode(t, recorder, http.StatusOK)
	var face FaceResponse
	parseJSONResponse(t, recorder, &face)
	if face.Name != "Alice" || face.ID != 1 {
		t.Errorf("unexpected face %+v", face)
	}
	if n, _ := router.Count(storage.Authorized); n != 1 {
		t.Errorf("expected reference photo in authorized category, got %d", n)
	}
}

func TestFacesHandler_AddRejected(t *testing.T) {
	tests := []struct {
		name        string
		fields      map[string]string
		filename    string
		registerErr error
		status      int
		wantError   string
	}{
		{"no face", map[string]string{"name": "Alice"}, "a.jpg", fmt.Errorf("register: %w", faces.ErrNoFaceDetected), http.StatusBadRequest, "no face detected in image"},
		{"bad name", map[string]string{"name": "Alice"}, "a.jpg", faces.ErrInvalidName, http.StatusBadRequest, "invalid name"},
		{"missing name", nil, "a.jpg", nil, http.StatusBadRequest, "name is required"},
		{"bad extension", map[string]string{"name": "Alice"}, "a.gif", nil, http.StatusBadRequest, "invalid image file"},
		{"store down", map[string]string{"name": "Alice"}, "a.jpg", errors.New("db down"), http.StatusInternalServerError, "failed to register face"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := testRouter(t)
			handler := NewFacesHandler(router, &fakeRegistry{registerErr: tc.registerErr}, 0, zerolog.Nop())

			recorder := httptest.NewRecorder()
			handler.Add(recorder, multipartRequest(t, "/api/v1/authorized-faces", tc.filename, []byte("jpeg"), tc.fields))

			assertStatusCode(t, recorder, tc.status)
			assertJSONError(t, recorder, tc.wantError)
			if n, _ := router.Count(storage.Authorized); n != 0 {
				t.Error("rejected reference photo must not stay in storage")
			}
		})
	}
}

func TestFacesHandler_List(t *testing.T) {
	reg := &fakeRegistry{faces: []database.AuthorizedFace{
		{ID: 1, Name: "Alice", Embedding: []float32{1, 2}},
		{ID: 2, Name: "Alice"},
	}}
	handler := NewFacesHandler(testRouter(t), reg, 0, zerolog.Nop())

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/authorized-faces", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var list []map[string]any
	parseJSONResponse(t, recorder, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if _, ok := list[0]["embedding"]; ok {
		t.Error("embeddings must not be exposed")
	}
}

func TestFacesHandler_Delete(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		err    error
		status int
	}{
		{"deleted", 3, nil, http.StatusOK},
		{"unknown", 0, fmt.Errorf("%w: bob", faces.ErrFaceNotFound), http.StatusNotFound},
		{"blank", 0, faces.ErrInvalidName, http.StatusBadRequest},
		{"failure", 0, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewFacesHandler(testRouter(t), &fakeRegistry{deleteN: tc.n, deleteErr: tc.err}, 0, zerolog.Nop())

			req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/authorized-faces/alice", nil),
				map[string]string{"name": "alice"})
			recorder := httptest.NewRecorder()
			handler.Delete(recorder, req)

			assertStatusCode(t, recorder, tc.status)
			if tc.status == http.StatusOK {
				var out map[string]int
				parseJSONResponse(t, recorder, &out)
				if out["deleted"] != tc.n {
					t.Errorf("deleted = %d, want %d", out["deleted"], tc.n)
				}
			}
		})
	}
}
