package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/storage"
)

func TestArtifactsHandler_Lists(t *testing.T) {
	router := testRouter(t)
	intruder, _ := router.Store([]byte("x"), "door.jpg", storage.Intruder)
	router.Store([]byte("y"), "yard.png", storage.Pending)
	handler := NewArtifactsHandler(router, zerolog.Nop())

	tests := []struct {
		name    string
		handle  http.HandlerFunc
		params  map[string]string
		want    int
		status  int
		wantCat storage.Category
	}{
		{"alerts", handler.Alerts, nil, 1, http.StatusOK, storage.Intruder},
		{"images", handler.Images, nil, 1, http.StatusOK, storage.Pending},
		{"by category", handler.List, map[string]string{"category": "authorized"}, 0, http.StatusOK, storage.Authorized},
		{"alias", handler.List, map[string]string{"category": "intruders"}, 1, http.StatusOK, storage.Intruder},
		{"unknown category", handler.List, map[string]string{"category": "secret"}, 0, http.StatusBadRequest, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), tc.params)
			recorder := httptest.NewRecorder()
			tc.handle(recorder, req)

			assertStatusCode(t, recorder, tc.status)
			if tc.status != http.StatusOK {
				return
			}
			var list []ArtifactResponse
			parseJSONResponse(t, recorder, &list)
			if len(list) != tc.want {
				t.Fatalf("expected %d artifacts, got %d", tc.want, len(list))
			}
			for _, a := range list {
				if a.Category != tc.wantCat || !strings.HasPrefix(a.URL, "/files/"+string(tc.wantCat)+"/") {
					t.Errorf("unexpected entry %+v", a)
				}
			}
		})
	}

	recorder := httptest.NewRecorder()
	handler.Alerts(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	var list []ArtifactResponse
	parseJSONResponse(t, recorder, &list)
	if len(list) != 1 || list[0].Filename != filepath.Base(intruder) {
		t.Errorf("expected %s, got %+v", filepath.Base(intruder), list)
	}
}

func TestArtifactsHandler_ServeFile(t *testing.T) {
	router := testRouter(t)
	path, _ := router.Store([]byte("jpeg bytes"), "door.jpg", storage.Intruder)
	handler := NewArtifactsHandler(router, zerolog.Nop())

	tests := []struct {
		name     string
		category string
		filename string
		status   int
	}{
		{"existing", "intruder", filepath.Base(path), http.StatusOK},
		{"wrong category", "pending", filepath.Base(path), http.StatusNotFound},
		{"unknown category", "etc", "passwd", http.StatusNotFound},
		{"traversal", "intruder", "..", http.StatusBadRequest},
		{"missing", "intruder", "nope.jpg", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/files/x/y", nil),
				map[string]string{"category": tc.category, "filename": tc.filename})
			recorder := httptest.NewRecorder()
			handler.ServeFile(recorder, req)

			assertStatusCode(t, recorder, tc.status)
			if tc.status == http.StatusOK && recorder.Body.String() != "jpeg bytes" {
				t.Errorf("unexpected body %q", recorder.Body.String())
			}
		})
	}
}
