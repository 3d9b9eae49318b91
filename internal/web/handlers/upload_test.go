package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/ingest"
	"github.com/JoahanSP/SECURENET/internal/storage"
)

type fakeIngester struct {
	out     ingest.Outcome
	err     error
	gotData []byte
	gotName string
	calls   int
}

func (f *fakeIngester) Ingest(ctx context.Context, data []byte, originalName string) (ingest.Outcome, error) {
	f.calls++
	f.gotData = data
	f.gotName = originalName
	return f.out, f.err
}

func TestUploadHandler_Upload_Success(t *testing.T) {
	ing := &fakeIngester{out: ingest.Outcome{
		Status:   ingest.StatusAuthorized,
		Message:  "Authorized person: Alice",
		Name:     "Alice",
		Filename: "20260101_120000_000001_0001_door.jpg",
	}}
	handler := NewUploadHandler(ing, 0, zerolog.Nop())

	recorder := httptest.NewRecorder()
	handler.Upload(recorder, multipartRequest(t, "/upload", "door.jpg", []byte("jpeg bytes"), nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var out ingest.Outcome
	parseJSONResponse(t, recorder, &out)
	if out.Status != ingest.StatusAuthorized || out.Name != "Alice" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if ing.gotName != "door.jpg" || !bytes.Equal(ing.gotData, []byte("jpeg bytes")) {
		t.Errorf("ingester got (%q, %q)", ing.gotName, ing.gotData)
	}
}

func TestUploadHandler_Upload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		ingestErr  error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing image",
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "/upload", "", nil, map[string]string{"x": "y"}) },
			wantStatus: http.StatusBadRequest,
			wantError:  errMissingImage,
		},
		{
			name:       "empty image",
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "/upload", "a.jpg", nil, nil) },
			wantStatus: http.StatusBadRequest,
			wantError:  "empty image file",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("{}"))
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "failed to parse multipart form",
		},
		{
			name:       "invalid input",
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "/upload", "a.exe", []byte("x"), nil) },
			ingestErr:  fmt.Errorf("%w: file type not allowed", storage.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid image file",
		},
		{
			name:       "storage failure",
			req:        func(t *testing.T) *http.Request { return multipartRequest(t, "/upload", "a.jpg", []byte("x"), nil) },
			ingestErr:  fmt.Errorf("%w: disk full", storage.ErrStorage),
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to store image",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewUploadHandler(&fakeIngester{err: tc.ingestErr}, 0, zerolog.Nop())
			recorder := httptest.NewRecorder()
			handler.Upload(recorder, tc.req(t))

			assertStatusCode(t, recorder, tc.wantStatus)
			assertJSONError(t, recorder, tc.wantError)
		})
	}
}

func TestUploadHandler_Upload_TooLarge(t *testing.T) {
	ing := &fakeIngester{}
	handler := NewUploadHandler(ing, 1024, zerolog.Nop())

	recorder := httptest.NewRecorder()
	handler.Upload(recorder, multipartRequest(t, "/upload", "big.jpg", bytes.Repeat([]byte("x"), 64*1024), nil))

	assertStatusCode(t, recorder, http.StatusRequestEntityTooLarge)
	if ing.calls != 0 {
		t.Error("oversized upload must not reach the pipeline")
	}
}

func TestUploadHandler_Upload_UnexpectedError(t *testing.T) {
	handler := NewUploadHandler(&fakeIngester{err: errors.New("boom")}, 0, zerolog.Nop())
	recorder := httptest.NewRecorder()
	handler.Upload(recorder, multipartRequest(t, "/upload", "a.jpg", []byte("x"), nil))
	assertStatusCode(t, recorder, http.StatusInternalServerError)
}
