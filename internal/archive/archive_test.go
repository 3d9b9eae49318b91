package archive

import (
	"context"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/config"
)

type fakeS3 struct {
	mu     sync.Mutex
	method string
	path   string
	body   []byte
	meta   string
	status int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.method = r.Method
	f.path = r.URL.Path
	f.body, _ = io.ReadAll(r.Body)
	f.meta = r.Header.Get("X-Amz-Meta-Sha256")
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestArchiver(t *testing.T, endpoint string) *S3 {
	t.Helper()
	a, err := New(context.Background(), &config.ArchiveConfig{
		Bucket:         "evidence",
		Prefix:         "intruders/",
		Endpoint:       endpoint,
		Region:         "us-east-1",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_DisabledWithoutBucket(t *testing.T) {
	a, err := New(context.Background(), &config.ArchiveConfig{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Fatal("expected nil archiver when no bucket is configured")
	}
}

func TestArchive_UploadsObject(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "20260101_120000_000001_0001_door.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	a := newTestArchiver(t, srv.URL)
	key, err := a.Archive(context.Background(), path)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if key != "intruders/20260101_120000_000001_0001_door.jpg" {
		t.Errorf("unexpected key %q", key)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.method != http.MethodPut {
		t.Errorf("expected PUT, got %s", fake.method)
	}
	if fake.path != "/evidence/"+key {
		t.Errorf("unexpected request path %q", fake.path)
	}
	if fake.meta == "" {
		t.Error("expected sha256 metadata header")
	}
}

func TestArchive_MissingFile(t *testing.T) {
	a := newTestArchiver(t, "http://127.0.0.1:1")
	if _, err := a.Archive(context.Background(), filepath.Join(t.TempDir(), "gone.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestArchive_ServerError(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "x.png")
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}
	a := newTestArchiver(t, srv.URL)
	if _, err := a.Archive(context.Background(), path); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestArchive_CustomCABundle(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewTLSServer(fake)
	defer srv.Close()

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(bundle, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AWS_CA_BUNDLE", bundle)

	path := filepath.Join(t.TempDir(), "door.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	a := newTestArchiver(t, srv.URL)
	if _, err := a.Archive(context.Background(), path); err != nil {
		t.Fatalf("Archive over TLS with custom CA bundle: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.method != http.MethodPut {
		t.Errorf("expected PUT, got %s", fake.method)
	}
}
