package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestHTTPUploaderUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer f.Close()
		if header.Filename != "photo.jpg" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		content, _ := io.ReadAll(f)
		if string(content) != "jpeg bytes" {
			t.Errorf("unexpected file content %q", content)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "https://media.example.com/photo-abc.jpg\n")
	}))
	defer srv.Close()

	u, err := NewHTTPUploader(WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewHTTPUploader failed: %v", err)
	}
	url, err := u.Upload(context.Background(), writeTempImage(t))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "https://media.example.com/photo-abc.jpg" {
		t.Errorf("unexpected URL %q", url)
	}
}

func TestHTTPUploaderHostError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	u, _ := NewHTTPUploader(WithEndpoint(srv.URL))
	if _, err := u.Upload(context.Background(), writeTempImage(t)); err == nil {
		t.Error("expected error on non-2xx response")
	}
}

func TestHTTPUploaderMissingFile(t *testing.T) {
	u, _ := NewHTTPUploader(WithEndpoint("http://localhost:1"))
	if _, err := u.Upload(context.Background(), "/nonexistent/photo.jpg"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewHTTPUploaderRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPUploader(); err == nil {
		t.Error("expected error when endpoint is not set")
	}
}
