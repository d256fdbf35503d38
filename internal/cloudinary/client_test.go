package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUpload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/test-cloud/image/upload" {
			t.Fatalf("path = %q", r.URL.Path)
		}

		if err := r.ParseMultipartForm(MaxFileSize); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		if got := r.FormValue("upload_preset"); got != "test-preset" {
			t.Fatalf("upload_preset = %q", got)
		}
		if got := r.FormValue("folder"); got != "zona-botin/products" {
			t.Fatalf("folder = %q", got)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(file); err != nil {
			t.Fatalf("read file: %v", err)
		}
		if buf.String() != "fake-image-bytes" {
			t.Fatalf("file content = %q", buf.String())
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"secure_url": "https://res.cloudinary.example/botin.jpg",
			"public_id":  "zona-botin/products/botin",
		})
	}))
	defer srv.Close()

	c := NewClient("test-cloud", "test-preset", srv.URL)

	res, err := c.Upload(context.Background(), "botin.jpg", "image/jpeg", []byte("fake-image-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if res.URL != "https://res.cloudinary.example/botin.jpg" {
		t.Fatalf("url = %q", res.URL)
	}
	if res.PublicID != "zona-botin/products/botin" {
		t.Fatalf("public id = %q", res.PublicID)
	}
}

func TestUpload_RejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("non-image file must be rejected before any network call")
	}))
	defer srv.Close()

	c := NewClient("test-cloud", "test-preset", srv.URL)

	_, err := c.Upload(context.Background(), "doc.pdf", "application/pdf", []byte("%PDF"))
	if !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("expected ErrNotAnImage, got %v", err)
	}
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("oversized file must be rejected before any network call")
	}))
	defer srv.Close()

	c := NewClient("test-cloud", "test-preset", srv.URL)

	big := make([]byte, MaxFileSize+1)
	_, err := c.Upload(context.Background(), "big.jpg", "image/jpeg", big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUpload_NotConfigured(t *testing.T) {
	c := NewClient("", "", "")

	_, err := c.Upload(context.Background(), "botin.jpg", "image/jpeg", []byte("x"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
