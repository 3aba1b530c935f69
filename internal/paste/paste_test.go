package paste

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUpload(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/documents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"key":"abc123"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	link, err := c.Upload(context.Background(), "hello output", "txt")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if link != srv.URL+"/abc123.txt" {
		t.Errorf("link = %q", link)
	}
	if gotBody != "hello output" {
		t.Errorf("uploaded body = %q", gotBody)
	}
}

func TestUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Upload(context.Background(), "x", "txt"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestUploadMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Upload(context.Background(), "x", "txt"); err == nil {
		t.Fatal("expected error on missing key")
	}
}
