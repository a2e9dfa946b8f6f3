package avatar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestURLEncodesSeed(t *testing.T) {
	d := NewDiceBear("https://avatars.example/svg")
	got := d.URL("María Pérez")
	want := "https://avatars.example/svg?seed=Mar%C3%ADa+P%C3%A9rez"
	if got != want {
		t.Fatalf("URL() = %q, want %q", got, want)
	}
}

func TestFetchReturnsImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("seed") != "ana" {
			t.Errorf("unexpected seed %q", r.URL.Query().Get("seed"))
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte("<svg/>"))
	}))
	defer srv.Close()

	d := NewDiceBear(srv.URL)
	data, contentType, err := d.Fetch(context.Background(), "ana")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "<svg/>" || contentType != "image/svg+xml" {
		t.Fatalf("unexpected response %q %q", data, contentType)
	}
}

func TestFetchRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, _, err := NewDiceBear(srv.URL).Fetch(context.Background(), "ana"); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}
