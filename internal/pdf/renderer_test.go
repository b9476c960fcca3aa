package pdf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/homescope/reports-back/internal/domain"
)

type stubStore struct {
	objects map[string][]byte
}

func (s *stubStore) Put(_ context.Context, key string, body []byte, _ string) error {
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = body
	return nil
}

func (s *stubStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.homescope.io/" + key + "?sig=abc", nil
}

func (s *stubStore) Owns(string) bool { return false }

type stubRenderer struct {
	body []byte
	err  error
	url  string
}

func (r *stubRenderer) Render(_ context.Context, printURL string) ([]byte, error) {
	r.url = printURL
	return r.body, r.err
}

func TestFilename(t *testing.T) {
	got := Filename("San Marcos", domain.ReportMarketSnapshot, "0f9c2a7d-1234-5678-9abc-def012345678")
	want := "San-Marcos_MarketSnapshot_0f9c2a7d.pdf"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFilenameFallsBackForEmptyCity(t *testing.T) {
	got := Filename("", domain.ReportNewListingsGallery, "abcd1234")
	if !strings.HasPrefix(got, "Area_NewListingsGallery_") {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestRenderAndStoreUploadsUnderAccountKey(t *testing.T) {
	store := &stubStore{}
	renderer := &stubRenderer{body: []byte("%PDF-1.7")}
	service := NewService(renderer, store, "https://print.homescope.io")

	url, err := service.RenderAndStore(context.Background(), "acct-9", "run12345678", domain.ReportClosed, "Austin")
	if err != nil {
		t.Fatalf("render and store: %v", err)
	}
	if renderer.url != "https://print.homescope.io/print/run12345678" {
		t.Fatalf("unexpected print url %q", renderer.url)
	}
	wantKey := "reports/acct-9/Austin_Closed_run12345.pdf"
	if _, ok := store.objects[wantKey]; !ok {
		t.Fatalf("expected object at %q, stored: %v", wantKey, keys(store.objects))
	}
	if !strings.Contains(url, wantKey) {
		t.Fatalf("presigned URL should reference the key, got %q", url)
	}
}

func TestRenderAndStoreWrapsBackendFailure(t *testing.T) {
	service := NewService(&stubRenderer{err: fmt.Errorf("browser crashed")}, &stubStore{}, "https://print.homescope.io")

	_, err := service.RenderAndStore(context.Background(), "acct-9", "run-1", domain.ReportClosed, "Austin")
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}
}

func TestCloudRendererSendsRenderJob(t *testing.T) {
	var received cloudRenderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte("%PDF-1.7 bytes"))
	}))
	defer server.Close()

	renderer := NewCloudRenderer(server.URL, "secret")
	body, err := renderer.Render(context.Background(), "https://print.homescope.io/print/run-1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("expected pdf bytes")
	}
	if received.Format != "Letter" || received.Margin != 0 || !received.UsePrint {
		t.Fatalf("unexpected render job: %+v", received)
	}
	if received.DelayMS != 8000 || !received.WaitForNetwork || received.TimeoutSeconds != 100 {
		t.Fatalf("unexpected render timing: %+v", received)
	}
}

func TestCloudRendererSurfacesServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := NewCloudRenderer(server.URL, "secret").Render(context.Background(), "https://x/print/1"); err == nil {
		t.Fatal("expected error from 502 response")
	}
}

func keys(objects map[string][]byte) []string {
	var result []string
	for key := range objects {
		result = append(result, key)
	}
	return result
}
