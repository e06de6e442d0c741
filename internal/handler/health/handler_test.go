package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TomasB/geoalloc/internal/data"
	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	req, err := http.NewRequest("GET", path, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(t, NewHandler(nil), "/health")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	expectedBody := `{"status":"ok"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}

func TestHealth_IgnoresStore(t *testing.T) {
	store := data.NewAllocationStore(data.NewMemoryBackend())

	w := serve(t, NewHandler(store), "/health")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestReady_NilStore(t *testing.T) {
	w := serve(t, NewHandler(nil), "/ready")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	expectedBody := `{"status":"ready"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}

func TestReady_NotLoaded(t *testing.T) {
	store := data.NewAllocationStore(data.NewMemoryBackend())

	w := serve(t, NewHandler(store), "/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestReady_Loaded(t *testing.T) {
	store := data.NewAllocationStore(data.NewMemoryBackend())
	if _, err := store.Load(context.Background(), []string{
		"203.0.113.0/24,0,0,US,United States,CA,California",
		"2001:db8::/32,0,0,DE,Germany,BE,Berlin",
	}); err != nil {
		t.Fatalf("load dataset: %v", err)
	}

	w := serve(t, NewHandler(store), "/ready")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	expectedBody := `{"records":2,"status":"ready"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}
