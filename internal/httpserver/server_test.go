package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"hotel-receptionist/internal/backend"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/logging"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/simulator"
	"hotel-receptionist/internal/storage"
	"hotel-receptionist/internal/voice"
)

func newTestServer(t *testing.T, basePath string) (http.Handler, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	svc := backend.New(backend.Options{
		Store:   mem,
		Metrics: metrics.NewUnregistered(),
		Logger:  logging.Nop(),
		Now:     func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	srv := New(":0", logging.Nop(), metrics.NewUnregistered(), svc, Handlers{}, basePath)
	return srv.Handler(), mem
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, "")
	rec := do(h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(h, http.MethodPost, "/healthz", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAPIReadViews(t *testing.T) {
	h, _ := newTestServer(t, "")

	rec := do(h, http.MethodGet, "/api/clients", "")
	var clients []hotel.Client
	if err := json.Unmarshal(rec.Body.Bytes(), &clients); err != nil || len(clients) != 2 {
		t.Fatalf("unexpected clients response %s (%v)", rec.Body.String(), err)
	}

	rec = do(h, http.MethodGet, "/api/bookings", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Family Cottage") {
		t.Fatalf("unexpected bookings response %s", rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/api/license", "")
	if !strings.Contains(rec.Body.String(), `"plan":"pro"`) {
		t.Fatalf("unexpected license response %s", rec.Body.String())
	}

	if rec := do(h, http.MethodDelete, "/api/logs", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAPIUpdateConfig(t *testing.T) {
	h, mem := newTestServer(t, "")

	rec := do(h, http.MethodGet, "/api/config", "")
	var cfg hotel.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	cfg.HotelName = "Nile Lodge"
	body, _ := json.Marshal(cfg)

	rec = do(h, http.MethodPut, "/api/config", string(body))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Nile Lodge") {
		t.Fatalf("unexpected update response %d %s", rec.Code, rec.Body.String())
	}

	if rec := do(h, http.MethodPut, "/api/config", `{"hotelName":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty hotel name, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPut, "/api/config", `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rec.Code)
	}

	var lic hotel.License
	if _, err := mem.Read(context.Background(), storage.License, &lic); err != nil {
		t.Fatalf("read license: %v", err)
	}
	lic.IsActive = false
	_ = mem.WriteAll(context.Background(), storage.License, lic)
	if rec := do(h, http.MethodPut, "/api/config", string(body)); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with inactive license, got %d", rec.Code)
	}
}

func TestBasePathMounting(t *testing.T) {
	h, _ := newTestServer(t, "/desk/")
	if rec := do(h, http.MethodGet, "/desk/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 under base path, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside base path, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/desktop/healthz", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for prefix lookalike, got %d", rec.Code)
	}
}

type cannedModel string

func (m cannedModel) Generate(context.Context, simulator.ChatRequest) (simulator.ChatReply, error) {
	return simulator.ChatReply{Text: string(m)}, nil
}

var actionAttr = regexp.MustCompile(`action="([^"]+)"`)

func TestPhoneCallFollowsCallbackUnderBasePath(t *testing.T) {
	mem := storage.NewMemory()
	svc := backend.New(backend.Options{Store: mem, Metrics: metrics.NewUnregistered(), Logger: logging.Nop()})
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	sim := simulator.New(simulator.Deps{
		Model:    cannedModel("We have rooms available."),
		Tools:    svc.Tools,
		Settings: svc.Settings,
		Audit:    svc.Audit,
		Metrics:  metrics.NewUnregistered(),
		Logger:   logging.Nop(),
	}, simulator.Config{BasePath: "/desk"})
	handlers := Handlers{Voice: voice.NewHandler(sim, logging.Nop(), metrics.NewUnregistered(), voice.Options{})}
	h := New(":0", logging.Nop(), metrics.NewUnregistered(), svc, handlers, "/desk").Handler()

	postForm := func(path string, v url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(v.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := postForm("/desk/voice/incoming", url.Values{"CallSid": {"CA42"}, "From": {"+256700000001"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("incoming: status %d", rec.Code)
	}
	m := actionAttr.FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatalf("welcome has no gather action: %s", rec.Body.String())
	}
	if m[1] != "/desk/voice/process" {
		t.Fatalf("unexpected callback %q", m[1])
	}

	rec = postForm(m[1], url.Values{"CallSid": {"CA42"}, "SpeechResult": {"Any rooms tonight?"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("process: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "We have rooms available.") {
		t.Fatalf("unexpected reply %s", rec.Body.String())
	}
}
