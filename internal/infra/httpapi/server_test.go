package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"home-setup/internal/application"
	"home-setup/internal/domain"
	"home-setup/internal/infra/backend"
	"home-setup/internal/infra/floorplan"
	"home-setup/internal/infra/httpapi"
	"home-setup/internal/infra/session"
)

const maxUpload = 1024

type fixture struct {
	handler  http.Handler
	wizard   *application.Session
	received []map[string]any
	// profile is served to GET requests; empty means 404.
	profile string
}

func newFixture(t *testing.T, backendStatus int, backendBody string) *fixture {
	t.Helper()
	return newFixtureWithLimit(t, backendStatus, backendBody, 0)
}

func newFixtureWithLimit(t *testing.T, backendStatus int, backendBody string, ratePerMinute int) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{}

	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if f.profile == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(f.profile))
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.received = append(f.received, body)
		w.WriteHeader(backendStatus)
		w.Write([]byte(backendBody))
	}))
	t.Cleanup(backendSrv.Close)

	identities := session.NewMemory(nil)
	client := backend.NewClient(backendSrv.URL)
	f.wizard = application.NewSession(
		identities,
		client,
		floorplan.NewReader(maxUpload),
		nil,
		logger,
		application.WithMaxFloorplanBytes(maxUpload),
	)
	f.handler = httpapi.NewServer(":0", f.wizard, identities, client, maxUpload, ratePerMinute, logger).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) application.Snapshot {
	t.Helper()
	var snap application.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v (%s)", err, rec.Body.String())
	}
	return snap
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body.Message
}

func (f *fixture) completeWizard(t *testing.T) {
	t.Helper()
	steps := []struct{ method, path, body string }{
		{http.MethodPost, "/api/auth/session", `{"id":5,"username":"anna","role":"user","token":"t"}`},
		{http.MethodPost, "/api/wizard/payment", `{"payment_type":"Базовый"}`},
		{http.MethodPost, "/api/wizard/next", ""},
		{http.MethodPost, "/api/wizard/next", ""},
	}
	for _, s := range steps {
		if rec := f.do(t, s.method, s.path, s.body); rec.Code != http.StatusOK {
			t.Fatalf("%s %s: status %d (%s)", s.method, s.path, rec.Code, rec.Body.String())
		}
	}

	rec := f.do(t, http.MethodPost, "/api/wizard/devices", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add device: status %d", rec.Code)
	}
	var added struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &added)

	for _, field := range []string{`{"field":"name","value":"Lamp"}`, `{"field":"type","value":"actuator"}`, `{"field":"room","value":"livingroom"}`} {
		if rec := f.do(t, http.MethodPatch, "/api/wizard/devices/"+added.ID, field); rec.Code != http.StatusOK {
			t.Fatalf("update device %s: status %d (%s)", field, rec.Code, rec.Body.String())
		}
	}
}

func TestServer_SubmitFlow(t *testing.T) {
	f := newFixture(t, http.StatusOK, `{"id":1}`)
	f.completeWizard(t)

	rec := f.do(t, http.MethodPost, "/api/wizard/submit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d (%s)", rec.Code, rec.Body.String())
	}

	if len(f.received) != 1 {
		t.Fatalf("backend calls: got %d, want 1", len(f.received))
	}
	if f.received[0]["userid"] != float64(5) {
		t.Errorf("userid: got %v, want 5", f.received[0]["userid"])
	}

	snap := decodeSnapshot(t, f.do(t, http.MethodGet, "/api/wizard", ""))
	if !snap.Submitted {
		t.Error("snapshot not marked submitted")
	}
	if len(snap.Devices) != 1 || snap.Devices[0].Name != "Lamp" {
		t.Errorf("devices after submit: %+v", snap.Devices)
	}
}

func TestServer_SubmitRejected(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError, `{"message":"db error"}`)
	f.completeWizard(t)

	rec := f.do(t, http.MethodPost, "/api/wizard/submit", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("submit: status %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if msg := messageOf(t, rec); msg != "db error" {
		t.Errorf("message: got %q, want db error", msg)
	}

	snap := decodeSnapshot(t, f.do(t, http.MethodGet, "/api/wizard", ""))
	if len(snap.Devices) != 1 {
		t.Errorf("devices after rejection: got %d, want 1", len(snap.Devices))
	}
}

func TestServer_NextWithoutPayment(t *testing.T) {
	f := newFixture(t, http.StatusOK, "")

	rec := f.do(t, http.MethodPost, "/api/wizard/next", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_Rooms(t *testing.T) {
	f := newFixture(t, http.StatusOK, "")

	f.do(t, http.MethodPost, "/api/wizard/rooms/kitchen/increment", "")
	f.do(t, http.MethodPost, "/api/wizard/rooms/kitchen/increment", "")
	rec := f.do(t, http.MethodPost, "/api/wizard/rooms/kitchen/decrement", "")

	snap := decodeSnapshot(t, rec)
	if snap.Rooms[domain.RoomKitchen] != 1 {
		t.Errorf("kitchen: got %d, want 1", snap.Rooms[domain.RoomKitchen])
	}

	if rec := f.do(t, http.MethodPost, "/api/wizard/rooms/garage/increment", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown room status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func multipartUpload(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="floorplan"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	part.Write(content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestServer_FloorplanUpload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int
		wantStatus  int
	}{
		{"png", "image/png", 100, http.StatusOK},
		{"pdf", "application/pdf", 10, http.StatusUnsupportedMediaType},
		{"too large", "image/png", maxUpload + 1, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, http.StatusOK, "")
			body, ct := multipartUpload(t, "plan", tt.contentType, bytes.Repeat([]byte("x"), tt.size))

			req := httptest.NewRequest(http.MethodPost, "/api/wizard/floorplan?wait=1", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			hasFloorplan := f.wizard.Floorplan() != nil
			if hasFloorplan != (tt.wantStatus == http.StatusOK) {
				t.Errorf("floorplan stored: got %v", hasFloorplan)
			}
		})
	}
}

func TestServer_Route(t *testing.T) {
	f := newFixture(t, http.StatusOK, "")

	tests := []struct {
		role string
		want domain.Destination
	}{
		{"admin", domain.DestinationAdmin},
		{"worker", domain.DestinationWorker},
		{"user", domain.DestinationDashboard},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodGet, "/api/route?role="+tt.role, "")
		var body struct {
			Destination domain.Destination `json:"destination"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Destination != tt.want {
			t.Errorf("role %s: got %q, want %q", tt.role, body.Destination, tt.want)
		}
	}

	if rec := f.do(t, http.MethodGet, "/api/route", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("route without identity: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestServer_LogoutResetsWizard(t *testing.T) {
	f := newFixture(t, http.StatusOK, "")
	f.completeWizard(t)

	if rec := f.do(t, http.MethodPost, "/api/auth/logout", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}

	snap := f.wizard.Snapshot()
	if snap.Step != domain.StepPayment || len(snap.Devices) != 0 || snap.PaymentType != "" {
		t.Errorf("wizard not reset: %+v", snap)
	}
	if rec := f.do(t, http.MethodPost, "/api/wizard/submit", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("submit after logout: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_LoginPrefills(t *testing.T) {
	f := newFixture(t, http.StatusOK, "")
	f.profile = `{"id":5,"username":"anna","payment_type":"Экономный","floorplan_image":"data:image/png;base64,eA=="}`

	rec := f.do(t, http.MethodPost, "/api/auth/session", `{"id":5,"username":"anna","role":"user"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d (%s)", rec.Code, rec.Body.String())
	}

	snap := decodeSnapshot(t, f.do(t, http.MethodGet, "/api/wizard", ""))
	if snap.PaymentType != domain.PaymentEconomy {
		t.Errorf("payment type: got %q, want %q", snap.PaymentType, domain.PaymentEconomy)
	}
	if !snap.HasFloorplan {
		t.Error("floorplan not prefilled")
	}

	// A later sign-in after logout loads the profile again.
	f.do(t, http.MethodPost, "/api/auth/logout", "")
	if snap := f.wizard.Snapshot(); snap.PaymentType != "" {
		t.Fatalf("payment type after logout: %q", snap.PaymentType)
	}
	f.do(t, http.MethodPost, "/api/auth/session", `{"id":5,"username":"anna","role":"user"}`)
	if snap := f.wizard.Snapshot(); snap.PaymentType != domain.PaymentEconomy {
		t.Errorf("payment type after second login: got %q", snap.PaymentType)
	}
}

func TestServer_LoginWithoutProfile(t *testing.T) {
	f := newFixture(t, http.StatusOK, "")

	rec := f.do(t, http.MethodPost, "/api/auth/session", `{"id":5,"username":"anna","role":"admin"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d (%s)", rec.Code, rec.Body.String())
	}
	if snap := f.wizard.Snapshot(); snap.PaymentType != "" || snap.HasFloorplan {
		t.Errorf("wizard changed without a profile: %+v", snap)
	}
}

func TestServer_RateLimitSparesSnapshotPolling(t *testing.T) {
	const limit = 3
	f := newFixtureWithLimit(t, http.StatusOK, "", limit)

	for i := 1; i <= limit*3; i++ {
		if rec := f.do(t, http.MethodGet, "/api/wizard", ""); rec.Code != http.StatusOK {
			t.Fatalf("GET /api/wizard poll #%d: status %d", i, rec.Code)
		}
	}

	for i := 1; i <= limit; i++ {
		if rec := f.do(t, http.MethodPost, "/api/wizard/back", ""); rec.Code != http.StatusOK {
			t.Fatalf("POST /api/wizard/back #%d: status %d", i, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodPost, "/api/wizard/back", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("mutation over the limit: got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	if rec := f.do(t, http.MethodGet, "/api/wizard", ""); rec.Code != http.StatusOK {
		t.Errorf("poll after limit reached: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health after limit reached: status %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := httpapi.NewRateLimiter(2, 60e9)
	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other client should pass")
	}
}
