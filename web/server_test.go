package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"linesign/config"
	"linesign/poller"
	"linesign/snapshot"
)

type fakeProvider struct {
	update  poller.Update
	hasData bool
	status  poller.Status
}

func (f *fakeProvider) Last() (poller.Update, bool) { return f.update, f.hasData }

func (f *fakeProvider) Status() poller.Status { return f.status }

func testServer(provider DataProvider) *Server {
	return NewServer(config.WebConfig{Host: "127.0.0.1", Port: 0}, "A1", "test", provider)
}

func TestProductionEndpoint(t *testing.T) {
	captured := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	provider := &fakeProvider{
		hasData: true,
		update: poller.Update{
			Snapshot: snapshot.ProductionSnapshot{
				Plan:        2800,
				Actual:      1200,
				ProductType: 3,
				InOperating: true,
				CapturedAt:  captured,
				PLCTime:     captured,
			},
			RemainPallets: 2,
			RemainMinutes: 32,
		},
	}
	provider.update.Product.Name = "Widget 700"
	provider.update.ProductKnown = true

	s := testServer(provider)
	req := httptest.NewRequest("GET", "/api/production", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ProductionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Line != "A1" || resp.Plan != 2800 || resp.Actual != 1200 || resp.Remaining != 1600 {
		t.Errorf("response = %+v", resp)
	}
	if resp.ProductName != "Widget 700" || resp.RemainPallets != 2 || resp.RemainMinutes != 32 {
		t.Errorf("derived fields = %+v", resp)
	}
	if resp.CapturedAt != "2026-05-06T07:08:09Z" {
		t.Errorf("CapturedAt = %q", resp.CapturedAt)
	}
}

func TestProductionNoData(t *testing.T) {
	s := testServer(&fakeProvider{})
	req := httptest.NewRequest("GET", "/api/production", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Error("error body missing")
	}
}

func TestStatusEndpoint(t *testing.T) {
	provider := &fakeProvider{
		status: poller.Status{Mode: "plc", HasData: true, Failures: 2, LastError: "timeout"},
	}
	s := testServer(provider)
	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st poller.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Mode != "plc" || st.Failures != 2 || st.LastError != "timeout" {
		t.Errorf("status = %+v", st)
	}
}

func TestSystemEndpoint(t *testing.T) {
	s := testServer(&fakeProvider{})
	req := httptest.NewRequest("GET", "/api/system", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp SystemResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != "test" || resp.Line != "A1" || resp.GoVersion == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(&fakeProvider{})
	req := httptest.NewRequest("OPTIONS", "/api/production", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}
