package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kalasky/alina-bot/internal/voice"
)

type fakeSource struct{ infos []voice.Info }

func (f fakeSource) Snapshot() []voice.Info { return f.infos }

func TestHealthz(t *testing.T) {
	e := New(fakeSource{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessions(t *testing.T) {
	e := New(fakeSource{infos: []voice.Info{{SpeakerID: "u1", State: "capturing"}}})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []voice.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(got) != 1 || got[0].SpeakerID != "u1" || got[0].State != "capturing" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := New(fakeSource{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
