package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/engine"
	"SignalDeck/pkg/logger"
	"SignalDeck/pkg/metrics"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*SignalsHandler, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Config{Source: "fudkii", MaxPerDay: 10}, logger.Nop(), metrics.Nop(), nil, nil)
	t.Cleanup(eng.Close)
	return NewSignalsHandler(logger.Nop(), map[string]*engine.Engine{"fudkii": eng}), eng
}

func doRequest(t *testing.T, h *SignalsHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, eng *engine.Engine, instrument string, at time.Time) {
	t.Helper()
	ok, reason := eng.Process(context.Background(), &models.SignalEvent{
		Instrument:  instrument,
		Triggered:   true,
		Direction:   "LONG",
		TriggerTime: at.UnixMilli(),
	})
	if !ok {
		t.Fatalf("seed rejected: %s", reason)
	}
}

func TestActiveEndpoint(t *testing.T) {
	h, eng := newTestHandler(t)
	seed(t, eng, "500325", time.Now())

	rec := doRequest(t, h, "/api/signals/fudkii/active")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected code %d", rec.Code)
	}

	var body struct {
		Status int `json:"status"`
		Data   struct {
			Rows  []*models.SignalRecord `json:"rows"`
			Total int64                  `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Total != 1 || body.Data.Rows[0].Instrument != "500325" {
		t.Fatalf("unexpected body %+v", body.Data)
	}
}

func TestUnknownSourceIs404(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, "/api/signals/nope/active")
	var body struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusNotFound {
		t.Fatalf("expected 404 status in envelope, got %d", body.Status)
	}
}

func TestLatestOneEndpoint(t *testing.T) {
	h, eng := newTestHandler(t)
	seed(t, eng, "500325", time.Now())

	rec := doRequest(t, h, "/api/signals/fudkii/latest/500325")
	var body struct {
		Status int                  `json:"status"`
		Data   *models.SignalRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data == nil || body.Data.Instrument != "500325" {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = doRequest(t, h, "/api/signals/fudkii/latest/532540")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusNotFound {
		t.Fatalf("expected 404 for absent instrument, got %d", body.Status)
	}
}

func TestHistoryLimit(t *testing.T) {
	h, eng := newTestHandler(t)
	base := time.Now()
	for i := 0; i < 3; i++ {
		seed(t, eng, "500325", base.Add(time.Duration(i)*6*time.Minute))
	}

	rec := doRequest(t, h, "/api/signals/fudkii/history?limit=2")
	var body struct {
		Data struct {
			Rows  []*models.SignalRecord `json:"rows"`
			Total int64                  `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Total != 3 || len(body.Data.Rows) != 2 {
		t.Fatalf("expected total 3 rows 2, got total %d rows %d", body.Data.Total, len(body.Data.Rows))
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected code %d", rec.Code)
	}
}
