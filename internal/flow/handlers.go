package flow

import (
	"net/http"
	"time"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/health", Handler: m.handleHealth},
		{Method: "GET", Path: "/metrics", Handler: m.handleMetrics},
		{Method: "GET", Path: "/metrics/history", Handler: m.handleHistory},
		{Method: "GET", Path: "/metrics/stats", Handler: m.handleStats},
		{Method: "GET", Path: "/anomalies", Handler: m.handleAnomalies},
		{Method: "GET", Path: "/source", Handler: m.handleSource},
		{Method: "POST", Path: "/ingest", Handler: m.handleIngest},
	}
}

func (m *Module) handleHealth(w http.ResponseWriter, r *http.Request) {
	score, recent := m.HealthScore(time.Now().UTC())
	status := "healthy"
	switch {
	case score < 50:
		status = "critical"
	case score < 80:
		status = "degraded"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"score":           score,
		"recentAnomalies": len(recent),
		"source":          m.Source(),
	})
}

func (m *Module) handleMetrics(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Current())
}

func (m *Module) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := httpx.ParseLimit(r, 50)
	history := m.History(limit)
	if history == nil {
		history = []models.TelemetrySample{}
	}
	httpx.WriteJSON(w, http.StatusOK, history)
}

func (m *Module) handleStats(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Stats())
}

func (m *Module) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var since time.Time
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = t
	}

	anomalies := m.Anomalies(q.Get("severity"), q.Get("type"), since)
	if anomalies == nil {
		anomalies = []Anomaly{}
	}
	httpx.WriteJSON(w, http.StatusOK, anomalies)
}

func (m *Module) handleSource(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"source": m.Source()})
}

func (m *Module) handleIngest(w http.ResponseWriter, r *http.Request) {
	var sample models.TelemetrySample
	if err := httpx.DecodeJSON(r, &sample); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid telemetry payload")
		return
	}
	m.Ingest(r.Context(), sample)
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
