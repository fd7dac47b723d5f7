package intel

import (
	"net/http"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/insights", Handler: m.handleList},
		{Method: "POST", Path: "/insights", Handler: m.handleIngest},
		{Method: "GET", Path: "/insights/{id}", Handler: m.handleGet},
	}
}

func validSeverity(s string) bool {
	switch s {
	case "", "info", "warning", "critical":
		return true
	}
	return false
}

func (m *Module) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string   `json:"title"`
		Summary  string   `json:"summary"`
		Severity string   `json:"severity"`
		Source   string   `json:"source"`
		Tags     []string `json:"tags"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" || req.Source == "" {
		httpx.WriteError(w, http.StatusBadRequest, "title and source are required")
		return
	}
	if !validSeverity(req.Severity) {
		httpx.WriteError(w, http.StatusBadRequest, "severity must be info, warning, or critical")
		return
	}

	insight := m.Ingest(r.Context(), Insight{
		Title:    req.Title,
		Summary:  req.Summary,
		Severity: req.Severity,
		Source:   req.Source,
		Tags:     req.Tags,
	})
	httpx.WriteJSON(w, http.StatusCreated, insight)
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	severity := r.URL.Query().Get("severity")
	if !validSeverity(severity) {
		httpx.WriteError(w, http.StatusBadRequest, "severity must be info, warning, or critical")
		return
	}

	insights := m.List(severity)
	limit := httpx.ParseLimit(r, 100)
	if len(insights) > limit {
		insights = insights[len(insights)-limit:]
	}
	if insights == nil {
		insights = []Insight{}
	}
	httpx.WriteJSON(w, http.StatusOK, insights)
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	insight, err := m.Get(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, insight)
}
