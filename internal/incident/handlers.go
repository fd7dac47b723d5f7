package incident

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/incidents", Handler: m.handleListIncidents},
		{Method: "GET", Path: "/incidents/{id}", Handler: m.handleGetIncident},
		{Method: "PATCH", Path: "/incidents/{id}", Handler: m.handleUpdateIncident},
		{Method: "GET", Path: "/incidents/{id}/timeline", Handler: m.handleTimeline},
	}
}

func writeIncidentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleListIncidents lists active incidents by default; scope=recent
// switches to the started-within-window view (default 24h).
func (m *Module) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("scope") == "recent" {
		hours := 24
		if s := q.Get("hours"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				httpx.WriteError(w, http.StatusBadRequest, "hours must be a positive integer")
				return
			}
			hours = n
		}
		httpx.WriteJSON(w, http.StatusOK, m.ListRecent(hours))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m.ListActive())
}

func (m *Module) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := m.Get(r.PathValue("id"))
	if err != nil {
		writeIncidentError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inc)
}

func (m *Module) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	var update Update
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid update payload")
		return
	}
	inc, err := m.Update(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeIncidentError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inc)
}

func (m *Module) handleTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := m.Timeline(r.PathValue("id"))
	if err != nil {
		writeIncidentError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, timeline)
}
