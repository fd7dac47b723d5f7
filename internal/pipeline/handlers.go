package pipeline

import (
	"errors"
	"net/http"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/summary", Handler: m.handleSummary},
		{Method: "GET", Path: "/health", Handler: m.handleHealthReport},
		{Method: "GET", Path: "/sections", Handler: m.handleSections},
		{Method: "GET", Path: "/sections/{id}", Handler: m.handleSectionDetail},
		{Method: "GET", Path: "/leaks", Handler: m.handleLeaks},
		{Method: "GET", Path: "/leaks/{id}", Handler: m.handleLeak},
		{Method: "POST", Path: "/leaks/{id}/resolve", Handler: m.handleResolve},
	}
}

func (m *Module) handleSummary(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Summarize())
}

func (m *Module) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.HealthReport())
}

func (m *Module) handleSections(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Sections())
}

func (m *Module) handleSectionDetail(w http.ResponseWriter, r *http.Request) {
	health, leaks, err := m.SectionDetail(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if leaks == nil {
		leaks = []Leak{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"health": health, "leaks": leaks})
}

func (m *Module) handleLeaks(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Leaks())
}

func (m *Module) handleLeak(w http.ResponseWriter, r *http.Request) {
	leak, err := m.Leak(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, leak)
}

func (m *Module) handleResolve(w http.ResponseWriter, r *http.Request) {
	leak, err := m.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, leak)
}
