package mission

import (
	"errors"
	"net/http"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/missions", Handler: m.handleList},
		{Method: "POST", Path: "/missions", Handler: m.handleCreate},
		{Method: "GET", Path: "/missions/active", Handler: m.handleActive},
		{Method: "GET", Path: "/missions/{id}", Handler: m.handleGet},
		{Method: "POST", Path: "/missions/{id}/start", Handler: m.handleStart},
		{Method: "POST", Path: "/missions/{id}/pause", Handler: m.handlePause},
		{Method: "POST", Path: "/missions/{id}/resume", Handler: m.handleResume},
		{Method: "POST", Path: "/missions/{id}/stop", Handler: m.handleStop},
		{Method: "POST", Path: "/missions/{id}/speed", Handler: m.handleSetSpeed},
		{Method: "POST", Path: "/missions/{id}/branch", Handler: m.handleBranch},
	}
}

func writeMissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.List())
}

func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	var spec CreateSpec
	if err := httpx.DecodeJSON(r, &spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid mission payload")
		return
	}
	if spec.Title == "" {
		httpx.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, m.Create(spec))
}

func (m *Module) handleActive(w http.ResponseWriter, r *http.Request) {
	mission, ok := m.Active()
	if !ok {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"active": true, "mission": mission})
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	mission, err := m.Get(r.PathValue("id"))
	if err != nil {
		writeMissionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mission)
}

func (m *Module) handleStart(w http.ResponseWriter, r *http.Request) {
	mission, err := m.StartMission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMissionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mission)
}

func (m *Module) handlePause(w http.ResponseWriter, r *http.Request) {
	mission, err := m.PauseMission(r.PathValue("id"))
	if err != nil {
		writeMissionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mission)
}

func (m *Module) handleResume(w http.ResponseWriter, r *http.Request) {
	mission, err := m.ResumeMission(r.PathValue("id"))
	if err != nil {
		writeMissionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mission)
}

func (m *Module) handleStop(w http.ResponseWriter, r *http.Request) {
	mission, err := m.StopMission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMissionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mission)
}

func (m *Module) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid speed payload")
		return
	}
	mission, err := m.SetSpeed(r.PathValue("id"), req.Speed)
	if err != nil {
		writeMissionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mission)
}

func (m *Module) handleBranch(w http.ResponseWriter, r *http.Request) {
	var overrides BranchOverrides
	if err := httpx.DecodeJSON(r, &overrides); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid branch payload")
		return
	}
	mission, err := m.Branch(r.PathValue("id"), overrides)
	if err != nil {
		writeMissionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, mission)
}
