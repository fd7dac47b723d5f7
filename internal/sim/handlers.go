package sim

import (
	"net/http"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "GET", Path: "/scenarios", Handler: m.handleScenarios},
		{Method: "POST", Path: "/scenario", Handler: m.handleActivate},
		{Method: "POST", Path: "/reset", Handler: m.handleReset},
	}
}

func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"enabled":      m.cfg.Enabled,
		"running":      m.Running(),
		"tickInterval": m.cfg.TickInterval.String(),
		"state":        m.Snapshot(),
	})
}

func (m *Module) handleScenarios(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, ListScenarios())
}

func (m *Module) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc, err := m.ActivateScenario(req.Name)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"scenario": sc.Name,
		"steps":    len(sc.Steps),
	})
}

func (m *Module) handleReset(w http.ResponseWriter, r *http.Request) {
	m.Reset()
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
