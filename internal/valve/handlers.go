package valve

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider. The actuation endpoint is
// rate-limited to 10 requests per minute across all callers.
func (m *Module) Routes() []plugin.Route {
	if m.actuateLimiter == nil {
		m.actuateLimiter = rate.NewLimiter(rate.Every(6*time.Second), 10)
	}
	return []plugin.Route{
		{Method: "GET", Path: "/valves", Handler: m.handleListValves},
		{Method: "GET", Path: "/valves/{id}", Handler: m.handleGetValve},
		{Method: "POST", Path: "/valves/{id}/actuate", Handler: m.handleActuate},
		{Method: "GET", Path: "/valves/{id}/actuations", Handler: m.handleValveActuations},
		{Method: "GET", Path: "/actuations", Handler: m.handleActuations},
		{Method: "GET", Path: "/health", Handler: m.handleHealth},
	}
}

func (m *Module) handleListValves(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Valves(r.Context()))
}

func (m *Module) handleGetValve(w http.ResponseWriter, r *http.Request) {
	v, err := m.Valve(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (m *Module) handleActuate(w http.ResponseWriter, r *http.Request) {
	if !m.actuateLimiter.Allow() {
		httpx.WriteError(w, http.StatusTooManyRequests, "actuation rate limit exceeded")
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid actuation payload")
		return
	}
	actuation, err := m.Actuate(r.Context(), r.PathValue("id"), req.Action)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, actuation)
}

func (m *Module) handleValveActuations(w http.ResponseWriter, r *http.Request) {
	m.writeActuations(w, r, r.PathValue("id"))
}

func (m *Module) handleActuations(w http.ResponseWriter, r *http.Request) {
	m.writeActuations(w, r, "")
}

func (m *Module) writeActuations(w http.ResponseWriter, r *http.Request, valveID string) {
	limit := httpx.ParseLimit(r, 50)
	actuations, err := m.Actuations(r.Context(), valveID, limit)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list actuations")
		return
	}
	if actuations == nil {
		actuations = []Actuation{}
	}
	httpx.WriteJSON(w, http.StatusOK, actuations)
}

func (m *Module) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Health(r.Context()))
}
