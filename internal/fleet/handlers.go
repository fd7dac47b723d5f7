package fleet

import (
	"errors"
	"net/http"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/nodes", Handler: m.handleListNodes},
		{Method: "POST", Path: "/nodes", Handler: m.handleRegisterNode},
		{Method: "GET", Path: "/nodes/{namespace}/{name}", Handler: m.handleGetNode},
		{Method: "POST", Path: "/nodes/{namespace}/{name}/offline", Handler: m.handleMarkOffline},
		{Method: "POST", Path: "/subscriptions", Handler: m.handleSubscribe},
		{Method: "POST", Path: "/commands", Handler: m.handlePublishCommand},
		{Method: "GET", Path: "/commands", Handler: m.handleListCommands},
		{Method: "GET", Path: "/commands/{command_id}", Handler: m.handleCommandResult},
	}
}

// writeFleetError maps the fleet sentinels onto problem responses.
func writeFleetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTopicNotSubscribed), errors.Is(err, ErrTopicNotPublished):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func (m *Module) handleListNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nodes := m.Discover(NodeFilter{
		Type:      q.Get("type"),
		Namespace: q.Get("namespace"),
	})
	httpx.WriteJSON(w, http.StatusOK, nodes)
}

func (m *Module) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var node Node
	if err := httpx.DecodeJSON(r, &node); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid node payload")
		return
	}
	if node.ID == "" && (node.Namespace == "" || node.Name == "") {
		httpx.WriteError(w, http.StatusBadRequest, "namespace and name are required")
		return
	}
	registered := m.Register(r.Context(), node)
	httpx.WriteJSON(w, http.StatusCreated, registered)
}

func (m *Module) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("namespace") + "/" + r.PathValue("name")
	node, err := m.Get(id)
	if err != nil {
		writeFleetError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, node)
}

func (m *Module) handleMarkOffline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("namespace") + "/" + r.PathValue("name")
	if err := m.MarkOffline(r.Context(), id); err != nil {
		writeFleetError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "offline"})
}

func (m *Module) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NodeID string `json:"nodeId"`
		Topic  string `json:"topic"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid subscription payload")
		return
	}
	if err := m.SubscribeTelemetry(req.NodeID, req.Topic); err != nil {
		writeFleetError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "subscribed"})
}

func (m *Module) handlePublishCommand(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	if err := httpx.DecodeJSON(r, &cmd); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid command payload")
		return
	}
	result, err := m.PublishCommand(r.Context(), cmd)
	if err != nil {
		writeFleetError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, result)
}

func (m *Module) handleListCommands(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.CommandResults())
}

func (m *Module) handleCommandResult(w http.ResponseWriter, r *http.Request) {
	result, err := m.CommandResult(r.PathValue("command_id"))
	if err != nil {
		writeFleetError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}
