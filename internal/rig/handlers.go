package rig

import (
	"net/http"
	"time"

	"github.com/plainview-io/plainview/internal/httpx"
	"github.com/plainview-io/plainview/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/cameras", Handler: m.handleListCameras},
		{Method: "GET", Path: "/cameras/{id}", Handler: m.handleGetCamera},
		{Method: "GET", Path: "/cameras/{id}/stream", Handler: m.handleStreamInfo},
		{Method: "GET", Path: "/detections", Handler: m.handleDetections},
		{Method: "GET", Path: "/coverage", Handler: m.handleCoverage},
	}
}

func (m *Module) handleListCameras(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Cameras())
}

func (m *Module) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	cam, err := m.Camera(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cam)
}

func (m *Module) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	cam, err := m.Camera(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"cameraId":  cam.ID,
		"status":    cam.Status,
		"streamUrl": cam.StreamURL,
		"protocol":  "rtsp",
	})
}

func (m *Module) handleDetections(w http.ResponseWriter, r *http.Request) {
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

	detections := m.Detections(DetectionFilter{
		CameraID: q.Get("camera"),
		Type:     q.Get("type"),
		Since:    since,
	})
	limit := httpx.ParseLimit(r, 100)
	if len(detections) > limit {
		detections = detections[len(detections)-limit:]
	}
	if detections == nil {
		detections = []Detection{}
	}
	httpx.WriteJSON(w, http.StatusOK, detections)
}

func (m *Module) handleCoverage(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, m.Coverage())
}
