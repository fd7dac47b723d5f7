// Package rig simulates the rig's camera coverage: periodic visual
// detections with confidence scores and occasional feed degradation.
package rig

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plainview-io/plainview/pkg/ringbuf"
)

// Camera statuses.
const (
	CameraOnline   = "online"
	CameraDegraded = "degraded"
)

// Detection types a camera can report.
var detectionTypes = []string{
	"pressure_deviation",
	"corrosion",
	"leak_sign",
	"thermal_anomaly",
}

// ErrNotFound is returned for unknown camera IDs.
var ErrNotFound = errors.New("rig: camera not found")

// Region is the bounding box of a detection in frame coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Camera is one monitored feed.
type Camera struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"` // online | degraded
	StreamURL string `json:"streamUrl"`
	Coverage  string `json:"coverage"`
}

// Detection is one visual finding.
type Detection struct {
	ID         string    `json:"id"`
	CameraID   string    `json:"cameraId"`
	Type       string    `json:"type"`
	Confidence float64   `json:"confidence"`
	Region     Region    `json:"region"`
	DetectedAt time.Time `json:"detectedAt"`
}

func defaultCameras() []*Camera {
	return []*Camera{
		{ID: "cam-01", Name: "Derrick overview", Status: CameraOnline, StreamURL: "rtsp://rig.local/cam-01", Coverage: "derrick"},
		{ID: "cam-02", Name: "Wellhead close-up", Status: CameraOnline, StreamURL: "rtsp://rig.local/cam-02", Coverage: "wellhead"},
		{ID: "cam-03", Name: "Pipe deck", Status: CameraOnline, StreamURL: "rtsp://rig.local/cam-03", Coverage: "pipe-deck"},
	}
}

// watcher owns the cameras and the detection history.
type watcher struct {
	mu         sync.Mutex
	cameras    map[string]*Camera
	order      []string
	detections *ringbuf.Ring[Detection]
	rand       func() float64
	now        func() time.Time

	detectionChance float64
	flapChance      float64
}

func newWatcher(historyCapacity int) *watcher {
	if historyCapacity <= 0 {
		historyCapacity = 500
	}
	w := &watcher{
		cameras:         make(map[string]*Camera),
		detections:      ringbuf.New[Detection](historyCapacity),
		rand:            rand.Float64,
		now:             func() time.Time { return time.Now().UTC() },
		detectionChance: 0.2,
		flapChance:      0.02,
	}
	for _, c := range defaultCameras() {
		w.cameras[c.ID] = c
		w.order = append(w.order, c.ID)
	}
	return w
}

// tick runs one observation pass: maybe flaps a camera, maybe produces
// a detection from an online camera.
func (w *watcher) tick() (*Detection, *Camera) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var flapped *Camera
	if w.rand() < w.flapChance {
		cam := w.cameras[w.order[int(w.rand()*float64(len(w.order)))%len(w.order)]]
		if cam.Status == CameraOnline {
			cam.Status = CameraDegraded
		} else {
			cam.Status = CameraOnline
		}
		copied := *cam
		flapped = &copied
	}

	if w.rand() >= w.detectionChance {
		return nil, flapped
	}

	online := make([]*Camera, 0, len(w.order))
	for _, id := range w.order {
		if w.cameras[id].Status == CameraOnline {
			online = append(online, w.cameras[id])
		}
	}
	if len(online) == 0 {
		return nil, flapped
	}
	cam := online[int(w.rand()*float64(len(online)))%len(online)]

	d := Detection{
		ID:         uuid.NewString(),
		CameraID:   cam.ID,
		Type:       detectionTypes[int(w.rand()*float64(len(detectionTypes)))%len(detectionTypes)],
		Confidence: 0.7 + w.rand()*0.3,
		Region: Region{
			X:      int(w.rand() * 1800),
			Y:      int(w.rand() * 1000),
			Width:  40 + int(w.rand()*200),
			Height: 40 + int(w.rand()*200),
		},
		DetectedAt: w.now(),
	}
	w.detections.Push(d)
	return &d, flapped
}

func (w *watcher) camera(id string) (Camera, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.cameras[id]
	if !ok {
		return Camera{}, ErrNotFound
	}
	return *c, nil
}

func (w *watcher) list() []Camera {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Camera, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, *w.cameras[id])
	}
	return out
}

// DetectionFilter narrows detection queries. Zero fields match all.
type DetectionFilter struct {
	CameraID string
	Type     string
	Since    time.Time
}

// filter returns matching detections, oldest first.
func (w *watcher) filter(f DetectionFilter) []Detection {
	return w.detections.Filter(func(d Detection) bool {
		if f.CameraID != "" && d.CameraID != f.CameraID {
			return false
		}
		if f.Type != "" && d.Type != f.Type {
			return false
		}
		if !f.Since.IsZero() && !d.DetectedAt.After(f.Since) {
			return false
		}
		return true
	})
}
