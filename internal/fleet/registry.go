// Package fleet tracks remote field nodes, their declared topic
// capabilities, and their liveness. Nodes are registered once and never
// deleted; an offline node stays queryable.
package fleet

import (
	"errors"
	"sync"
	"time"

	"github.com/plainview-io/plainview/pkg/models"
)

// Node types.
const (
	NodeTypeRobot      = "robot"
	NodeTypeSensor     = "sensor"
	NodeTypeGateway    = "gateway"
	NodeTypeStationary = "stationary"
)

// Node health states.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthOffline  = "offline"
)

// Fleet sentinel errors, mapped to 4xx by the HTTP layer.
var (
	ErrNotFound           = errors.New("fleet: node not found")
	ErrTopicNotSubscribed = errors.New("fleet: topic not in node's subscribe set")
	ErrTopicNotPublished  = errors.New("fleet: topic not in node's publish set")
)

// TopicSet declares which topics a node consumes and produces.
type TopicSet struct {
	Subscribe []string `json:"subscribe"`
	Publish   []string `json:"publish"`
}

// Node is one registered field device, keyed by namespace/name.
type Node struct {
	ID        string           `json:"id"` // namespace/name
	Namespace string           `json:"namespace"`
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Location  *models.GeoPoint `json:"location,omitempty"`
	Topics    TopicSet         `json:"topics"`
	LastSeen  time.Time        `json:"lastSeen"`
	Health    string           `json:"health"`
}

// NodeFilter narrows Discover results. Zero fields match everything.
type NodeFilter struct {
	Type      string
	Namespace string
}

// Registry is the in-memory node store. It owns all node records;
// callers receive copies.
type Registry struct {
	mu    sync.Mutex
	nodes map[string]*Node
	order []string // registration order, for stable listings
	now   func() time.Time
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*Node),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register stores a node. The ID is derived from namespace/name when
// not set. Re-registering an existing ID refreshes its record and marks
// it healthy again.
func (r *Registry) Register(node Node) Node {
	if node.ID == "" {
		node.ID = node.Namespace + "/" + node.Name
	}
	node.LastSeen = r.now()
	node.Health = HealthOK

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[node.ID]; !exists {
		r.order = append(r.order, node.ID)
	}
	stored := node
	r.nodes[node.ID] = &stored
	return node
}

// Get returns a node by ID.
func (r *Registry) Get(id string) (Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return Node{}, ErrNotFound
	}
	return *n, nil
}

// Discover lists nodes matching the filter, in registration order.
func (r *Registry) Discover(filter NodeFilter) []Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Node, 0, len(r.order))
	for _, id := range r.order {
		n := r.nodes[id]
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if filter.Namespace != "" && n.Namespace != filter.Namespace {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// Touch refreshes a node's LastSeen and restores its health to ok.
// Telemetry receipt counts as liveness.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.LastSeen = r.now()
	n.Health = HealthOK
	return nil
}

// MarkOffline sets a node's health to offline. Returns the node's
// LastSeen for the offline event payload.
func (r *Registry) MarkOffline(id string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	n.Health = HealthOffline
	return n.LastSeen, nil
}

// Stale returns the IDs of non-offline nodes whose LastSeen is older
// than the threshold at the given instant.
func (r *Registry) Stale(at time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, id := range r.order {
		n := r.nodes[id]
		if n.Health == HealthOffline {
			continue
		}
		if at.Sub(n.LastSeen) > threshold {
			out = append(out, id)
		}
	}
	return out
}

// CanSubscribe verifies the node exists and declares the topic in its
// subscribe set.
func (r *Registry) CanSubscribe(id, topic string) error {
	return r.checkTopic(id, topic, true)
}

// CanPublish verifies the node exists and declares the topic in its
// publish set.
func (r *Registry) CanPublish(id, topic string) error {
	return r.checkTopic(id, topic, false)
}

func (r *Registry) checkTopic(id, topic string, subscribe bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return ErrNotFound
	}
	set := n.Topics.Publish
	errMissing := ErrTopicNotPublished
	if subscribe {
		set = n.Topics.Subscribe
		errMissing = ErrTopicNotSubscribed
	}
	for _, t := range set {
		if t == topic {
			return nil
		}
	}
	return errMissing
}
