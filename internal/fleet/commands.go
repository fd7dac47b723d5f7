package fleet

import (
	"sync"
	"time"

	"github.com/plainview-io/plainview/pkg/ringbuf"
)

// Command result statuses. Only pending and acked are reached in
// practice; a command currently always resolves to acked after the
// simulated network delay.
const (
	CommandPending = "pending"
	CommandSent    = "sent"
	CommandAcked   = "acked"
	CommandFailed  = "failed"
	CommandTimeout = "timeout"
)

// Command is a directive addressed to a node on one of its declared
// publish topics.
type Command struct {
	CommandID string         `json:"commandId"`
	NodeID    string         `json:"nodeId"`
	Topic     string         `json:"topic"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	Priority  int            `json:"priority"`
}

// CommandResult tracks the asynchronous outcome of a command.
type CommandResult struct {
	CommandID string    `json:"commandId"`
	NodeID    string    `json:"nodeId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// commandStore keeps the most recent command results with O(1) lookup
// by ID. The ring bounds history; evicted IDs fall out of the index.
type commandStore struct {
	mu      sync.Mutex
	results map[string]*CommandResult
	order   *ringbuf.Ring[string]
}

func newCommandStore(capacity int) *commandStore {
	if capacity <= 0 {
		capacity = 200
	}
	return &commandStore{
		results: make(map[string]*CommandResult),
		order:   ringbuf.New[string](capacity),
	}
}

func (s *commandStore) add(result CommandResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := result
	s.results[result.CommandID] = &stored
	if evicted, ok := s.order.Push(result.CommandID); ok {
		delete(s.results, evicted)
	}
}

// resolve updates a result's status if it is still tracked. Evicted
// results are silently dropped.
func (s *commandStore) resolve(commandID, status string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[commandID]
	if !ok {
		return false
	}
	r.Status = status
	r.Timestamp = at
	return true
}

func (s *commandStore) get(commandID string) (CommandResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[commandID]
	if !ok {
		return CommandResult{}, false
	}
	return *r, true
}

// list returns tracked results, oldest first.
func (s *commandStore) list() []CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.order.Snapshot()
	out := make([]CommandResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.results[id]; ok {
			out = append(out, *r)
		}
	}
	return out
}
