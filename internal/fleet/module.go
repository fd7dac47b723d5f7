package fleet

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/models"
	"github.com/plainview-io/plainview/pkg/plugin"
)

var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

var (
	nodesRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plainview_fleet_nodes_registered_total",
		Help: "Field nodes registered since process start.",
	})
	commandsDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plainview_fleet_commands_total",
		Help: "Commands dispatched to field nodes.",
	})
)

func init() {
	prometheus.MustRegister(nodesRegistered)
	prometheus.MustRegister(commandsDispatched)
}

// FleetConfig holds the fleet module's tunables.
type FleetConfig struct {
	MonitorInterval   time.Duration `mapstructure:"monitor_interval"`
	OfflineThreshold  time.Duration `mapstructure:"offline_threshold"`
	TelemetryInterval time.Duration `mapstructure:"telemetry_interval"`
	CommandHistory    int           `mapstructure:"command_history"`
	AckDelayMin       time.Duration `mapstructure:"ack_delay_min"`
	AckDelayMax       time.Duration `mapstructure:"ack_delay_max"`
}

// DefaultConfig returns the documented fleet cadences: 30s monitor
// ticks, 60s offline threshold, 5s telemetry loops.
func DefaultConfig() FleetConfig {
	return FleetConfig{
		MonitorInterval:   30 * time.Second,
		OfflineThreshold:  60 * time.Second,
		TelemetryInterval: 5 * time.Second,
		CommandHistory:    200,
		AckDelayMin:       500 * time.Millisecond,
		AckDelayMax:       2500 * time.Millisecond,
	}
}

// Module implements the device registry and heartbeat monitor plugin.
type Module struct {
	logger *zap.Logger
	bus    plugin.EventBus
	cfg    FleetConfig

	registry *Registry
	commands *commandStore

	mu    sync.Mutex
	loops map[string]context.CancelFunc // nodeID|topic -> telemetry loop

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new fleet plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "fleet",
		Version:     "0.1.0",
		Description: "Device registry, heartbeat monitor, and node commands",
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return err
		}
	}

	m.registry = NewRegistry()
	m.commands = newCommandStore(m.cfg.CommandHistory)
	m.loops = make(map[string]context.CancelFunc)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.monitorLoop()

	m.logger.Info("fleet module started",
		zap.Duration("monitor_interval", m.cfg.MonitorInterval),
		zap.Duration("offline_threshold", m.cfg.OfflineThreshold),
	)
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for key, cancel := range m.loops {
		cancel()
		delete(m.loops, key)
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.logger.Info("fleet module stopped")
	return nil
}

// Register adds a node to the registry and announces it.
func (m *Module) Register(ctx context.Context, node Node) Node {
	registered := m.registry.Register(node)
	nodesRegistered.Inc()
	m.logger.Info("node registered",
		zap.String("node_id", registered.ID),
		zap.String("type", registered.Type),
	)
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicNodeDiscovered,
		Source:    "fleet",
		Timestamp: registered.LastSeen,
		Payload:   NodeDiscoveredPayload{NodeID: registered.ID, Type: registered.Type},
	})
	return registered
}

// Discover lists registered nodes matching the filter.
func (m *Module) Discover(filter NodeFilter) []Node {
	return m.registry.Discover(filter)
}

// Get returns a node by ID.
func (m *Module) Get(id string) (Node, error) {
	return m.registry.Get(id)
}

// SubscribeTelemetry validates the node+topic pair and starts a
// periodic generation loop for it. Each delivery refreshes the node's
// LastSeen and publishes a fleet.telemetry event. Subscribing an
// already-subscribed pair restarts its loop.
func (m *Module) SubscribeTelemetry(nodeID, topic string) error {
	if err := m.registry.CanSubscribe(nodeID, topic); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := nodeID + "|" + topic
	if cancel, ok := m.loops[key]; ok {
		cancel()
	}

	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	loopCtx, cancel := context.WithCancel(parent)
	m.loops[key] = cancel

	m.wg.Add(1)
	go m.telemetryLoop(loopCtx, nodeID, topic)

	m.logger.Info("telemetry subscription started",
		zap.String("node_id", nodeID),
		zap.String("topic", topic),
	)
	return nil
}

// UnsubscribeTelemetry stops the generation loop for a node+topic pair.
func (m *Module) UnsubscribeTelemetry(nodeID, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := nodeID + "|" + topic
	cancel, ok := m.loops[key]
	if !ok {
		return ErrNotFound
	}
	cancel()
	delete(m.loops, key)
	return nil
}

func (m *Module) telemetryLoop(ctx context.Context, nodeID, topic string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.TelemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := nodeSample()
			if err := m.registry.Touch(nodeID); err != nil {
				return
			}
			_ = m.bus.Publish(ctx, plugin.Event{
				Topic:     TopicTelemetry,
				Source:    "fleet",
				Timestamp: sample.Timestamp,
				Payload:   TelemetryPayload{NodeID: nodeID, Topic: topic, Sample: sample},
			})
		}
	}
}

// nodeSample builds one synthetic node reading around the pipeline
// baseline.
func nodeSample() models.TelemetrySample {
	return models.TelemetrySample{
		FlowRateLpm:  150 + (rand.Float64()-0.5)*20,
		PressurePa:   2500000 + (rand.Float64()-0.5)*100000,
		TemperatureC: 45 + (rand.Float64()-0.5)*6,
		Timestamp:    time.Now().UTC(),
	}
}

// PublishCommand validates the command's node and topic, records a
// pending result, and resolves it to acked after a randomized
// 0.5-2.5s delay. The delay timer is cancelled on Stop; in that case
// the result stays pending.
func (m *Module) PublishCommand(ctx context.Context, cmd Command) (CommandResult, error) {
	if err := m.registry.CanPublish(cmd.NodeID, cmd.Topic); err != nil {
		return CommandResult{}, err
	}
	if cmd.CommandID == "" {
		cmd.CommandID = uuid.NewString()
	}

	result := CommandResult{
		CommandID: cmd.CommandID,
		NodeID:    cmd.NodeID,
		Status:    CommandPending,
		Timestamp: time.Now().UTC(),
	}
	m.commands.add(result)
	commandsDispatched.Inc()

	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicCommandSent,
		Source:    "fleet",
		Timestamp: result.Timestamp,
		Payload: CommandSentPayload{
			CommandID: cmd.CommandID,
			NodeID:    cmd.NodeID,
			Topic:     cmd.Topic,
			Action:    cmd.Action,
		},
	})

	delay := m.cfg.AckDelayMin
	if spread := m.cfg.AckDelayMax - m.cfg.AckDelayMin; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}

	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-parent.Done():
			return
		case <-timer.C:
		}
		now := time.Now().UTC()
		if !m.commands.resolve(cmd.CommandID, CommandAcked, now) {
			return
		}
		_ = m.bus.Publish(parent, plugin.Event{
			Topic:     TopicCommandAcked,
			Source:    "fleet",
			Timestamp: now,
			Payload:   CommandAckedPayload{CommandID: cmd.CommandID, NodeID: cmd.NodeID},
		})
	}()

	return result, nil
}

// CommandResult returns the tracked result for a command ID.
func (m *Module) CommandResult(id string) (CommandResult, error) {
	r, ok := m.commands.get(id)
	if !ok {
		return CommandResult{}, ErrNotFound
	}
	return r, nil
}

// CommandResults lists tracked command results, oldest first.
func (m *Module) CommandResults() []CommandResult {
	return m.commands.list()
}

// MarkOffline explicitly marks a node offline and announces it.
func (m *Module) MarkOffline(ctx context.Context, nodeID string) error {
	lastSeen, err := m.registry.MarkOffline(nodeID)
	if err != nil {
		return err
	}
	m.logger.Warn("node marked offline", zap.String("node_id", nodeID))
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     TopicNodeOffline,
		Source:    "fleet",
		Timestamp: time.Now().UTC(),
		Payload:   NodeOfflinePayload{NodeID: nodeID, LastSeen: lastSeen.UnixMilli()},
	})
	return nil
}

func (m *Module) monitorLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep marks every node silent for longer than the offline threshold.
func (m *Module) sweep() {
	for _, id := range m.registry.Stale(time.Now().UTC(), m.cfg.OfflineThreshold) {
		if err := m.MarkOffline(m.ctx, id); err != nil {
			m.logger.Warn("offline sweep failed", zap.String("node_id", id), zap.Error(err))
		}
	}
}
