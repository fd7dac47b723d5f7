package flow

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/models"
)

// Baseline metrics the generator jitters around when no live telemetry
// source has been seen.
var defaultBaseline = models.TelemetrySample{
	FlowRateLpm:  150,
	PressurePa:   2500000,
	TemperatureC: 45,
}

// worldSource is the optional simulation engine, resolved dynamically so
// the flow module keeps working when the sim plugin is absent.
type worldSource interface {
	Running() bool
	FlowMetrics(baseline models.TelemetrySample) models.TelemetrySample
}

// generator produces a noisy sample around the baseline on a fixed
// cadence. The first externally ingested sample silences it permanently
// (single "live source active" flag) so the two sources never interleave
// in the history.
type generator struct {
	interval time.Duration
	baseline models.TelemetrySample
	emit     func(models.TelemetrySample)
	world    worldSource
	logger   *zap.Logger

	mu         sync.Mutex
	liveSource bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newGenerator(interval time.Duration, baseline models.TelemetrySample, emit func(models.TelemetrySample), world worldSource, logger *zap.Logger) *generator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if baseline == (models.TelemetrySample{}) {
		baseline = defaultBaseline
	}
	return &generator{
		interval: interval,
		baseline: baseline,
		emit:     emit,
		world:    world,
		logger:   logger,
	}
}

func (g *generator) start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.tick()
			}
		}
	}()
}

func (g *generator) stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

func (g *generator) tick() {
	g.mu.Lock()
	live := g.liveSource
	g.mu.Unlock()
	if live {
		return
	}
	g.emit(g.sample())
}

// sample builds one synthetic reading, consulting the simulation engine
// for coherent world-state values when it runs.
func (g *generator) sample() models.TelemetrySample {
	if g.world != nil && g.world.Running() {
		return g.world.FlowMetrics(g.baseline)
	}
	return models.TelemetrySample{
		FlowRateLpm:  max(100, g.baseline.FlowRateLpm+(rand.Float64()-0.5)*10),
		PressurePa:   max(2300000, g.baseline.PressurePa+(rand.Float64()-0.5)*50000),
		TemperatureC: max(20, g.baseline.TemperatureC+(rand.Float64()-0.5)*3),
		Timestamp:    time.Now().UTC(),
	}
}

// markLive silences the generator once a live telemetry source appears.
func (g *generator) markLive() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.liveSource {
		g.liveSource = true
		g.logger.Info("live telemetry source active, simulated generation stopped")
	}
}

// live reports whether a live source has been seen.
func (g *generator) live() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.liveSource
}
