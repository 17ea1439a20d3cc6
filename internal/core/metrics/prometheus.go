package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-peerctl/internal/core/eventbus"
	"github.com/dep2p/go-peerctl/pkg/types"
)

// DefaultNamespace 默认指标命名空间
const DefaultNamespace = "peerctl"

// Metrics Prometheus 实现
type Metrics struct {
	registry *prometheus.Registry

	packsSent     prometheus.Counter
	packsReceived prometheus.Counter
	bytesSent     prometheus.Counter
	bytesReceived prometheus.Counter
	decodeErrors  prometheus.Counter
	unhandled     prometheus.Counter
	gatedDrops    prometheus.Counter
	peers         prometheus.Gauge
	disconnects   *prometheus.CounterVec
	authResults   *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	giveUps       prometheus.Counter
}

var _ Reporter = (*Metrics)(nil)

// New 创建指标集，注册到独立的 Registry
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Metrics{
		registry:      reg,
		packsSent:     counter("packs_sent_total", "Total number of DataPacks written to the transport"),
		packsReceived: counter("packs_received_total", "Total number of DataPacks received from the transport"),
		bytesSent:     counter("bytes_sent_total", "Total encoded bytes written"),
		bytesReceived: counter("bytes_received_total", "Total encoded bytes received"),
		decodeErrors:  counter("decode_errors_total", "Total number of DataPacks dropped as malformed"),
		unhandled:     counter("unhandled_objects_total", "Total number of inbound objects no feature claimed"),
		gatedDrops:    counter("unauthenticated_drops_total", "Total number of inbound objects dropped before authentication"),
		giveUps:       counter("reconnect_give_ups_total", "Total number of times reconnection gave up"),
		peers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_connected",
			Help:      "Number of peers currently connected to the server",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total disconnects by reason",
		}, []string{"reason"}),
		authResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_results_total",
			Help:      "Authentication outcomes by status and failure reason",
		}, []string{"status", "reason"}),
		reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_transitions_total",
			Help:      "Reconnection state transitions by target state",
		}, []string{"state"}),
	}
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PackSent 实现 Reporter
func (m *Metrics) PackSent(bytes int) {
	m.packsSent.Inc()
	m.bytesSent.Add(float64(bytes))
}

// PackReceived 实现 Reporter
func (m *Metrics) PackReceived(bytes int) {
	m.packsReceived.Inc()
	m.bytesReceived.Add(float64(bytes))
}

// DecodeFailed 实现 Reporter
func (m *Metrics) DecodeFailed() { m.decodeErrors.Inc() }

// Unhandled 实现 Reporter
func (m *Metrics) Unhandled() { m.unhandled.Inc() }

// GatedDrop 实现 Reporter
func (m *Metrics) GatedDrop() { m.gatedDrops.Inc() }

// ============================================================================
//                              事件汇总
// ============================================================================

// Observe 订阅事件总线汇总特性指标，直到 ctx 结束或总线关闭
func (m *Metrics) Observe(ctx context.Context, bus *eventbus.Bus) {
	connected := eventbus.Subscribe[types.EvtPeerConnected](bus, 64)
	gone := eventbus.Subscribe[types.EvtPeerDisconnected](bus, 64)
	lost := eventbus.Subscribe[types.EvtClientDisconnected](bus, 16)
	auth := eventbus.Subscribe[types.EvtAuthCompleted](bus, 64)
	states := eventbus.Subscribe[types.EvtReconnectStateChanged](bus, 64)
	gaveUp := eventbus.Subscribe[types.EvtReconnectGaveUp](bus, 4)

	go func() {
		defer func() {
			for _, c := range []interface{ Close() error }{connected, gone, lost, auth, states, gaveUp} {
				_ = c.Close()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-connected.Out():
				if !ok {
					return
				}
				m.peers.Inc()
			case evt, ok := <-gone.Out():
				if !ok {
					return
				}
				m.peers.Dec()
				m.disconnects.WithLabelValues(evt.Reason.String()).Inc()
			case evt, ok := <-lost.Out():
				if !ok {
					return
				}
				m.disconnects.WithLabelValues(evt.Reason.String()).Inc()
			case evt, ok := <-auth.Out():
				if !ok {
					return
				}
				m.authResults.WithLabelValues(evt.Status.String(), evt.Reason.String()).Inc()
			case evt, ok := <-states.Out():
				if !ok {
					return
				}
				m.reconnects.WithLabelValues(evt.To.String()).Inc()
			case _, ok := <-gaveUp.Out():
				if !ok {
					return
				}
				m.giveUps.Inc()
			}
		}
	}()
}
