package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/reconcile"
)

const namespace = "timely"

// Metrics tracks daemon activity on a private prometheus registry. It
// implements reconcile.Observer.
type Metrics struct {
	registry *prometheus.Registry

	reconciles    *prometheus.CounterVec
	nativeOps     *prometheus.CounterVec
	corrections   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	realtime      *prometheus.CounterVec
	rings         prometheus.Counter
}

// NewMetrics creates and registers the daemon metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciles_total",
			Help:      "Reconcile passes by resulting sync status.",
		}, []string{"status"}),
		nativeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "native_operations_total",
			Help:      "Native gateway calls by operation and result.",
		}, []string{"op", "result"}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "norepeat_corrections_total",
			Help:      "noRepeat corrections by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_notifications_total",
			Help:      "Webhook deliveries by result.",
		}, []string{"result"}),
		realtime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Realtime events received by type.",
		}, []string{"event"}),
		rings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_rings_total",
			Help:      "Native alarms that fired.",
		}),
	}
	m.registry.MustRegister(
		m.reconciles,
		m.nativeOps,
		m.corrections,
		m.notifications,
		m.realtime,
		m.rings,
	)
	return m
}

// ObserveReconcile counts a reconcile pass.
func (m *Metrics) ObserveReconcile(status model.SyncStatus) {
	m.reconciles.WithLabelValues(string(status)).Inc()
}

// ObserveNative counts a gateway call.
func (m *Metrics) ObserveNative(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.nativeOps.WithLabelValues(op, result).Inc()
}

// ObserveCorrection counts a correction outcome.
func (m *Metrics) ObserveCorrection(outcome string) {
	m.corrections.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts a webhook delivery.
func (m *Metrics) ObserveNotification(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// ObserveRealtime counts a realtime event.
func (m *Metrics) ObserveRealtime(t model.EventType) {
	m.realtime.WithLabelValues(string(t)).Inc()
}

// ObserveRing counts a fired alarm.
func (m *Metrics) ObserveRing() {
	m.rings.Inc()
}

// Register adds extra collectors to the registry.
func (m *Metrics) Register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var _ reconcile.Observer = (*Metrics)(nil)

var (
	alarmsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "alarms"),
		"Alarms in the store by sync status.",
		[]string{"sync_status"}, nil,
	)
	activeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "alarms_active"),
		"Active alarms in the store.",
		nil, nil,
	)
	correctionQueueDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "correction_queue_size"),
		"noRepeat corrections waiting to be sent.",
		nil, nil,
	)
	realtimeUpDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "realtime_connected"),
		"Whether the realtime channel is connected.",
		nil, nil,
	)
)

// stateCollector reports gauges computed from live state at scrape time.
type stateCollector struct {
	svc       *reconcile.Service
	connected func() bool
}

func (c *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- alarmsDesc
	ch <- activeDesc
	ch <- correctionQueueDesc
	ch <- realtimeUpDesc
}

func (c *stateCollector) Collect(ch chan<- prometheus.Metric) {
	alarms := c.svc.List()
	counts := reconcile.CountStatuses(alarms)
	ch <- prometheus.MustNewConstMetric(alarmsDesc, prometheus.GaugeValue, float64(counts.Synced), string(model.SyncSynced))
	ch <- prometheus.MustNewConstMetric(alarmsDesc, prometheus.GaugeValue, float64(counts.Pending), string(model.SyncPending))
	ch <- prometheus.MustNewConstMetric(alarmsDesc, prometheus.GaugeValue, float64(counts.Conflict), string(model.SyncConflict))

	active := 0
	for _, a := range alarms {
		if a.IsActive {
			active++
		}
	}
	ch <- prometheus.MustNewConstMetric(activeDesc, prometheus.GaugeValue, float64(active))
	ch <- prometheus.MustNewConstMetric(correctionQueueDesc, prometheus.GaugeValue, float64(c.svc.Corrections().Stats().QueueSize))

	up := 0.0
	if c.connected != nil && c.connected() {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(realtimeUpDesc, prometheus.GaugeValue, up)
}
